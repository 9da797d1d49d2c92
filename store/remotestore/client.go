package remotestore

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/source"
	"github.com/karupanerura/store-adapter/store"
)

// Client is a backing store served by a handler built with NewHandler.
type Client struct {
	load       *connect.Client[wrapperspb.StringValue, structpb.Value]
	loadAll    *connect.Client[structpb.ListValue, structpb.Struct]
	write      *connect.Client[structpb.Struct, emptypb.Empty]
	writeAll   *connect.Client[structpb.ListValue, structpb.Struct]
	delete     *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	deleteAll  *connect.Client[structpb.ListValue, structpb.Struct]
	sessionEnd *connect.Client[wrapperspb.BoolValue, emptypb.Empty]
	scan       *connect.Client[emptypb.Empty, structpb.Struct]
}

var (
	_ storeadapter.BulkSource[*structpb.Struct, string, string] = (*Client)(nil)
	_ storeadapter.Loader[string, string]                       = (*Client)(nil)
	_ storeadapter.MultiLoader[string, string]                  = (*Client)(nil)
	_ storeadapter.Writer[string, string]                       = (*Client)(nil)
	_ storeadapter.MultiWriter[string, string]                  = (*Client)(nil)
	_ storeadapter.Deleter[string]                              = (*Client)(nil)
	_ storeadapter.MultiDeleter[string]                         = (*Client)(nil)
	_ storeadapter.SessionEnder                                 = (*Client)(nil)
)

// NewClient creates a client for the store served at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		load:       connect.NewClient[wrapperspb.StringValue, structpb.Value](httpClient, baseURL+ProcedureLoad, opts...),
		loadAll:    connect.NewClient[structpb.ListValue, structpb.Struct](httpClient, baseURL+ProcedureLoadAll, opts...),
		write:      connect.NewClient[structpb.Struct, emptypb.Empty](httpClient, baseURL+ProcedureWrite, opts...),
		writeAll:   connect.NewClient[structpb.ListValue, structpb.Struct](httpClient, baseURL+ProcedureWriteAll, opts...),
		delete:     connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+ProcedureDelete, opts...),
		deleteAll:  connect.NewClient[structpb.ListValue, structpb.Struct](httpClient, baseURL+ProcedureDeleteAll, opts...),
		sessionEnd: connect.NewClient[wrapperspb.BoolValue, emptypb.Empty](httpClient, baseURL+ProcedureSessionEnd, opts...),
		scan:       connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ProcedureScan, opts...),
	}
}

// InputData streams the entries of the served store.
// The stream is opened when the iteration starts and closed when it ends.
func (c *Client) InputData(ctx context.Context) iter.Seq2[*structpb.Struct, error] {
	return source.Scoped(ctx,
		func(ctx context.Context) (*connect.ServerStreamForClient[structpb.Struct], error) {
			stream, err := c.scan.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", store.ErrScan, err)
			}
			return stream, nil
		},
		func(_ context.Context, stream *connect.ServerStreamForClient[structpb.Struct]) (*structpb.Struct, bool, error) {
			if stream.Receive() {
				return stream.Msg(), true, nil
			}
			if err := stream.Err(); err != nil {
				return nil, false, fmt.Errorf("%w: %w", store.ErrScan, err)
			}
			return nil, false, nil
		},
		func(stream *connect.ServerStreamForClient[structpb.Struct]) error {
			return stream.Close()
		},
	)
}

// Parse decodes a streamed entry.
func (c *Client) Parse(_ context.Context, record *structpb.Struct, _ ...any) (*storeadapter.Entry[string, string], error) {
	e, err := decodeEntry(record)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Load loads the value of the key from the served store.
func (c *Client) Load(ctx context.Context, key string) (*storeadapter.Entry[string, string], error) {
	res, err := c.load.CallUnary(ctx, connect.NewRequest(wrapperspb.String(key)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrLoad, err)
	}
	switch v := res.Msg.GetKind().(type) {
	case *structpb.Value_StringValue:
		return &storeadapter.Entry[string, string]{Key: key, Value: v.StringValue}, nil
	case *structpb.Value_NullValue:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %w: unexpected value for %s", store.ErrLoad, ErrMalformedMessage, key)
	}
}

// LoadAll loads the values of the keys from the served store.
func (c *Client) LoadAll(ctx context.Context, keys []string) (map[string]string, error) {
	res, err := c.loadAll.CallUnary(ctx, connect.NewRequest(encodeKeys(keys)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrLoad, err)
	}
	m, err := decodeLoadAllResult(res.Msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrLoad, err)
	}
	return m, nil
}

// Write writes the value of the key to the served store.
func (c *Client) Write(ctx context.Context, key string, value string) error {
	if _, err := c.write.CallUnary(ctx, connect.NewRequest(encodeEntry(entry{Key: key, Value: value}))); err != nil {
		return fmt.Errorf("%w: %w", store.ErrWrite, err)
	}
	return nil
}

// WriteAll writes the entries to the served store in a single request.
// If the request itself fails, every entry is reported as failed with the same error.
func (c *Client) WriteAll(ctx context.Context, entries []storeadapter.Entry[string, string]) storeadapter.BatchResult[storeadapter.Entry[string, string]] {
	res, err := c.writeAll.CallUnary(ctx, connect.NewRequest(encodeEntries(entries)))
	if err != nil {
		return failedAll(entries, fmt.Errorf("%w: %w", store.ErrWrite, err))
	}
	return decodeBatchResult(entries, res.Msg, store.ErrWrite)
}

// Delete deletes the key from the served store.
func (c *Client) Delete(ctx context.Context, key string) error {
	if _, err := c.delete.CallUnary(ctx, connect.NewRequest(wrapperspb.String(key))); err != nil {
		return fmt.Errorf("%w: %w", store.ErrDelete, err)
	}
	return nil
}

// DeleteAll deletes the keys from the served store in a single request.
// If the request itself fails, every key is reported as failed with the same error.
func (c *Client) DeleteAll(ctx context.Context, keys []string) storeadapter.BatchResult[string] {
	res, err := c.deleteAll.CallUnary(ctx, connect.NewRequest(encodeKeys(keys)))
	if err != nil {
		return failedAll(keys, fmt.Errorf("%w: %w", store.ErrDelete, err))
	}
	return decodeBatchResult(keys, res.Msg, store.ErrDelete)
}

// SessionEnd ends the session of the served store.
func (c *Client) SessionEnd(ctx context.Context, commit bool) error {
	if _, err := c.sessionEnd.CallUnary(ctx, connect.NewRequest(wrapperspb.Bool(commit))); err != nil {
		return fmt.Errorf("%w: %w", store.ErrSessionEnd, err)
	}
	return nil
}

func failedAll[T any](items []T, err error) storeadapter.BatchResult[T] {
	failed := make([]storeadapter.Failure[T], len(items))
	for i, item := range items {
		failed[i] = storeadapter.Failure[T]{Item: item, Err: err}
	}
	return storeadapter.BatchResult[T]{Failed: failed}
}
