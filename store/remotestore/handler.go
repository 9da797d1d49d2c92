package remotestore

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	storeadapter "github.com/karupanerura/store-adapter"
	"github.com/karupanerura/store-adapter/internal/ctxsync"
)

// HandlerOption is the interface for the options of the handler.
type HandlerOption interface {
	apply(*handler)
}

type handlerOptionFunc func(*handler)

func (f handlerOptionFunc) apply(h *handler) {
	f(h)
}

// WithHandlerLogger sets the logger of the handler.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return handlerOptionFunc(func(h *handler) {
		h.logger = logger
	})
}

// WithConnectHandlerOptions sets the options passed to every connect handler.
func WithConnectHandlerOptions(opts ...connect.HandlerOption) HandlerOption {
	return handlerOptionFunc(func(h *handler) {
		h.connectOptions = append(h.connectOptions, opts...)
	})
}

type handler struct {
	store          storeadapter.CacheStore[string, string]
	logger         *slog.Logger
	connectOptions []connect.HandlerOption

	// lock serializes the operations other than Scan.
	lock ctxsync.Mutex
}

// NewHandler builds an HTTP handler that serves the store.
// It returns the path on which to mount the handler and the handler itself.
//
// The operations other than Scan are called one at a time.
func NewHandler(store storeadapter.CacheStore[string, string], opts ...HandlerOption) (string, http.Handler) {
	h := &handler{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o.apply(h)
	}

	mux := http.NewServeMux()
	mux.Handle(ProcedureLoad, connect.NewUnaryHandler(ProcedureLoad, h.load, h.connectOptions...))
	mux.Handle(ProcedureLoadAll, connect.NewUnaryHandler(ProcedureLoadAll, h.loadAll, h.connectOptions...))
	mux.Handle(ProcedureWrite, connect.NewUnaryHandler(ProcedureWrite, h.write, h.connectOptions...))
	mux.Handle(ProcedureWriteAll, connect.NewUnaryHandler(ProcedureWriteAll, h.writeAll, h.connectOptions...))
	mux.Handle(ProcedureDelete, connect.NewUnaryHandler(ProcedureDelete, h.delete, h.connectOptions...))
	mux.Handle(ProcedureDeleteAll, connect.NewUnaryHandler(ProcedureDeleteAll, h.deleteAll, h.connectOptions...))
	mux.Handle(ProcedureSessionEnd, connect.NewUnaryHandler(ProcedureSessionEnd, h.sessionEnd, h.connectOptions...))
	mux.Handle(ProcedureScan, connect.NewServerStreamHandler(ProcedureScan, h.scan, h.connectOptions...))
	return "/" + ServiceName + "/", mux
}

// serialized runs f while holding the lock.
func (h *handler) serialized(ctx context.Context, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.lock.LockCtx(ctx); err != nil {
		return err
	}
	defer h.lock.Unlock()
	return f()
}

func (h *handler) fail(ctx context.Context, procedure string, err error) error {
	var connectErr *connect.Error
	switch {
	case errors.As(err, &connectErr):
	case errors.Is(err, context.Canceled):
		connectErr = connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		connectErr = connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, ErrMalformedMessage):
		connectErr = connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, storeadapter.ErrInvalidParallelism):
		connectErr = connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		connectErr = connect.NewError(connect.CodeInternal, err)
	}
	h.logger.WarnContext(ctx, "store operation failed",
		slog.String("procedure", procedure),
		slog.String("code", connectErr.Code().String()),
		slog.Any("error", err),
	)
	return connectErr
}

func (h *handler) load(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Value], error) {
	var e *entry
	if err := h.serialized(ctx, func() (err error) {
		e, err = h.store.Load(ctx, req.Msg.GetValue())
		return
	}); err != nil {
		return nil, h.fail(ctx, ProcedureLoad, err)
	}
	if e == nil {
		return connect.NewResponse(structpb.NewNullValue()), nil
	}
	return connect.NewResponse(structpb.NewStringValue(e.Value)), nil
}

func (h *handler) loadAll(ctx context.Context, req *connect.Request[structpb.ListValue]) (*connect.Response[structpb.Struct], error) {
	keys, err := decodeKeys(req.Msg)
	if err != nil {
		return nil, h.fail(ctx, ProcedureLoadAll, err)
	}

	var m map[string]string
	if err := h.serialized(ctx, func() (err error) {
		m, err = h.store.LoadAll(ctx, keys)
		return
	}); err != nil {
		return nil, h.fail(ctx, ProcedureLoadAll, err)
	}
	return connect.NewResponse(encodeLoadAllResult(m)), nil
}

func (h *handler) write(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[emptypb.Empty], error) {
	e, err := decodeEntry(req.Msg)
	if err != nil {
		return nil, h.fail(ctx, ProcedureWrite, err)
	}
	if err := h.serialized(ctx, func() error {
		return h.store.Write(ctx, e.Key, e.Value)
	}); err != nil {
		return nil, h.fail(ctx, ProcedureWrite, err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (h *handler) writeAll(ctx context.Context, req *connect.Request[structpb.ListValue]) (*connect.Response[structpb.Struct], error) {
	entries, err := decodeEntries(req.Msg)
	if err != nil {
		return nil, h.fail(ctx, ProcedureWriteAll, err)
	}

	var result storeadapter.BatchResult[entry]
	if err := h.serialized(ctx, func() error {
		result = h.store.WriteAll(ctx, entries)
		return nil
	}); err != nil {
		return nil, h.fail(ctx, ProcedureWriteAll, err)
	}
	return connect.NewResponse(encodeBatchResult(entries, result)), nil
}

func (h *handler) delete(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[emptypb.Empty], error) {
	if err := h.serialized(ctx, func() error {
		return h.store.Delete(ctx, req.Msg.GetValue())
	}); err != nil {
		return nil, h.fail(ctx, ProcedureDelete, err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

func (h *handler) deleteAll(ctx context.Context, req *connect.Request[structpb.ListValue]) (*connect.Response[structpb.Struct], error) {
	keys, err := decodeKeys(req.Msg)
	if err != nil {
		return nil, h.fail(ctx, ProcedureDeleteAll, err)
	}

	var result storeadapter.BatchResult[string]
	if err := h.serialized(ctx, func() error {
		result = h.store.DeleteAll(ctx, keys)
		return nil
	}); err != nil {
		return nil, h.fail(ctx, ProcedureDeleteAll, err)
	}
	return connect.NewResponse(encodeBatchResult(keys, result)), nil
}

func (h *handler) sessionEnd(ctx context.Context, req *connect.Request[wrapperspb.BoolValue]) (*connect.Response[emptypb.Empty], error) {
	if err := h.serialized(ctx, func() error {
		return h.store.SessionEnd(ctx, req.Msg.GetValue())
	}); err != nil {
		return nil, h.fail(ctx, ProcedureSessionEnd, err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// scan runs the LoadCache of the store and streams every entry passed to the sink.
func (h *handler) scan(ctx context.Context, _ *connect.Request[emptypb.Empty], stream *connect.ServerStream[structpb.Struct]) error {
	var mu sync.Mutex
	err := h.store.LoadCache(ctx, func(_ context.Context, key string, value string) error {
		mu.Lock()
		defer mu.Unlock()
		return stream.Send(encodeEntry(entry{Key: key, Value: value}))
	})
	if err != nil {
		return h.fail(ctx, ProcedureScan, err)
	}
	return nil
}
