package remotestore

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	storeadapter "github.com/karupanerura/store-adapter"
)

const (
	// ServiceName is the fully qualified name of the store service.
	ServiceName = "storeadapter.v1.StoreService"

	ProcedureLoad       = "/" + ServiceName + "/Load"
	ProcedureLoadAll    = "/" + ServiceName + "/LoadAll"
	ProcedureWrite      = "/" + ServiceName + "/Write"
	ProcedureWriteAll   = "/" + ServiceName + "/WriteAll"
	ProcedureDelete     = "/" + ServiceName + "/Delete"
	ProcedureDeleteAll  = "/" + ServiceName + "/DeleteAll"
	ProcedureSessionEnd = "/" + ServiceName + "/SessionEnd"
	ProcedureScan       = "/" + ServiceName + "/Scan"
)

const (
	fieldKey       = "key"
	fieldValue     = "value"
	fieldIndex     = "index"
	fieldError     = "error"
	fieldSucceeded = "succeeded"
	fieldFailed    = "failed"
	fieldPending   = "pending"
	fieldValues    = "values"
)

// ErrMalformedMessage is returned when a message does not have the expected shape.
var ErrMalformedMessage = errors.New("malformed message")

type entry = storeadapter.Entry[string, string]

func encodeEntry(e entry) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldKey:   structpb.NewStringValue(e.Key),
		fieldValue: structpb.NewStringValue(e.Value),
	}}
}

func decodeEntry(s *structpb.Struct) (entry, error) {
	key, ok := s.GetFields()[fieldKey].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return entry{}, fmt.Errorf("%w: entry without key", ErrMalformedMessage)
	}
	value, ok := s.GetFields()[fieldValue].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return entry{}, fmt.Errorf("%w: entry without value: %s", ErrMalformedMessage, key.StringValue)
	}
	return entry{Key: key.StringValue, Value: value.StringValue}, nil
}

func encodeEntries(entries []entry) *structpb.ListValue {
	values := make([]*structpb.Value, len(entries))
	for i, e := range entries {
		values[i] = structpb.NewStructValue(encodeEntry(e))
	}
	return &structpb.ListValue{Values: values}
}

func decodeEntries(l *structpb.ListValue) ([]entry, error) {
	entries := make([]entry, len(l.GetValues()))
	for i, v := range l.GetValues() {
		e, err := decodeEntry(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

func encodeKeys(keys []string) *structpb.ListValue {
	values := make([]*structpb.Value, len(keys))
	for i, key := range keys {
		values[i] = structpb.NewStringValue(key)
	}
	return &structpb.ListValue{Values: values}
}

func decodeKeys(l *structpb.ListValue) ([]string, error) {
	keys := make([]string, len(l.GetValues()))
	for i, v := range l.GetValues() {
		s, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: key at %d is not a string", ErrMalformedMessage, i)
		}
		keys[i] = s.StringValue
	}
	return keys, nil
}

func encodeMap(m map[string]string) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		fields[k] = structpb.NewStringValue(v)
	}
	return &structpb.Struct{Fields: fields}
}

func decodeMap(s *structpb.Struct) (map[string]string, error) {
	m := make(map[string]string, len(s.GetFields()))
	for k, v := range s.GetFields() {
		str, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, fmt.Errorf("%w: value of %s is not a string", ErrMalformedMessage, k)
		}
		m[k] = str.StringValue
	}
	return m, nil
}

// encodeLoadAllResult keeps a nil map distinguishable from an empty one.
func encodeLoadAllResult(m map[string]string) *structpb.Struct {
	if m == nil {
		return &structpb.Struct{}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldValues: structpb.NewStructValue(encodeMap(m)),
	}}
}

func decodeLoadAllResult(s *structpb.Struct) (map[string]string, error) {
	v, ok := s.GetFields()[fieldValues]
	if !ok {
		return nil, nil
	}
	return decodeMap(v.GetStructValue())
}

// encodeBatchResult encodes the result as the request positions of its items.
// Duplicated items are matched in request order.
func encodeBatchResult[T comparable](items []T, result storeadapter.BatchResult[T]) *structpb.Struct {
	positions := make(map[T][]int, len(items))
	for i, item := range items {
		positions[item] = append(positions[item], i)
	}
	indexOf := func(item T) float64 {
		p := positions[item]
		if len(p) == 0 {
			return -1
		}
		positions[item] = p[1:]
		return float64(p[0])
	}

	indices := func(items []T) *structpb.Value {
		values := make([]*structpb.Value, len(items))
		for i, item := range items {
			values[i] = structpb.NewNumberValue(indexOf(item))
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values})
	}

	failed := make([]*structpb.Value, len(result.Failed))
	for i, f := range result.Failed {
		failed[i] = structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldIndex: structpb.NewNumberValue(indexOf(f.Item)),
			fieldError: structpb.NewStringValue(f.Err.Error()),
		}})
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSucceeded: indices(result.Succeeded),
		fieldFailed:    structpb.NewListValue(&structpb.ListValue{Values: failed}),
		fieldPending:   indices(result.Pending),
	}}
}

// decodeBatchResult decodes the result of a batch request of the given items.
// Items the server did not report are reported as pending.
func decodeBatchResult[T any](items []T, s *structpb.Struct, sentinel error) storeadapter.BatchResult[T] {
	reported := make([]bool, len(items))
	take := func(v *structpb.Value) (T, bool) {
		var zero T
		i := int(v.GetNumberValue())
		if _, ok := v.GetKind().(*structpb.Value_NumberValue); !ok || i < 0 || i >= len(items) || reported[i] {
			return zero, false
		}
		reported[i] = true
		return items[i], true
	}

	var result storeadapter.BatchResult[T]
	for _, v := range s.GetFields()[fieldSucceeded].GetListValue().GetValues() {
		if item, ok := take(v); ok {
			result.Succeeded = append(result.Succeeded, item)
		}
	}
	for _, v := range s.GetFields()[fieldFailed].GetListValue().GetValues() {
		f := v.GetStructValue()
		if item, ok := take(f.GetFields()[fieldIndex]); ok {
			result.Failed = append(result.Failed, storeadapter.Failure[T]{
				Item: item,
				Err:  fmt.Errorf("%w: %s", sentinel, f.GetFields()[fieldError].GetStringValue()),
			})
		}
	}
	for _, v := range s.GetFields()[fieldPending].GetListValue().GetValues() {
		if item, ok := take(v); ok {
			result.Pending = append(result.Pending, item)
		}
	}
	for i, ok := range reported {
		if !ok {
			result.Pending = append(result.Pending, items[i])
		}
	}
	return result
}
