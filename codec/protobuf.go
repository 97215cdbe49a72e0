package codec

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Protobuf encodes concrete proto messages. ctor allocates the message to
// decode into, e.g. func() *mypb.User { return new(mypb.User) }.
type Protobuf[T proto.Message] struct {
	ctor func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	err := proto.Unmarshal(b, m)
	return m, err
}

// StructPB carries JSON-shaped values (such as snapshot.Entry) as a
// google.protobuf.Struct. V must encode to a JSON object. Numbers come back
// as float64, as with JSON.
type StructPB[V any] struct{}

var _ Codec[map[string]any] = StructPB[map[string]any]{}

func (StructPB[V]) Encode(v V) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("codec: structpb needs a JSON object: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (StructPB[V]) Decode(b []byte) (V, error) {
	var v V
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return v, err
	}
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(raw, &v)
	return v, err
}
