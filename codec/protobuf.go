package codec

import "google.golang.org/protobuf/proto"

// Proto serializes protobuf messages. The constructor must produce a fresh
// concrete message for Decode (e.g. func() *pb.Branch { return &pb.Branch{} }).
type Proto[T proto.Message] struct {
	new func() T
}

func NewProto[T proto.Message](ctor func() T) Proto[T] {
	return Proto[T]{new: ctor}
}

func (c Proto[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Proto[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
