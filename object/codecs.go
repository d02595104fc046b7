package object

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4"
	"google.golang.org/protobuf/proto"
)

// JSONCodec implements Codec with encoding/json. Good enough for control
// messages between processes you both own; both sides just need matching
// struct tags.
type JSONCodec struct{}

// Marshal implements Codec.Marshal.
func (JSONCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal implements Codec.Unmarshal.
func (JSONCodec) Unmarshal(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}

// ProtoCodec implements Codec for values that are proto.Message. Handing it
// anything else is an encode/decode error, not a transport error.
type ProtoCodec struct{}

// Marshal implements Codec.Marshal.
func (ProtoCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("ProtoCodec can only marshal a proto.Message, got %T", v)
	}
	return proto.Marshal(m)
}

// Unmarshal implements Codec.Unmarshal.
func (ProtoCodec) Unmarshal(b []byte, v interface{}) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("ProtoCodec can only unmarshal into a proto.Message, got %T", v)
	}
	return proto.Unmarshal(b, m)
}

// LZ4 wraps codec so that encoded bytes are lz4 compressed on the wire.
// Worth it when values are large relative to MaxSize; for small control
// messages the frame overhead costs more than it saves.
func LZ4(codec Codec) Codec {
	return lz4Codec{inner: codec}
}

type lz4Codec struct {
	inner Codec
}

func (c lz4Codec) Marshal(v interface{}) ([]byte, error) {
	b, err := c.inner.Marshal(v)
	if err != nil {
		return nil, err
	}

	buff := bytes.Buffer{}
	w := lz4.NewWriter(&buff)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func (c lz4Codec) Unmarshal(b []byte, v interface{}) error {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(b)))
	if err != nil {
		return err
	}
	return c.inner.Unmarshal(out, v)
}
