/*
Package object sends and receives arbitrary Go values over a *seqpack.Socket
by running them through a pluggable Codec. Descriptors ride along with the
encoded bytes the same way they do on the raw socket.

The Codec decides the wire format; JSONCodec and ProtoCodec are provided, and
LZ4() wraps any of them with compression. Because a seqpacket message is not
self-delimiting at this layer, the receive side reads into a buffer of
MaxSize bytes (default 1MiB); an encoded value larger than that fails
decoding rather than silently losing its tail.

	client, err := object.New(sock, object.JSONCodec{})
	if err != nil {
		// Do something
	}

	if _, err := client.Send(myValue, nil); err != nil {
		// Do something
	}

	got := MyType{}
	fds, err := client.Recv(&got, 1)
*/
package object

import (
	"errors"
	"fmt"

	"github.com/johnsiilver/seqpack"
)

// Codec encodes values to bytes and back. Marshal and Unmarshal follow the
// encoding/json conventions: Unmarshal decodes into the pointer it is given.
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(b []byte, v interface{}) error
}

// MarshalError indicates the Codec could not encode the value. The transfer
// was never attempted. Distinct from transport errors, which pass through
// from the socket untouched.
type MarshalError struct {
	Err error
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("object: marshal: %s", e.Err)
}

func (e *MarshalError) Unwrap() error {
	return e.Err
}

// UnmarshalError indicates received bytes could not be decoded into the
// value, including the case where the encoded value exceeded MaxSize and
// arrived truncated. Distinct from transport errors, which pass through
// from the socket untouched.
type UnmarshalError struct {
	Err error
}

func (e *UnmarshalError) Error() string {
	return fmt.Sprintf("object: unmarshal: %s", e.Err)
}

func (e *UnmarshalError) Unwrap() error {
	return e.Err
}

const oneMiB = 1000 * 1024

// Client wraps a *seqpack.Socket to send and receive encoded values.
// Like the Socket itself, not safe for concurrent use of the same direction.
type Client struct {
	sock  *seqpack.Socket
	codec Codec
	pool  *Pool

	maxSize int
}

// Option is an optional argument to New.
type Option func(c *Client)

// MaxSize is the maximum encoded size a message may be in either direction.
// Defaults to 1MiB. The receive buffer is this large, so keep it honest.
func MaxSize(size int) Option {
	return func(c *Client) {
		c.maxSize = size
	}
}

// SharedPool allows the use of a shared pool of receive buffers between
// Clients instead of a pool per Client. This is useful when clients are
// short lived and have similar message sizes.
func SharedPool(pool *Pool) Option {
	return func(c *Client) {
		c.pool = pool
	}
}

// New is the constructor for Client.
func New(sock *seqpack.Socket, codec Codec, options ...Option) (*Client, error) {
	if sock == nil {
		return nil, fmt.Errorf("object: sock cannot be nil")
	}
	if codec == nil {
		return nil, fmt.Errorf("object: codec cannot be nil")
	}

	client := &Client{
		sock:    sock,
		codec:   codec,
		maxSize: oneMiB,
	}
	for _, o := range options {
		o(client)
	}
	if client.maxSize <= 0 {
		return nil, fmt.Errorf("object: MaxSize must be a positive number of bytes, got %d", client.maxSize)
	}
	if client.pool == nil {
		client.pool = NewPool(10)
	}

	return client, nil
}

// Send encodes v and sends it as one message, optionally attaching
// descriptors. Returns the encoded bytes the kernel accepted.
func (c *Client) Send(v interface{}, fds []int) (int, error) {
	b, err := c.codec.Marshal(v)
	if err != nil {
		return 0, &MarshalError{Err: err}
	}
	if len(b) > c.maxSize {
		return 0, fmt.Errorf("object: encoded value is %d bytes, exceeds the %d byte max size", len(b), c.maxSize)
	}
	return c.sock.Send(b, fds)
}

// Recv receives one message, decodes it into v (which must be a pointer, per
// the Codec's conventions) and returns up to maxFDs attached descriptors.
// Descriptors are returned even when decoding fails, so the caller can close
// them.
func (c *Client) Recv(v interface{}, maxFDs int) ([]int, error) {
	buf := c.pool.Get(c.maxSize)
	defer c.pool.Put(buf)

	n, fds, err := c.sock.Recv(*buf, maxFDs)
	switch {
	case errors.Is(err, seqpack.ErrPayloadTruncated):
		// The encoded value was larger than MaxSize. Decoding a truncated
		// encoding would be silent corruption, so it is refused outright.
		return fds, &UnmarshalError{Err: err}
	case err == nil, errors.Is(err, seqpack.ErrRightsTruncated):
		if uerr := c.codec.Unmarshal((*buf)[:n], v); uerr != nil {
			return fds, &UnmarshalError{Err: uerr}
		}
		return fds, err
	}
	return nil, err
}
