/*
Package typed sends and receives fixed-layout values over a *seqpack.Socket
by treating the value's memory as the message, with no encoding step. Both
sides must be compiled with the same layout for the type; this is for
processes built from the same source, not a wire format.

Only "plain" types are allowed: every field must be a bool, numeric type,
array or struct of those, all the way down. Pointers, strings, slices, maps,
chans, funcs and interfaces reference memory the peer does not have, so
sending them is rejected up front with ErrNotPlainData rather than producing
garbage on the other side. The check cannot see through padding semantics:
if your struct's padding bytes matter to you, that is on you.

	type handshake struct {
		Version int8
		Token   uint32
	}

	if _, err := typed.Send(local, &handshake{Version: 1, Token: 42}, nil); err != nil {
		// Do something
	}

	hs, fds, err := typed.Recv[handshake](remote, 1)
*/
package typed

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"

	"github.com/johnsiilver/seqpack"
)

// ErrNotPlainData indicates the type passed to Send or Recv contains fields
// that reference other memory and so cannot be transferred as raw bytes.
var ErrNotPlainData = errors.New("typed: type is not plain data")

// SizeError indicates a Recv got a message whose size does not match the
// value's layout. Want is the exact size the type requires. Got is the size
// that arrived, or -1 when the message was larger than Want (the kernel does
// not tell us by how much).
type SizeError struct {
	Want, Got int
}

func (e *SizeError) Error() string {
	if e.Got < 0 {
		return fmt.Sprintf("typed: message larger than the %d bytes the value requires", e.Want)
	}
	return fmt.Sprintf("typed: message was %d bytes, the value requires exactly %d", e.Got, e.Want)
}

// Send sends *v as its raw bytes, optionally attaching descriptors. Returns
// the payload bytes accepted by the kernel, which for a successful seqpacket
// send is the full size of T.
func Send[T any](s *seqpack.Socket, v *T, fds []int) (int, error) {
	if err := checkPlain(reflect.TypeOf((*T)(nil)).Elem()); err != nil {
		return 0, err
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
	return s.Send(b, fds)
}

// Recv receives exactly one value of T, reading the message directly into
// the value's memory, plus up to maxFDs attached descriptors. A message
// whose size is not exactly T's size returns a *SizeError (with any
// descriptors that arrived alongside it, so they can be closed).
func Recv[T any](s *seqpack.Socket, maxFDs int) (T, []int, error) {
	var v T
	if err := checkPlain(reflect.TypeOf((*T)(nil)).Elem()); err != nil {
		return v, nil, err
	}

	size := int(unsafe.Sizeof(v))
	b := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)

	n, fds, err := s.Recv(b, maxFDs)
	switch {
	case errors.Is(err, seqpack.ErrPayloadTruncated):
		// The peer sent something bigger than T; a partially scribbled
		// value must not escape.
		var zero T
		return zero, fds, &SizeError{Want: size, Got: -1}
	case err != nil && !errors.Is(err, seqpack.ErrRightsTruncated):
		var zero T
		return zero, nil, err
	}

	// err is nil or rights truncation, which passes through untouched.
	if n != size {
		var zero T
		return zero, fds, &SizeError{Want: size, Got: n}
	}
	return v, fds, err
}

// checkPlain walks t rejecting any kind whose representation points at
// memory outside the value itself.
func checkPlain(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkPlain(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := checkPlain(t.Field(i).Type); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %v (kind %v)", ErrNotPlainData, t, t.Kind())
}
