package seqpack

import "errors"

var (
	// ErrPayloadTruncated indicates a received message was larger than the
	// buffer supplied to Recv(). The buffer holds the prefix that fit.
	ErrPayloadTruncated = errors.New("seqpack: message larger than receive buffer, payload truncated")

	// ErrRightsTruncated indicates the peer attached more descriptors than
	// there were slots to receive them. The descriptors that fit were
	// returned; the overflow was discarded by the kernel.
	ErrRightsTruncated = errors.New("seqpack: more descriptors sent than slots provided, descriptors truncated")

	// ErrTooManyFiles indicates a Send() was asked to attach more
	// descriptors than the kernel allows in one message.
	ErrTooManyFiles = errors.New("seqpack: too many descriptors for one message")
)
