/*
Package seqpack provides connected Unix Domain Socket pairs in SOCK_SEQPACKET
mode with support for passing open file descriptors alongside the data. This
is the socket mode where every Send() corresponds to exactly one Recv() on the
peer, so there is no framing or reassembly to do on top of it.

The package currently only works for Linux, as that is the system I use
SOCK_SEQPACKET on (OSX does not support it).

This package takes the stance that Send() and Recv() calls block until the
kernel is ready. If you want non-blocking behavior, set the descriptor
non-blocking yourself and poll RawFd() with whatever poller you use
(epoll, mio-style reactors, etc.); EAGAIN comes back as the syscall error.

The usual way to get Sockets is Pair(), which hands you both ends already
connected:

	local, remote, err := seqpack.Pair()
	if err != nil {
		// Do something
	}
	defer local.Close()
	defer remote.Close()

	if _, err := local.Send([]byte("hello"), []int{int(someFile.Fd())}); err != nil {
		// Do something
	}

A Socket is not safe for concurrent Send() calls or concurrent Recv() calls
without locking on your side. Two goroutines interleaving on one end will not
corrupt the kernel queue, but they will scramble which caller gets which
message. One logical owner should drive each end.

Closing a Socket while another goroutine is blocked in Send() or Recv() on it
is platform-dependent and not something to rely on.
*/
package seqpack

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// Socket is one end of a connected SOCK_SEQPACKET pair. It owns its
// descriptor: nothing else should close it, and Close() releases it exactly
// once no matter how many times it is called. Must take a pointer if this
// will be copied after being received.
type Socket struct {
	fd int

	closeOnce sync.Once
	closeErr  error
}

func newSocket(fd int) *Socket {
	s := &Socket{fd: fd}
	runtime.SetFinalizer(s, (*Socket).finalize)
	return s
}

// FromRaw wraps an existing descriptor in a Socket, taking ownership of it.
// No validation is done; the caller guarantees fd is a connected
// SOCK_SEQPACKET Unix socket.
func FromRaw(fd int) *Socket {
	return newSocket(fd)
}

// RawFd returns the underlying descriptor without giving up ownership.
// You can use it to poll with poll/select/epoll/whatever. Do not close it.
func (s *Socket) RawFd() int {
	return s.fd
}

// SetCloseOnExec sets or clears the descriptor's close-on-exec flag. Clear it
// if you need the socket to survive into a forked/exec'd child. This has no
// effect on Send/Recv behavior.
func (s *Socket) SetCloseOnExec(on bool) error {
	flags, err := unix.FcntlInt(uintptr(s.fd), unix.F_GETFD, 0)
	if err != nil {
		return fmt.Errorf("seqpack: fcntl(F_GETFD): %w", err)
	}
	if on {
		flags |= unix.FD_CLOEXEC
	} else {
		flags &^= unix.FD_CLOEXEC
	}
	if _, err := unix.FcntlInt(uintptr(s.fd), unix.F_SETFD, flags); err != nil {
		return fmt.Errorf("seqpack: fcntl(F_SETFD): %w", err)
	}
	return nil
}

// Close releases the descriptor. Only the first call does anything; later
// calls return whatever the first one returned.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		runtime.SetFinalizer(s, nil)
		s.closeErr = unix.Close(s.fd)
	})
	return s.closeErr
}

// finalize is the backstop for a Socket that was garbage collected without
// Close(). The descriptor still gets released, but it is a bug in the caller.
func (s *Socket) finalize() {
	s.closeOnce.Do(func() {
		glog.Warningf("seqpack: Socket(fd %d) was never closed, releasing in finalizer", s.fd)
		s.closeErr = unix.Close(s.fd)
	})
}

// Send sends b as one message. If fds is non-empty, the descriptors are
// attached to the message as a single SCM_RIGHTS control block; either the
// whole block goes with the message or the send fails, there is no partial
// descriptor transfer. Returns the number of payload bytes the kernel
// accepted, which the caller must check against len(b).
func (s *Socket) Send(b []byte, fds []int) (int, error) {
	return s.SendBuffers([][]byte{b}, fds)
}

// SendBuffers is Send for scatter-gather callers: bufs are concatenated by
// the kernel into a single message. Useful for sending a header and payload
// without copying them into one slice first.
func (s *Socket) SendBuffers(bufs [][]byte, fds []int) (int, error) {
	var oob []byte
	if len(fds) > 0 {
		if len(fds) > maxRights {
			return 0, fmt.Errorf("%w: %d descriptors in one message, kernel limit is %d", ErrTooManyFiles, len(fds), maxRights)
		}
		oob = unix.UnixRights(fds...)
	}
	n, err := unix.SendmsgBuffers(s.fd, bufs, oob, nil, 0)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Recv receives one message into b, sizing the control buffer for up to
// maxFDs passed descriptors. Returns the bytes received (0 with a nil error
// means the peer closed its end), the descriptors that arrived (nil if the
// peer attached none) and an error.
//
// Two truncation conditions are reported while still returning the data that
// did fit:
//
//   - ErrPayloadTruncated: the message was larger than b. b holds the prefix
//     and the returned count is len(b).
//   - ErrRightsTruncated: the peer attached more descriptors than maxFDs.
//     The descriptors that fit are returned; the rest were closed by the
//     kernel and are gone. This is never conflated with "the peer attached
//     nothing" — check for it with errors.Is.
//
// Both can be set on the same receive; errors.Is finds each in the joined
// error. Received descriptors have close-on-exec set.
func (s *Socket) Recv(b []byte, maxFDs int) (int, []int, error) {
	return s.RecvBuffers([][]byte{b}, maxFDs)
}

// RecvBuffers is Recv for scatter-gather callers: the message is split
// across bufs in order.
func (s *Socket) RecvBuffers(bufs [][]byte, maxFDs int) (int, []int, error) {
	var oob []byte
	if maxFDs > 0 {
		oob = make([]byte, unix.CmsgSpace(maxFDs*4))
	}
	n, oobn, flags, _, err := unix.RecvmsgBuffers(s.fd, bufs, oob, recvFlags)
	if err != nil {
		return 0, nil, err
	}
	fds, rerr := parseRights(oob[:oobn], flags)
	return n, fds, rerr
}
