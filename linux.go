//go:build linux

package seqpack

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// maxRights is the kernel's SCM_MAX_FD: the most descriptors that fit in one
// SCM_RIGHTS control message.
const maxRights = 253

// recvFlags asks the kernel to set close-on-exec on every descriptor it
// installs for us, so there is no window where a fork could leak them.
const recvFlags = unix.MSG_CMSG_CLOEXEC

// Pair creates a connected socket pair (AF_UNIX/SOCK_SEQPACKET). Both ends
// are close-on-exec; use SetCloseOnExec(false) on an end you intend to hand
// to a child process. If the syscall fails nothing is created, so there is
// nothing to clean up.
func Pair() (*Socket, *Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("seqpack: socketpair: %w", err)
	}
	return newSocket(fds[0]), newSocket(fds[1]), nil
}

// parseRights decodes the SCM_RIGHTS control data a recvmsg returned and
// folds the kernel's truncation flags into the error. oob must already be
// cut to the length the kernel reported.
func parseRights(oob []byte, flags int) ([]int, error) {
	var fds []int
	if len(oob) > 0 {
		scms, err := unix.ParseSocketControlMessage(oob)
		if err != nil {
			// A control block the kernel cut short can fail to parse; the
			// MSG_CTRUNC flag below is the authoritative signal for that.
			if flags&unix.MSG_CTRUNC == 0 {
				return nil, fmt.Errorf("seqpack: parsing control message: %w", err)
			}
		}
		for _, scm := range scms {
			if scm.Header.Level != unix.SOL_SOCKET || scm.Header.Type != unix.SCM_RIGHTS {
				continue
			}
			got, err := unix.ParseUnixRights(&scm)
			if err != nil {
				continue
			}
			fds = append(fds, got...)
		}
	}

	var err error
	if flags&unix.MSG_TRUNC != 0 {
		err = ErrPayloadTruncated
	}
	if flags&unix.MSG_CTRUNC != 0 {
		err = errors.Join(err, ErrRightsTruncated)
	}
	return fds, err
}
