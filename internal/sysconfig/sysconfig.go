// Package sysconfig wraps the handful of OS-level knobs the pipeline needs:
// enlarging a UDP socket's receive buffer and pinning the calling goroutine's
// OS thread to a specific CPU core. Both are thin wrappers over
// golang.org/x/sys/unix, grounded on the same socket-buffer-sizing and
// core-pinning idioms used by other real-time network services in the
// retrieval pack (e.g. the SO_RCVBUF tuning in HydraDNS's UDP server).
package sysconfig

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// SetRecvBuffer enlarges conn's receive buffer to at least wantBytes and
// verifies the kernel actually honored it. The kernel doubles whatever it
// accepts for bookkeeping overhead, so the observed value is compared with
// that in mind; a shortfall is a fatal startup error per spec §7.1.
func SetRecvBuffer(conn *net.UDPConn, wantBytes int) error {
	if err := conn.SetReadBuffer(wantBytes); err != nil {
		return fmt.Errorf("sysconfig: set read buffer to %d: %w", wantBytes, err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("sysconfig: syscall conn: %w", err)
	}

	var got int
	var getErr error
	err = raw.Control(func(fd uintptr) {
		got, getErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF)
	})
	if err != nil {
		return fmt.Errorf("sysconfig: control: %w", err)
	}
	if getErr != nil {
		return fmt.Errorf("sysconfig: getsockopt SO_RCVBUF: %w", getErr)
	}
	// The kernel commonly reports 2x the requested value (bookkeeping
	// overhead); anything below the requested size means the sysctl
	// maximum (net.core.rmem_max) is capping us below what was asked for.
	if got < wantBytes {
		return fmt.Errorf("sysconfig: kernel granted recv buffer %d bytes, wanted at least %d (check net.core.rmem_max)", got, wantBytes)
	}
	return nil
}

// PinCurrentThread restricts the calling OS thread's CPU affinity to the
// single given core. Callers must already have called runtime.LockOSThread
// (component goroutines do this once at startup) so the restriction sticks
// to the thread actually doing the component's steady-state work.
func PinCurrentThread(core int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sysconfig: pin to core %d: %w", core, err)
	}
	return nil
}
