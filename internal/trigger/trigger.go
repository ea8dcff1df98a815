// Package trigger implements the external UDP trigger listener: any
// datagram received on the trigger port produces one dump signal, per spec
// §4.7.
package trigger

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

const pollInterval = 10 * time.Second

// Listener owns one bound UDP socket and signals out on every datagram
// received, regardless of its contents.
type Listener struct {
	conn *net.UDPConn
	out  chan<- struct{}
	sd   *shutdown.Signal
	log  *log.Logger
}

// New binds a UDP socket on 0.0.0.0:port. out should be a small buffered
// channel (capacity 1 is sufficient): rapid repeated triggers coalesce
// into at most cap(out) outstanding dump requests, which the dump task
// dedupes by consuming at most one signal per completed dump.
func New(port int, out chan<- struct{}, sd *shutdown.Signal) (*Listener, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("trigger: bind 0.0.0.0:%d: %w", port, err)
	}
	return &Listener{conn: conn, out: out, sd: sd, log: log.With("component", "trigger")}, nil
}

// Close releases the bound socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Run reads (and discards) datagrams, signaling out for each one, until
// shutdown fires or a fatal socket error occurs.
func (l *Listener) Run() error {
	buf := make([]byte, 65536)
	for {
		select {
		case <-l.sd.C():
			l.log.Info("shutdown received, exiting")
			return nil
		default:
		}

		if err := l.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("trigger: set read deadline: %w", err)
		}

		_, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("trigger: fatal socket read error: %w", err)
		}

		select {
		case l.out <- struct{}{}:
		default:
			// A dump is already pending; this trigger coalesces with it.
		}
	}
}
