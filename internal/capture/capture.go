// Package capture implements the UDP packet-capture front end: binding the
// socket, enlarging its receive buffer, and enforcing monotonic delivery
// order with a bounded reorder window, per spec §4.1.
package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/epoch"
	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
	"github.com/ovro-grex/grex-t0/internal/sysconfig"
)

// pollInterval bounds how long Capture blocks in a single recv before
// re-checking the shutdown signal and the stats ticker, per spec §5's
// "bounded blocking-receive timeout of ~10s" cancellation rule.
const pollInterval = 10 * time.Second

// StatsPollInterval is how often Capture pushes a Stats snapshot to the
// monitoring channel (spec §4.1, "e.g. 10s").
const StatsPollInterval = 10 * time.Second

// Stats is the periodic counter snapshot pushed to the monitor.
type Stats struct {
	Processed uint64
	Drops     uint64
	Shuffled  uint64
}

// Config bounds the reorder window and socket behavior.
type Config struct {
	// BacklogBuffer is B: the tuning parameter bounding how far ahead of
	// next_expected a count may be inserted into the reorder backlog.
	BacklogBuffer uint64
	// RecvBufferBytes is the requested SO_RCVBUF size.
	RecvBufferBytes int
}

// Capture owns one bound UDP socket and the packet-ordering state machine
// feeding it.
type Capture struct {
	conn *net.UDPConn
	pool *payload.Pool
	out  chan<- *payload.Bytes
	stat chan<- Stats
	sd   *shutdown.Signal
	cfg  Config
	log  *log.Logger

	firstSeen    bool
	nextExpected uint64
	backlog      map[uint64]*payload.Bytes
	stats        Stats
}

// New binds a UDP socket on 0.0.0.0:port, enlarges its receive buffer, and
// returns a Capture ready to Run. Socket errors and a receive-buffer
// shortfall are both fatal startup errors (spec §7.1). pool is the shared
// slot pool Capture acquires PayloadBytes from; Decoder is expected to
// return slots to the same pool after decoding.
func New(port int, pool *payload.Pool, out chan<- *payload.Bytes, stat chan<- Stats, sd *shutdown.Signal, cfg Config) (*Capture, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return nil, fmt.Errorf("capture: bind 0.0.0.0:%d: %w", port, err)
	}

	if cfg.RecvBufferBytes > 0 {
		if err := sysconfig.SetRecvBuffer(conn, cfg.RecvBufferBytes); err != nil {
			conn.Close()
			return nil, fmt.Errorf("capture: %w", err)
		}
	}

	return &Capture{
		conn:    conn,
		pool:    pool,
		out:     out,
		stat:    stat,
		sd:      sd,
		cfg:     cfg,
		log:     log.With("component", "capture"),
		backlog: make(map[uint64]*payload.Bytes, 2*cfg.BacklogBuffer),
	}, nil
}

// Close releases the bound socket.
func (c *Capture) Close() error {
	return c.conn.Close()
}

// Run reads datagrams until the shutdown signal fires or a fatal error
// occurs. It owns the ordering state machine of spec §4.1.
func (c *Capture) Run() error {
	ticker := time.NewTicker(StatsPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sd.C():
			c.log.Info("shutdown received, exiting")
			return nil
		case <-ticker.C:
			c.pushStats()
			continue
		default:
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return fmt.Errorf("capture: set read deadline: %w", err)
		}

		slot := c.pool.Get()
		n, _, err := c.conn.ReadFromUDP(slot[:])
		if err != nil {
			c.pool.Put(slot)
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("capture: fatal socket read error: %w", err)
		}
		if n != payload.Size {
			c.pool.Put(slot)
			return fmt.Errorf("capture: fatal protocol error: got %d bytes, want %d", n, payload.Size)
		}

		c.accept(slot)
	}
}

// accept runs one datagram through the ordering state machine.
func (c *Capture) accept(b *payload.Bytes) {
	count := decodeCount(b)

	if !c.firstSeen {
		c.firstSeen = true
		c.nextExpected = count + 1
		epoch.Set(time.Now(), count)
		c.forward(b)
		return
	}

	switch {
	case count == c.nextExpected:
		c.forward(b)
		c.nextExpected++
		c.drainBacklog()

	case count < c.nextExpected:
		c.stats.Shuffled++
		c.recycle(b)

	case count <= c.nextExpected+c.cfg.BacklogBuffer:
		c.backlog[count] = b

	default:
		// Far-future jump: discard the backlog and the skipped range,
		// then resynchronize on the incoming packet.
		discarded := count - c.nextExpected
		for k, stale := range c.backlog {
			c.recycle(stale)
			delete(c.backlog, k)
		}
		c.stats.Drops += discarded
		c.nextExpected = count + 1
		c.forward(b)
	}
}

func (c *Capture) drainBacklog() {
	for {
		b, ok := c.backlog[c.nextExpected]
		if !ok {
			return
		}
		delete(c.backlog, c.nextExpected)
		c.forward(b)
		c.nextExpected++
	}
}

func (c *Capture) forward(b *payload.Bytes) {
	c.stats.Processed++
	c.out <- b
}

// recycle returns a slot directly to the pool instead of forwarding it,
// for a dropped packet. The pool guard is nil in unit tests that construct
// a Capture without a socket/pool, since they only exercise the ordering
// state machine.
func (c *Capture) recycle(b *payload.Bytes) {
	if c.pool != nil {
		c.pool.Put(b)
	}
}

func (c *Capture) pushStats() {
	select {
	case c.stat <- c.stats:
	default:
	}
}

func decodeCount(b *payload.Bytes) uint64 {
	return binary.BigEndian.Uint64(b[0:8])
}

