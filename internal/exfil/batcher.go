package exfil

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/epoch"
	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

// Batcher accumulates downsampled Stokes vectors into windows of W
// vectors and forwards each finished window to a Sink, writing the
// sink's header exactly once on the first vector received.
type Batcher struct {
	sink       Sink
	in         <-chan payload.Stokes
	sd         *shutdown.Signal
	log        *log.Logger
	windowSize int
	firstCount uint64
	firstTime  func() time.Time

	pending    []payload.Stokes
	headerDone bool
	count      uint64
}

// NewBatcher constructs a Batcher. firstTime is called once, on the first
// vector, to seed the sink header (spec §5's shared epoch read).
func NewBatcher(sink Sink, in <-chan payload.Stokes, windowSize int, firstTime func() time.Time, sd *shutdown.Signal) *Batcher {
	return &Batcher{
		sink:       sink,
		in:         in,
		sd:         sd,
		log:        log.With("component", "exfil"),
		windowSize: windowSize,
		firstTime:  firstTime,
		pending:    make([]payload.Stokes, 0, windowSize),
	}
}

// Run drains in, forwarding finished windows to the sink, until shutdown
// or channel close.
func (b *Batcher) Run() error {
	for {
		select {
		case <-b.sd.C():
			b.log.Info("shutdown received, exiting")
			return nil
		case s, ok := <-b.in:
			if !ok {
				return nil
			}
			if err := b.consume(s); err != nil {
				return err
			}
		}
	}
}

func (b *Batcher) consume(s payload.Stokes) error {
	if !b.headerDone {
		b.firstCount = epoch.FirstCount()
		if err := b.sink.WriteHeaderOnce(b.firstCount, b.firstTime()); err != nil {
			return err
		}
		b.headerDone = true
	}

	b.pending = append(b.pending, s)
	b.count++
	if len(b.pending) < b.windowSize {
		return nil
	}

	if err := b.sink.ConsumeWindow(b.pending); err != nil {
		return err
	}
	b.pending = b.pending[:0]
	return nil
}
