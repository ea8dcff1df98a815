// Package splitter fans out each decoded payload to the downsample path
// (which must see every payload) and the dump ring (which may lose
// payloads under load), per spec §4.3.
package splitter

import (
	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

// Splitter duplicates each Payload it receives to two downstream
// consumers.
type Splitter struct {
	in       <-chan payload.Payload
	downsamp chan<- payload.Payload
	dump     chan<- payload.Payload
	sd       *shutdown.Signal
	log      *log.Logger

	dropped uint64
}

// New constructs a Splitter. downsamp is sent to with a blocking send
// (backpressure); dump is sent to with a non-blocking try-send, dropping
// the payload if the dump ring's intake is full — dump-ring loss is
// expected and acceptable since dumps are best-effort history.
func New(in <-chan payload.Payload, downsamp, dump chan<- payload.Payload, sd *shutdown.Signal) *Splitter {
	return &Splitter{in: in, downsamp: downsamp, dump: dump, sd: sd, log: log.With("component", "splitter")}
}

// DroppedForDump returns the number of payloads lost to the dump-ring path
// due to a full intake channel.
func (s *Splitter) DroppedForDump() uint64 {
	return s.dropped
}

// Run fans out until the input channel closes or shutdown fires.
func (s *Splitter) Run() error {
	for {
		select {
		case <-s.sd.C():
			s.log.Info("shutdown received, exiting")
			return nil
		case p, ok := <-s.in:
			if !ok {
				return nil
			}

			select {
			case s.downsamp <- p:
			case <-s.sd.C():
				return nil
			}

			select {
			case s.dump <- p:
			default:
				s.dropped++
			}
		}
	}
}
