package capture

import (
	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

// Decoder converts PayloadBytes slots from Capture into decoded Payload
// values, recycling each slot back to the shared pool once it has been
// parsed (spec §4.2). It is a pure function from PayloadBytes to Payload,
// run here as a small pipeline stage so the recycling happens at a single
// well-known point.
type Decoder struct {
	pool *payload.Pool
	in   <-chan *payload.Bytes
	out  chan<- payload.Payload
	sd   *shutdown.Signal
	log  *log.Logger
}

// NewDecoder constructs a Decoder reading from in and writing decoded
// Payloads to out.
func NewDecoder(pool *payload.Pool, in <-chan *payload.Bytes, out chan<- payload.Payload, sd *shutdown.Signal) *Decoder {
	return &Decoder{pool: pool, in: in, out: out, sd: sd, log: log.With("component", "decoder")}
}

// Run decodes until the input channel closes or shutdown fires.
func (d *Decoder) Run() error {
	for {
		select {
		case <-d.sd.C():
			d.log.Info("shutdown received, exiting")
			return nil
		case b, ok := <-d.in:
			if !ok {
				return nil
			}
			p := payload.Decode(b)
			d.pool.Put(b)

			select {
			case d.out <- p:
			case <-d.sd.C():
				return nil
			}
		}
	}
}
