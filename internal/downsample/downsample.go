// Package downsample computes Stokes-I power spectra from decoded payloads
// and averages 2^d consecutive vectors into one emitted window, per spec
// §4.5.
package downsample

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

// MaxPower is the upper bound on d from spec §4.5 ("0 ≤ d ≤ 9").
const MaxPower = 9

// Downsampler accumulates Stokes-I vectors and emits their mean every
// Factor() payloads.
type Downsampler struct {
	in     <-chan payload.Payload
	out    chan<- payload.Stokes
	sd     *shutdown.Signal
	log    *log.Logger
	factor uint32

	acc   [payload.Channels]float32
	count uint32
}

// New constructs a Downsampler with downsample power d, i.e. factor
// D = 2^d. d must be in [0, MaxPower].
func New(d uint, in <-chan payload.Payload, out chan<- payload.Stokes, sd *shutdown.Signal) (*Downsampler, error) {
	if d > MaxPower {
		return nil, fmt.Errorf("downsample: power %d exceeds maximum %d", d, MaxPower)
	}
	return &Downsampler{
		in:     in,
		out:    out,
		sd:     sd,
		log:    log.With("component", "downsample"),
		factor: 1 << d,
	}, nil
}

// Factor returns D = 2^d, the number of payloads averaged into one window.
func (ds *Downsampler) Factor() uint32 {
	return ds.factor
}

// Run accumulates and emits until the input channel closes or shutdown
// fires.
func (ds *Downsampler) Run() error {
	for {
		select {
		case <-ds.sd.C():
			ds.log.Info("shutdown received, exiting")
			return nil
		case p, ok := <-ds.in:
			if !ok {
				return nil
			}
			if window, ready := ds.accumulate(&p); ready {
				select {
				case ds.out <- window:
				case <-ds.sd.C():
					return nil
				}
			}
		}
	}
}

// accumulate folds one payload's Stokes-I into the running sum, returning
// the finished, elementwise-averaged window and true once Factor() payloads
// have been folded in.
func (ds *Downsampler) accumulate(p *payload.Payload) (payload.Stokes, bool) {
	s := p.StokesI()
	for i := range ds.acc {
		ds.acc[i] += s[i]
	}
	ds.count++

	if ds.count != ds.factor {
		return payload.Stokes{}, false
	}

	var window payload.Stokes
	for i := range window {
		window[i] = ds.acc[i] / float32(ds.factor)
		ds.acc[i] = 0
	}
	ds.count = 0
	return window, true
}
