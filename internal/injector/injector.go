// Package injector overlays pre-recorded synthetic test pulses onto the
// voltage stream on a configured cadence, per spec §4.4.
package injector

import (
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

// Injector overlays one pulse at a time onto the payload stream, then
// returns to pass-through until the next cadence boundary.
type Injector struct {
	in  <-chan payload.Payload
	out chan<- payload.Payload
	sd  *shutdown.Signal
	log *log.Logger

	cadence time.Duration
	dir     string

	files         []string
	nextFileIdx   int
	degraded      bool
	warnedMissing bool

	active        bool
	sampleIdx     int
	pulse         *Pulse
	lastInjection time.Time

	now func() time.Time
}

// New constructs an Injector. cadence is T_inject; dir is the directory of
// pulse files. If dir is missing or empty, the Injector degrades to
// identity pass-through with a one-time warning, per spec §4.4.
func New(cadence time.Duration, dir string, in <-chan payload.Payload, out chan<- payload.Payload, sd *shutdown.Signal) *Injector {
	inj := &Injector{
		in:      in,
		out:     out,
		sd:      sd,
		log:     log.With("component", "injector"),
		cadence: cadence,
		dir:     dir,
		now:     time.Now,
	}

	files, err := listPulseFiles(dir)
	if err != nil || len(files) == 0 {
		inj.degraded = true
	} else {
		inj.files = files
	}
	return inj
}

// Run overlays pulses until the input channel closes or shutdown fires.
func (inj *Injector) Run() error {
	for {
		select {
		case <-inj.sd.C():
			inj.log.Info("shutdown received, exiting")
			return nil
		case p, ok := <-inj.in:
			if !ok {
				return nil
			}
			out := inj.process(p)
			select {
			case inj.out <- out:
			case <-inj.sd.C():
				return nil
			}
		}
	}
}

// process applies the injector's state machine to one payload and returns
// the (possibly modified) result.
func (inj *Injector) process(p payload.Payload) payload.Payload {
	if inj.degraded {
		if !inj.warnedMissing {
			inj.log.Warn("pulse directory missing or empty, passing through", "dir", inj.dir)
			inj.warnedMissing = true
		}
		return p
	}

	now := inj.now()
	if !inj.active && (inj.lastInjection.IsZero() || now.Sub(inj.lastInjection) >= inj.cadence) {
		if err := inj.startNextPulse(now); err != nil {
			inj.log.Error("load pulse, passing through", "err", err)
			return p
		}
	}

	if !inj.active {
		return p
	}

	for k := 0; k < payload.Channels; k++ {
		p.PolA[k] = overlay(p.PolA[k], inj.pulse.At(k, inj.sampleIdx))
		p.PolB[k] = overlay(p.PolB[k], inj.pulse.At(k, inj.sampleIdx))
	}
	inj.sampleIdx++
	if inj.sampleIdx >= inj.pulse.Samples {
		inj.active = false
		inj.pulse = nil
	}
	return p
}

func (inj *Injector) startNextPulse(now time.Time) error {
	path := inj.files[inj.nextFileIdx]
	inj.nextFileIdx = (inj.nextFileIdx + 1) % len(inj.files)

	pulse, err := loadPulse(path)
	if err != nil {
		return err
	}

	inj.pulse = pulse
	inj.active = true
	inj.sampleIdx = 0
	inj.lastInjection = now
	return nil
}

// overlay adds magnitude to s's polar magnitude while preserving phase,
// rounding the result back to int8, per spec §4.4.
func overlay(s payload.Sample, magnitude float64) payload.Sample {
	r := math.Hypot(float64(s.Re), float64(s.Im))
	phi := math.Atan2(float64(s.Im), float64(s.Re))
	newR := r + magnitude

	re := math.Round(newR * math.Cos(phi))
	im := math.Round(newR * math.Sin(phi))
	return payload.Sample{Re: clampInt8(re), Im: clampInt8(im)}
}

func clampInt8(v float64) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}
