package dumpring

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

// Fill owns the Ring for the process lifetime (spec §5: "DumpRing is owned
// by the DumpFill thread alone") and drives both its continuous lossy
// intake and its triggered dumps.
type Fill struct {
	ring    *Ring
	in      <-chan payload.Payload
	trigger <-chan struct{}
	sd      *shutdown.Signal
	dir     string
	log     *log.Logger

	dumpsWritten uint64
	dumpErrors   uint64
}

// NewFill constructs a Fill. in is the lossy intake fed by Splitter; a full
// intake simply drops payloads before Fill ever sees them. trigger is fed
// by the trigger listener, one signal per received datagram.
func NewFill(ring *Ring, in <-chan payload.Payload, trigger <-chan struct{}, dir string, sd *shutdown.Signal) *Fill {
	return &Fill{ring: ring, in: in, trigger: trigger, dir: dir, sd: sd, log: log.With("component", "dumpfill")}
}

// DumpsWritten and DumpErrors report counters for the metrics endpoint.
func (f *Fill) DumpsWritten() uint64 { return f.dumpsWritten }
func (f *Fill) DumpErrors() uint64   { return f.dumpErrors }

// Run pushes payloads into the ring and services dump triggers until
// shutdown. While a dump is in progress the ring does not accept pushes
// (spec §4.6): Run simply doesn't read from in during dump(), so the
// lossy intake channel may fill and drop payloads, which is acceptable.
func (f *Fill) Run() error {
	for {
		select {
		case <-f.sd.C():
			f.log.Info("shutdown received, exiting")
			return nil
		case <-f.trigger:
			f.dump()
		case p, ok := <-f.in:
			if !ok {
				return nil
			}
			f.ring.Push(p)
		case <-time.After(10 * time.Second):
			// Bounded wakeup so the shutdown/trigger checks above stay
			// timely even when the intake channel is idle.
		}
	}
}

func (f *Fill) dump() {
	snap := f.ring.Snapshot()
	name, err := Filename(time.Now())
	if err != nil {
		f.log.Error("format dump filename", "err", err)
		f.dumpErrors++
		return
	}
	path := filepath.Join(f.dir, name)
	if err := WriteDump(path, snap); err != nil {
		f.log.Error("write dump", "path", path, "err", err)
		f.dumpErrors++
		return
	}
	f.dumpsWritten++
	f.log.Info("wrote dump", "path", path, "samples", len(snap))
}
