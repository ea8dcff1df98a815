package exfil

import (
	"time"

	"github.com/ovro-grex/grex-t0/internal/payload"
)

// Dummy discards every window it receives. It exists for benchmarking the
// upstream pipeline without downstream search I/O, matching
// original_source/src/exfil.rs's dummy_consumer exactly in spirit.
type Dummy struct{}

func (Dummy) WriteHeaderOnce(firstCount uint64, firstTime time.Time) error { return nil }
func (Dummy) ConsumeWindow(vectors []payload.Stokes) error                { return nil }
func (Dummy) Close() error                                                { return nil }
