// Package exfil implements the pipeline's final exfiltration sinks: the
// polymorphic consumers of finished Stokes windows described in spec §6.
// original_source/src/exfil.rs's dummy_consumer is the one sink the
// original carries; T0 generalizes the same "drain a channel of Stokes
// vectors" shape into three variants, Dummy, WindowedRaw and Filterbank,
// behind the Sink interface; callers dispatch dynamically through an
// interface value rather than through a tagged variant.
package exfil

import (
	"time"

	"github.com/ovro-grex/grex-t0/internal/payload"
)

// EdgeGuardLow and EdgeGuardHigh bound the channel ranges spec §6 requires
// zeroed before windowed exfil write, to suppress band-edge aliasing
// artifacts (spec §3 "Aliasing mask").
const (
	EdgeGuardLow  = 250  // channels 0..=250 zeroed
	EdgeGuardHigh = 1797 // channels 1797..=2047 zeroed
)

// Sink is the capability set every exfil variant implements: a one-time
// header write, seeded from the first payload's count and wall-clock
// time, and a per-window consume call.
type Sink interface {
	// WriteHeaderOnce writes the sink's self-describing header exactly
	// once, using the pipeline's shared epoch and the first observed
	// payload count (spec §5: "a single process-wide atomic holds the
	// first observed payload count... read by exfil sinks").
	WriteHeaderOnce(firstCount uint64, firstTime time.Time) error
	// ConsumeWindow writes one finished window of Stokes vectors.
	ConsumeWindow(vectors []payload.Stokes) error
	// Close releases any open file or connection.
	Close() error
}

// zeroEdgeChannels clears the band-edge channels spec §6 requires zeroed
// before windowed write. It mutates in place.
func zeroEdgeChannels(s *payload.Stokes) {
	for ch := 0; ch <= EdgeGuardLow; ch++ {
		s[ch] = 0
	}
	for ch := EdgeGuardHigh; ch < payload.Channels; ch++ {
		s[ch] = 0
	}
}
