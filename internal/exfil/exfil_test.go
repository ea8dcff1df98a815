package exfil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

type recordingSink struct {
	headerCalls int
	windows     [][]payload.Stokes
}

func (r *recordingSink) WriteHeaderOnce(firstCount uint64, firstTime time.Time) error {
	r.headerCalls++
	return nil
}

func (r *recordingSink) ConsumeWindow(vectors []payload.Stokes) error {
	cp := make([]payload.Stokes, len(vectors))
	copy(cp, vectors)
	r.windows = append(r.windows, cp)
	return nil
}

func (r *recordingSink) Close() error { return nil }

func TestBatcherFlushesOnWindowSizeAndWritesHeaderOnce(t *testing.T) {
	in := make(chan payload.Stokes, 10)
	sink := &recordingSink{}
	b := NewBatcher(sink, in, 3, func() time.Time { return time.Unix(0, 0) }, shutdown.New())

	for i := 0; i < 7; i++ {
		var s payload.Stokes
		s[0] = float32(i)
		require.NoError(t, b.consume(s))
	}

	require.Equal(t, 1, sink.headerCalls)
	require.Len(t, sink.windows, 2)
	require.Len(t, sink.windows[0], 3)
	require.Equal(t, float32(0), sink.windows[0][0][0])
	require.Equal(t, float32(2), sink.windows[0][2][0])
}

func TestZeroEdgeChannels(t *testing.T) {
	var s payload.Stokes
	for ch := range s {
		s[ch] = 1
	}
	zeroEdgeChannels(&s)

	for ch := 0; ch <= EdgeGuardLow; ch++ {
		require.Equal(t, float32(0), s[ch])
	}
	for ch := EdgeGuardHigh; ch < payload.Channels; ch++ {
		require.Equal(t, float32(0), s[ch])
	}
	require.Equal(t, float32(1), s[(EdgeGuardLow+EdgeGuardHigh)/2])
}

func TestDummySinkDiscards(t *testing.T) {
	var d Dummy
	require.NoError(t, d.WriteHeaderOnce(0, time.Now()))
	require.NoError(t, d.ConsumeWindow([]payload.Stokes{{}}))
	require.NoError(t, d.Close())
}

func TestMJDUTCKnownEpoch(t *testing.T) {
	require.InDelta(t, unixEpochMJD, mjdUTC(time.Unix(0, 0).UTC()), 1e-9)
}
