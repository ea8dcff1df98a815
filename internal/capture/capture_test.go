package capture

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/payload"
)

func newTestCapture(backlogBuffer uint64) (*Capture, <-chan *payload.Bytes) {
	out := make(chan *payload.Bytes, 100000)
	c := &Capture{
		out:     out,
		cfg:     Config{BacklogBuffer: backlogBuffer},
		backlog: make(map[uint64]*payload.Bytes),
	}
	return c, out
}

func mkBytes(count uint64) *payload.Bytes {
	var b payload.Bytes
	binary.BigEndian.PutUint64(b[0:8], count)
	return &b
}

func drainCounts(t *testing.T, out <-chan *payload.Bytes) []uint64 {
	t.Helper()
	var counts []uint64
	for {
		select {
		case b := <-out:
			counts = append(counts, decodeCount(b))
		default:
			return counts
		}
	}
}

func TestPerfectStream(t *testing.T) {
	c, out := newTestCapture(1024)
	for i := uint64(0); i < 1000; i++ {
		c.accept(mkBytes(i))
	}
	got := drainCounts(t, out)
	require.Len(t, got, 1000)
	for i, v := range got {
		require.Equal(t, uint64(i), v)
	}
	require.Equal(t, uint64(0), c.stats.Drops)
	require.Equal(t, uint64(0), c.stats.Shuffled)
}

func TestSmallReorder(t *testing.T) {
	c, out := newTestCapture(1024)
	order := []uint64{0, 1, 3, 2, 4, 5, 6, 7, 8, 9}
	for _, v := range order {
		c.accept(mkBytes(v))
	}
	got := drainCounts(t, out)
	require.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	require.Equal(t, uint64(0), c.stats.Drops)
	require.Equal(t, uint64(0), c.stats.Shuffled)
}

func TestAnachronism(t *testing.T) {
	c, out := newTestCapture(1024)
	order := []uint64{0, 1, 2, 1, 3, 4}
	for _, v := range order {
		c.accept(mkBytes(v))
	}
	got := drainCounts(t, out)
	require.Equal(t, []uint64{0, 1, 2, 3, 4}, got)
	require.Equal(t, uint64(1), c.stats.Shuffled)
	require.Equal(t, uint64(0), c.stats.Drops)
}

func TestFarFutureJump(t *testing.T) {
	const B = 16
	c, out := newTestCapture(B)
	order := []uint64{0, 1, 2, 3 + B + 5, 3 + B + 6}
	for _, v := range order {
		c.accept(mkBytes(v))
	}
	got := drainCounts(t, out)
	require.Equal(t, []uint64{0, 1, 2, 3 + B + 5, 3 + B + 6}, got)
	require.Empty(t, c.backlog)
	// The jump from next_expected=3 to count=3+B+5 discards exactly that
	// many missing counts (the algorithm in spec §4.1: "bump drop counter
	// by the size of the discarded gap/backlog").
	require.Equal(t, uint64(B+5), c.stats.Drops)
}

func TestBacklogInsertThenFarFutureFlush(t *testing.T) {
	const B = 4
	c, out := newTestCapture(B)
	// 0 establishes next_expected=1. 2 and 3 land in the backlog (within
	// B of next_expected). Then a far-future jump flushes them.
	c.accept(mkBytes(0))
	c.accept(mkBytes(2))
	c.accept(mkBytes(3))
	require.Len(t, c.backlog, 2)

	c.accept(mkBytes(1 + B + 10))
	require.Empty(t, c.backlog)

	got := drainCounts(t, out)
	require.Equal(t, []uint64{0, 1 + B + 10}, got)
	require.Equal(t, uint64(B+10), c.stats.Drops)
}
