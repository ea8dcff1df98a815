package splitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

func TestSplitterFansOutAndDropsOnFullDump(t *testing.T) {
	in := make(chan payload.Payload)
	downsamp := make(chan payload.Payload, 10)
	dump := make(chan payload.Payload, 1)
	sd := shutdown.New()

	s := New(in, downsamp, dump, sd)
	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	for i := uint64(0); i < 3; i++ {
		in <- payload.Payload{Count: i}
	}
	close(in)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("splitter did not exit")
	}

	require.Len(t, downsamp, 3)
	// Only one slot of capacity in dump; the rest should have been dropped.
	require.Len(t, dump, 1)
	require.Equal(t, uint64(2), s.DroppedForDump())
}
