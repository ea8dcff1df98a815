package epoch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetOnceWins(t *testing.T) {
	reset()
	t.Cleanup(reset)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	Set(t0, 100)
	Set(t0.Add(time.Hour), 200) // must be ignored

	require.True(t, IsSet())
	require.Equal(t, t0.UnixNano(), E0().UnixNano())
	require.Equal(t, uint64(100), FirstCount())
}

func TestTimeForCount(t *testing.T) {
	reset()
	t.Cleanup(reset)

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	Set(t0, 10)

	got := TimeForCount(12)
	require.Equal(t, t0.Add(2*SampleInterval), got)
}
