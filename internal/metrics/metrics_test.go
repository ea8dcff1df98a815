package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/capture"
	"github.com/ovro-grex/grex-t0/internal/monitor"
)

func TestCollectorExposesCaptureStats(t *testing.T) {
	src := &Source{}
	src.UpdateCapture(capture.Stats{Processed: 10, Drops: 2, Shuffled: 1})
	src.UpdateMonitor(monitor.Snapshot{Temperature: 40, ADCRMSA: 5, ADCRMSB: 6})

	c := NewCollector(src)
	count := testutil.CollectAndCount(c)
	require.Greater(t, count, 0)
}

var _ prometheus.Collector = (*Collector)(nil)
