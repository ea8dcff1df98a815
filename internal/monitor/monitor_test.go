package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/device"
	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

func TestMonitorFoldsRunningAverage(t *testing.T) {
	in := make(chan payload.Stokes, 2)
	m := New(device.NewFake(), in, shutdown.New())

	var s1, s2 payload.Stokes
	s1[0] = 10
	s2[0] = 20

	m.fold(s1)
	m.fold(s2)

	snap := m.Snapshot()
	require.Equal(t, uint64(2), snap.SpectrumSamples)
	require.InDelta(t, 15.0, snap.AveragedSpectrum[0], 1e-6)
}

func TestMonitorPollCopiesDeviceTelemetry(t *testing.T) {
	fake := device.NewFake()
	fake.Temperature = 55.5
	fake.FFTOverflowCount = 3
	fake.RequantOverflowA = 1
	fake.RequantOverflowB = 2
	fake.ADCRMSA = 11
	fake.ADCRMSB = 12

	m := New(fake, nil, shutdown.New())
	m.poll()

	snap := m.Snapshot()
	require.Equal(t, 55.5, snap.Temperature)
	require.Equal(t, uint64(3), snap.FFTOverflowCount)
	require.Equal(t, uint64(1), snap.RequantOverflowA)
	require.Equal(t, uint64(2), snap.RequantOverflowB)
	require.Equal(t, 11.0, snap.ADCRMSA)
	require.Equal(t, 12.0, snap.ADCRMSB)
}
