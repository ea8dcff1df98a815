package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/payload"
)

func TestFakeDeviceRoundTrip(t *testing.T) {
	d := NewFake()

	gains := make([]float64, payload.Channels)
	gains[0] = 3.5
	require.NoError(t, d.SetRequantGain(gains))
	require.Equal(t, gains, d.Gain)

	temp, err := d.ReadTemperature()
	require.NoError(t, err)
	require.Equal(t, 42.0, temp)

	d.FFTOverflowCount = 7
	of, err := d.ReadFFTOverflowCount()
	require.NoError(t, err)
	require.Equal(t, uint64(7), of)

	d.RequantOverflowA, d.RequantOverflowB = 1, 2
	a, b, err := d.ReadRequantOverflow()
	require.NoError(t, err)
	require.Equal(t, uint64(1), a)
	require.Equal(t, uint64(2), b)

	rmsA, rmsB, err := d.ReadADCRMS()
	require.NoError(t, err)
	require.Equal(t, 20.0, rmsA)
	require.Equal(t, 20.0, rmsB)

	require.NoError(t, d.Close())
	require.True(t, d.Closed)
}

func TestLoadGainTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gains.txt")
	require.NoError(t, os.WriteFile(path, []byte("1.0\n1.5\n2.25\n"), 0o644))

	table, err := LoadGainTable(path)
	require.NoError(t, err)
	require.Equal(t, []float64{1.0, 1.5, 2.25}, table.Channels)
}

func TestLoadGainTableMissing(t *testing.T) {
	_, err := LoadGainTable(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestApplyFlatGainSetsEveryChannel(t *testing.T) {
	d := NewFake()
	require.NoError(t, ApplyFlatGain(d, 2.0, log.With("test", "device")))
	require.Len(t, d.Gain, payload.Channels)
	for _, g := range d.Gain {
		require.Equal(t, 2.0, g)
	}
}

func TestApplyGainTableSetsPerChannelValues(t *testing.T) {
	d := NewFake()
	table := &GainTable{Channels: make([]float64, payload.Channels)}
	table.Channels[10] = 9.5
	require.NoError(t, ApplyGainTable(d, table, log.With("test", "device")))
	require.Equal(t, table.Channels, d.Gain)
}

func TestApplyGainTableRejectsWrongLength(t *testing.T) {
	d := NewFake()
	table := &GainTable{Channels: []float64{1, 2, 3}}
	require.Error(t, ApplyGainTable(d, table, log.With("test", "device")))
}
