package downsample

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

func payloadWithConstRe(count uint64, re int8) payload.Payload {
	var p payload.Payload
	p.Count = count
	for i := range p.PolA {
		p.PolA[i] = payload.Sample{Re: re}
	}
	return p
}

func TestDownsampleKnownWindows(t *testing.T) {
	ds, err := New(2, nil, nil, shutdown.New()) // D=4
	require.NoError(t, err)
	require.EqualValues(t, 4, ds.Factor())

	var windows []payload.Stokes
	for k := uint64(0); k < 8; k++ {
		p := payloadWithConstRe(k, int8(k+1))
		if w, ready := ds.accumulate(&p); ready {
			windows = append(windows, w)
		}
	}

	require.Len(t, windows, 2)

	want0 := float32(1*1+2*2+3*3+4*4) / 4 / 16384.0
	want1 := float32(5*5+6*6+7*7+8*8) / 4 / 16384.0

	for i, v := range windows[0] {
		require.InDeltaf(t, want0, v, 1e-9, "window0 channel %d", i)
	}
	for i, v := range windows[1] {
		require.InDeltaf(t, want1, v, 1e-9, "window1 channel %d", i)
	}
}

func TestDownsampleEmitsExactlyKWindowsForKxD(t *testing.T) {
	const d = 3
	const factor = 1 << d
	const k = 5

	ds, err := New(d, nil, nil, shutdown.New())
	require.NoError(t, err)

	count := 0
	for i := uint64(0); i < factor*k; i++ {
		p := payloadWithConstRe(i, 1)
		if _, ready := ds.accumulate(&p); ready {
			count++
		}
	}
	require.Equal(t, k, count)
}

func TestDownsamplePowerTooLarge(t *testing.T) {
	_, err := New(MaxPower+1, nil, nil, shutdown.New())
	require.Error(t, err)
}
