package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestStokesIZeroPayload(t *testing.T) {
	var p Payload
	s := p.StokesI()
	for i, v := range s {
		require.Zerof(t, v, "channel %d expected zero, got %v", i, v)
	}
}

func TestStokesIKnownValues(t *testing.T) {
	// Every pol_a sample is (3, 0) and pol_b is zero, so each channel is 3²/2^14.
	var p Payload
	for i := range p.PolA {
		p.PolA[i] = Sample{Re: 3, Im: 0}
	}
	s := p.StokesI()
	want := float32(9) / 16384.0
	for i, v := range s {
		require.InDeltaf(t, want, v, 1e-9, "channel %d", i)
	}
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var b Bytes
		raw := rapid.SliceOfN(rapid.Byte(), Size, Size).Draw(t, "raw")
		copy(b[:], raw)

		p := Decode(&b)
		got := Encode(&p)
		require.Equal(t, b, got)
	})
}

func TestDecodeWireOrdering(t *testing.T) {
	var b Bytes
	// count = 1
	b[7] = 1
	// word 0 (channels 0,1): A0=(1,2) B0=(3,4) A1=(5,6) B1=(7,8)
	copy(b[8:16], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	p := Decode(&b)
	require.Equal(t, uint64(1), p.Count)
	require.Equal(t, Sample{Re: 1, Im: 2}, p.PolA[0])
	require.Equal(t, Sample{Re: 3, Im: 4}, p.PolB[0])
	require.Equal(t, Sample{Re: 5, Im: 6}, p.PolA[1])
	require.Equal(t, Sample{Re: 7, Im: 8}, p.PolB[1])
}
