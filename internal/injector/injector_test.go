package injector

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

func writePulseFile(t *testing.T, dir string, samples int, valueFor func(ch, i int) float64) string {
	t.Helper()
	path := filepath.Join(dir, "pulse0.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for ch := 0; ch < payload.Channels; ch++ {
		for i := 0; i < samples; i++ {
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(valueFor(ch, i)))
			_, err := f.Write(b[:])
			require.NoError(t, err)
		}
	}
	return path
}

func TestInjectorNoOpWithoutPulseDir(t *testing.T) {
	inj := New(time.Hour, filepath.Join(t.TempDir(), "nonexistent"), nil, nil, shutdown.New())

	in := payload.Payload{Count: 1}
	in.PolA[0] = payload.Sample{Re: 10, Im: 5}
	out := inj.process(in)
	require.Equal(t, in, out)
}

func TestInjectorOverlaysExactlyLPayloads(t *testing.T) {
	dir := t.TempDir()
	const L = 3
	writePulseFile(t, dir, L, func(ch, i int) float64 { return 2.0 })

	inj := New(time.Hour, dir, nil, nil, shutdown.New())

	var results []payload.Payload
	for i := 0; i < 5; i++ {
		p := payload.Payload{Count: uint64(i)}
		p.PolA[0] = payload.Sample{Re: 10, Im: 0}
		p.PolB[0] = payload.Sample{Re: 10, Im: 0}
		results = append(results, inj.process(p))
	}

	differing := 0
	for i, r := range results {
		orig := payload.Payload{Count: uint64(i)}
		orig.PolA[0] = payload.Sample{Re: 10, Im: 0}
		orig.PolB[0] = payload.Sample{Re: 10, Im: 0}
		if r.PolA[0] != orig.PolA[0] || r.PolB[0] != orig.PolB[0] {
			differing++
		}
	}
	require.Equal(t, L, differing)

	// First sample: magnitude 10 + 2 = 12, phase preserved (re axis, im=0).
	require.Equal(t, payload.Sample{Re: 12, Im: 0}, results[0].PolA[0])
}
