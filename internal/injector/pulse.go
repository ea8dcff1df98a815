package injector

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/ovro-grex/grex-t0/internal/payload"
)

// Pulse is one pre-recorded synthetic test pulse: CHANNELS rows of
// per-sample magnitude to add to the voltage stream, row-major
// (channel, time) as spec §4.4 describes.
type Pulse struct {
	Samples int
	data    []float64 // [channel*Samples + sample]
}

// At returns the magnitude to add to channel ch at time sample i.
func (p *Pulse) At(ch, i int) float64 {
	return p.data[ch*p.Samples+i]
}

// loadPulse reads a file of payload.Channels*T_samples row-major float64s
// (little-endian, the corpus's default encoding/binary byte order for raw
// numeric dumps).
func loadPulse(path string) (*Pulse, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("injector: read pulse %s: %w", path, err)
	}
	const wordSize = 8
	if len(raw)%wordSize != 0 {
		return nil, fmt.Errorf("injector: pulse %s has %d bytes, not a multiple of %d", path, len(raw), wordSize)
	}
	total := len(raw) / wordSize
	if total%payload.Channels != 0 {
		return nil, fmt.Errorf("injector: pulse %s has %d float64 samples, not a multiple of %d channels", path, total, payload.Channels)
	}
	samples := total / payload.Channels

	data := make([]float64, total)
	for i := 0; i < total; i++ {
		bits := binary.LittleEndian.Uint64(raw[i*wordSize : i*wordSize+wordSize])
		data[i] = math.Float64frombits(bits)
	}
	return &Pulse{Samples: samples, data: data}, nil
}

// listPulseFiles returns the regular files directly under dir, sorted for
// a deterministic cyclic iteration order.
func listPulseFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
