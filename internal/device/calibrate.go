package device

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/payload"
)

// GainTable holds the per-channel requant gain multipliers loaded from a
// calibration run, one value per channel, per original_source/src/calibrate.rs
// (which derives a flat per-polarization scalar from an accumulated,
// pre-requant spectrum; T0 generalizes this to per-channel values so a
// future calibration routine can flatten the bandpass rather than only
// scale it).
type GainTable struct {
	Channels []float64
}

// LoadGainTable reads a calibration file: one float64 gain value per
// line, in channel order. This mirrors calibrate.rs's write_to_file,
// which persists one value per line for later inspection and reuse.
func LoadGainTable(path string) (*GainTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("device: open gain table %s: %w", path, err)
	}
	defer f.Close()

	var vals []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("device: parse gain table %s: %w", path, err)
		}
		vals = append(vals, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("device: read gain table %s: %w", path, err)
	}
	return &GainTable{Channels: vals}, nil
}

// ApplyFlatGain sets a single scalar requant gain across all channels,
// the coarse calibration path --requant-gain drives when given a bare
// number instead of a gain-table path.
func ApplyFlatGain(d Device, gain float64, log *log.Logger) error {
	gains := make([]float64, payload.Channels)
	for i := range gains {
		gains[i] = gain
	}
	if err := d.SetRequantGain(gains); err != nil {
		return fmt.Errorf("device: apply flat gain %f: %w", gain, err)
	}
	log.Info("applied requant gain", "gain", gain)
	return nil
}

// ApplyGainTable loads a calibrated per-channel gain table onto d, the
// path --requant-gain drives when it names a file produced by a prior
// calibration run (original_source/src/calibrate.rs's write_to_file).
func ApplyGainTable(d Device, table *GainTable, log *log.Logger) error {
	if len(table.Channels) != payload.Channels {
		return fmt.Errorf("device: gain table has %d channels, want %d", len(table.Channels), payload.Channels)
	}
	if err := d.SetRequantGain(table.Channels); err != nil {
		return fmt.Errorf("device: apply gain table: %w", err)
	}
	log.Info("applied requant gain table", "channels", len(table.Channels))
	return nil
}
