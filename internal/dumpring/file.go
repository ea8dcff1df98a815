package dumpring

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/ovro-grex/grex-t0/internal/epoch"
	"github.com/ovro-grex/grex-t0/internal/payload"
)

// HighbandMidMHz and BandwidthMHz fix the observing band, per spec §4.6.
const (
	HighbandMidMHz = 1529.94
	BandwidthMHz   = 250.0
)

// fileMagic identifies the self-describing dump container produced by
// WriteDump. HDF5/NetCDF readers were not available anywhere in the
// dependency surface this repo was grown from, so the dump format
// documents itself: a magic string, a length-prefixed JSON header carrying
// every coordinate variable spec §4.6 requires, followed by the raw
// int8 sample data in [time, polarization, channel, complex] order.
const fileMagic = "GREXDUMP1"

// Header is the JSON-encoded metadata block written at the start of every
// dump file.
type Header struct {
	Format            string    `json:"format"`
	Samples           int       `json:"samples"`
	Channels          int       `json:"channels"`
	Polarizations     []string  `json:"polarizations"`
	ComplexComponents []string  `json:"complex_components"`
	FrequencyMHz      []float64 `json:"frequency_mhz"`
	// TimeUnixNanos[i] is epoch.TimeForCount(Counts[i]), i.e.
	// E0 + (Counts[i]-first observed count)*8.192us for sample i, the
	// "time" coordinate variable of spec §4.6.
	TimeUnixNanos []int64  `json:"time_unix_nanos"`
	Counts        []uint64 `json:"counts"`
}

// filenameLayout is a strftime pattern producing spec §4.6's
// "grex_dump-YYYYMMDDTHHMMSS" filename stem.
const filenameLayout = "grex_dump-%Y%m%dT%H%M%S"

// FileExt is the extension of dumps written by WriteDump.
const FileExt = ".gdump"

// Filename formats spec §4.6's filename pattern for time t.
func Filename(t time.Time) (string, error) {
	stem, err := strftime.Format(filenameLayout, t)
	if err != nil {
		return "", fmt.Errorf("dumpring: format filename: %w", err)
	}
	return stem + FileExt, nil
}

// frequencyAxis returns payload.Channels values linearly spaced over
// [HighbandMidMHz-BandwidthMHz, HighbandMidMHz].
func frequencyAxis() []float64 {
	low := HighbandMidMHz - BandwidthMHz
	freqs := make([]float64, payload.Channels)
	if payload.Channels == 1 {
		freqs[0] = HighbandMidMHz
		return freqs
	}
	step := (HighbandMidMHz - low) / float64(payload.Channels-1)
	for i := range freqs {
		freqs[i] = low + step*float64(i)
	}
	return freqs
}

// WriteDump streams snap (oldest-first, as returned by Ring.Snapshot) to a
// new file at path, in the self-describing format documented on fileMagic.
func WriteDump(path string, snap []payload.Payload) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dumpring: create %s: %w", path, err)
	}
	defer f.Close()

	header := Header{
		Format:            fileMagic,
		Samples:           len(snap),
		Channels:          payload.Channels,
		Polarizations:     []string{"a", "b"},
		ComplexComponents: []string{"real", "imaginary"},
		FrequencyMHz:      frequencyAxis(),
		TimeUnixNanos:     make([]int64, len(snap)),
		Counts:            make([]uint64, len(snap)),
	}
	for i, p := range snap {
		header.TimeUnixNanos[i] = epoch.TimeForCount(p.Count).UnixNano()
		header.Counts[i] = p.Count
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("dumpring: marshal header: %w", err)
	}

	if _, err := f.WriteString(fileMagic); err != nil {
		return fmt.Errorf("dumpring: write magic: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(headerBytes)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("dumpring: write header length: %w", err)
	}
	if _, err := f.Write(headerBytes); err != nil {
		return fmt.Errorf("dumpring: write header: %w", err)
	}

	for _, p := range snap {
		if err := writeSample(f, &p); err != nil {
			return err
		}
	}
	return nil
}

// writeSample appends one payload's [polarization, channel, complex] int8
// block to f.
func writeSample(f *os.File, p *payload.Payload) error {
	var buf [2 * payload.Channels * 2]byte
	i := 0
	for _, pol := range [2][payload.Channels]payload.Sample{p.PolA, p.PolB} {
		for _, s := range pol {
			buf[i] = byte(s.Re)
			buf[i+1] = byte(s.Im)
			i += 2
		}
	}
	_, err := f.Write(buf[:])
	if err != nil {
		return fmt.Errorf("dumpring: write sample: %w", err)
	}
	return nil
}
