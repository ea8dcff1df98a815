package exfil

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/ovro-grex/grex-t0/internal/dumpring"
	"github.com/ovro-grex/grex-t0/internal/payload"
)

// Filterbank writes a self-describing SIGPROC-style filterbank stream:
// a length-prefixed string/value header block followed by raw float32
// samples, per spec §6's Filterbank header field list (fch1, foff,
// tsamp, tstart).
type Filterbank struct {
	f      *os.File
	w      *bufio.Writer
	D      uint32
	header bool
}

// NewFilterbank opens path for append-only streaming write.
func NewFilterbank(path string, downsampleFactor uint32) (*Filterbank, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("exfil: create %s: %w", path, err)
	}
	return &Filterbank{f: f, w: bufio.NewWriter(f), D: downsampleFactor}, nil
}

func (s *Filterbank) writeString(name string) error {
	if err := binary.Write(s.w, binary.LittleEndian, int32(len(name))); err != nil {
		return err
	}
	_, err := s.w.WriteString(name)
	return err
}

func (s *Filterbank) writeDouble(name string, v float64) error {
	if err := s.writeString(name); err != nil {
		return err
	}
	return binary.Write(s.w, binary.LittleEndian, v)
}

func (s *Filterbank) writeInt(name string, v int32) error {
	if err := s.writeString(name); err != nil {
		return err
	}
	return binary.Write(s.w, binary.LittleEndian, v)
}

// foff is the per-channel frequency step, negative since channel 0 is the
// highest frequency bin (spec §6: foff = -BANDWIDTH/CHANNELS).
func foff() float64 {
	return -dumpring.BandwidthMHz / float64(payload.Channels)
}

func (s *Filterbank) WriteHeaderOnce(firstCount uint64, firstTime time.Time) error {
	if s.header {
		return nil
	}
	fields := []func() error{
		func() error { return s.writeString("HEADER_START") },
		func() error { return s.writeDouble("fch1", dumpring.HighbandMidMHz) },
		func() error { return s.writeDouble("foff", foff()) },
		func() error { return s.writeDouble("tsamp", float64(s.D)*8.192e-6) },
		func() error { return s.writeDouble("tstart", mjdUTC(firstTime)) },
		func() error { return s.writeInt("nchans", payload.Channels) },
		func() error { return s.writeInt("nbits", 32) },
		func() error { return s.writeInt("nifs", 1) },
		func() error { return s.writeString("HEADER_END") },
	}
	for _, write := range fields {
		if err := write(); err != nil {
			return fmt.Errorf("exfil: write filterbank header: %w", err)
		}
	}
	s.header = true
	return nil
}

func (s *Filterbank) ConsumeWindow(vectors []payload.Stokes) error {
	for i := range vectors {
		v := vectors[i]
		zeroEdgeChannels(&v)
		for ch := 0; ch < payload.Channels; ch++ {
			if err := binary.Write(s.w, binary.LittleEndian, v[ch]); err != nil {
				return fmt.Errorf("exfil: write filterbank sample: %w", err)
			}
		}
	}
	return nil
}

func (s *Filterbank) Close() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("exfil: flush filterbank: %w", err)
	}
	return s.f.Close()
}
