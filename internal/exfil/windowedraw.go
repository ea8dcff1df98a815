package exfil

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/ovro-grex/grex-t0/internal/dumpring"
	"github.com/ovro-grex/grex-t0/internal/payload"
)

// windowedRawHeader is written exactly once, self-describing the stream
// that follows, per spec §6's WindowedRaw header field list.
type windowedRawHeader struct {
	Format     string  `json:"format"`
	NChan      int     `json:"nchan"`
	BW         float64 `json:"bw_mhz"`
	Freq       float64 `json:"freq_mhz"`
	NPol       int     `json:"npol"`
	NBit       int     `json:"nbit"`
	ObsOffset  int64   `json:"obs_offset"`
	TsampMicro float64 `json:"tsamp_us"`
	UTCStart   string  `json:"utc_start"`
}

// WindowedRaw writes an unbounded time series of float32 Stokes vectors,
// windowed W vectors at a time, with edge channels zeroed per spec §6.
type WindowedRaw struct {
	f      *os.File
	w      *bufio.Writer
	D      uint32 // downsample factor, for TSAMP
	header bool
}

// NewWindowedRaw opens path for append-only streaming write.
func NewWindowedRaw(path string, downsampleFactor uint32) (*WindowedRaw, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("exfil: create %s: %w", path, err)
	}
	return &WindowedRaw{f: f, w: bufio.NewWriter(f), D: downsampleFactor}, nil
}

func (s *WindowedRaw) WriteHeaderOnce(firstCount uint64, firstTime time.Time) error {
	if s.header {
		return nil
	}
	h := windowedRawHeader{
		Format:     "grex-windowed-raw-1",
		NChan:      payload.Channels,
		BW:         dumpring.BandwidthMHz,
		Freq:       dumpring.HighbandMidMHz,
		NPol:       1,
		NBit:       32,
		ObsOffset:  0,
		TsampMicro: float64(s.D) * 8.192,
		UTCStart:   heimdallTimestamp(firstTime),
	}
	raw, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("exfil: marshal windowed-raw header: %w", err)
	}
	if err := binary.Write(s.w, binary.BigEndian, uint32(len(raw))); err != nil {
		return fmt.Errorf("exfil: write windowed-raw header length: %w", err)
	}
	if _, err := s.w.Write(raw); err != nil {
		return fmt.Errorf("exfil: write windowed-raw header: %w", err)
	}
	s.header = true
	return nil
}

// ConsumeWindow zeroes edge channels in each vector and streams them as
// consecutive float32 rows.
func (s *WindowedRaw) ConsumeWindow(vectors []payload.Stokes) error {
	for i := range vectors {
		v := vectors[i]
		zeroEdgeChannels(&v)
		for ch := 0; ch < payload.Channels; ch++ {
			if err := binary.Write(s.w, binary.BigEndian, math.Float32bits(v[ch])); err != nil {
				return fmt.Errorf("exfil: write windowed-raw sample: %w", err)
			}
		}
	}
	return nil
}

func (s *WindowedRaw) Close() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("exfil: flush windowed-raw: %w", err)
	}
	return s.f.Close()
}
