// Package monitor periodically polls the FPGA Device for health telemetry
// and folds per-channel Stokes spectra into a long-integration average for
// the metrics endpoint, per spec §6 and original_source/src/monitoring.rs
// (which simply logs pcap capture stats on a channel; T0 generalizes that
// single-purpose task into the pipeline's one telemetry-aggregation
// point).
package monitor

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/device"
	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
)

// pollInterval is how often the FPGA's telemetry registers are sampled.
const pollInterval = 5 * time.Second

// Snapshot is the set of values the metrics endpoint reads on every
// scrape. All fields are safe to read concurrently via Monitor.Snapshot.
type Snapshot struct {
	Temperature      float64
	FFTOverflowCount uint64
	RequantOverflowA uint64
	RequantOverflowB uint64
	ADCRMSA          float64
	ADCRMSB          float64
	AveragedSpectrum payload.Stokes
	SpectrumSamples  uint64
}

// Monitor owns the long-integration spectrum average and the most recent
// FPGA telemetry reading. It is the Device's one read-mostly companion
// thread (spec §5: "shared read-mostly with the Monitor thread only").
type Monitor struct {
	dev Device
	in  <-chan payload.Stokes
	sd  *shutdown.Signal
	log *log.Logger

	mu   sync.RWMutex
	snap Snapshot
}

// Device is the subset of device.Device that Monitor reads; kept as its
// own interface so tests can supply a minimal stub alongside
// device.FakeDevice.
type Device interface {
	ReadTemperature() (float64, error)
	ReadFFTOverflowCount() (uint64, error)
	ReadRequantOverflow() (polA, polB uint64, err error)
	ReadADCRMS() (polA, polB float64, err error)
}

var _ Device = (*device.FakeDevice)(nil)

// New constructs a Monitor. in feeds downsampled Stokes vectors (a
// best-effort copy of the Downsampler's output) for long-integration
// averaging.
func New(dev Device, in <-chan payload.Stokes, sd *shutdown.Signal) *Monitor {
	return &Monitor{dev: dev, in: in, sd: sd, log: log.With("component", "monitor")}
}

// Snapshot returns a copy of the current telemetry/spectrum state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Run polls Device telemetry on pollInterval and folds every Stokes
// spectrum received on in into the running average, until shutdown.
func (m *Monitor) Run() error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.sd.C():
			m.log.Info("shutdown received, exiting")
			return nil
		case <-ticker.C:
			m.poll()
		case s, ok := <-m.in:
			if !ok {
				return nil
			}
			m.fold(s)
		}
	}
}

// poll reads Device telemetry. Transient register read errors are logged
// and otherwise ignored (spec §7: "transient FPGA register read errors in
// the monitor (log, continue)").
func (m *Monitor) poll() {
	temp, err := m.dev.ReadTemperature()
	if err != nil {
		m.log.Error("read temperature", "err", err)
	}
	fftOf, err := m.dev.ReadFFTOverflowCount()
	if err != nil {
		m.log.Error("read fft overflow count", "err", err)
	}
	reqA, reqB, err := m.dev.ReadRequantOverflow()
	if err != nil {
		m.log.Error("read requant overflow", "err", err)
	}
	rmsA, rmsB, err := m.dev.ReadADCRMS()
	if err != nil {
		m.log.Error("read adc rms", "err", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.Temperature = temp
	m.snap.FFTOverflowCount = fftOf
	m.snap.RequantOverflowA = reqA
	m.snap.RequantOverflowB = reqB
	m.snap.ADCRMSA = rmsA
	m.snap.ADCRMSB = rmsB
}

// fold incrementally averages s into the running per-channel spectrum.
func (m *Monitor) fold(s payload.Stokes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.snap.SpectrumSamples
	for ch := range s {
		m.snap.AveragedSpectrum[ch] = (m.snap.AveragedSpectrum[ch]*float32(n) + s[ch]) / float32(n+1)
	}
	m.snap.SpectrumSamples = n + 1
}
