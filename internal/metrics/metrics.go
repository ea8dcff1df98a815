// Package metrics exposes the pipeline's health and science telemetry as
// a Prometheus text-exposition endpoint, per spec §6. The Collector
// follows the describe/collect pattern runZeroInc-sockstats'
// TCPInfoCollector uses for its own live-polled metric source, generalized
// from one TCP connection table to T0's capture/monitor telemetry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ovro-grex/grex-t0/internal/capture"
	"github.com/ovro-grex/grex-t0/internal/monitor"
	"github.com/ovro-grex/grex-t0/internal/payload"
)

// Source supplies the live values Collect reads on every scrape.
type Source struct {
	mu           sync.RWMutex
	captureStats capture.Stats
	monitorSnap  monitor.Snapshot
}

// UpdateCapture records the latest Capture.Stats snapshot.
func (s *Source) UpdateCapture(stats capture.Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captureStats = stats
}

// UpdateMonitor records the latest Monitor.Snapshot.
func (s *Source) UpdateMonitor(snap monitor.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitorSnap = snap
}

func (s *Source) read() (capture.Stats, monitor.Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.captureStats, s.monitorSnap
}

// Collector implements prometheus.Collector, reading from a Source on
// every scrape so metrics are always current without a separate push
// loop.
type Collector struct {
	src *Source

	processed   *prometheus.Desc
	dropped     *prometheus.Desc
	shuffled    *prometheus.Desc
	spectrum    *prometheus.Desc
	fftOverflow *prometheus.Desc
	requantOver *prometheus.Desc
	temperature *prometheus.Desc
	adcRMS      *prometheus.Desc
}

// NewCollector builds a Collector reading from src.
func NewCollector(src *Source) *Collector {
	return &Collector{
		src:         src,
		processed:   prometheus.NewDesc("grex_t0_packets_processed_total", "Packets accepted by Capture.", nil, nil),
		dropped:     prometheus.NewDesc("grex_t0_packets_dropped_total", "Packets dropped by Capture (backlog/jump/overflow).", nil, nil),
		shuffled:    prometheus.NewDesc("grex_t0_packets_shuffled_total", "Late packets (count below the next expected count) discarded by Capture.", nil, nil),
		spectrum:    prometheus.NewDesc("grex_t0_monitor_spectrum", "Long-integration averaged Stokes-I spectrum.", []string{"channel"}, nil),
		fftOverflow: prometheus.NewDesc("grex_t0_fpga_fft_overflow_total", "Cumulative FPGA FFT overflow count.", nil, nil),
		requantOver: prometheus.NewDesc("grex_t0_fpga_requant_overflow_total", "Cumulative requant saturation count.", []string{"pol"}, nil),
		temperature: prometheus.NewDesc("grex_t0_fpga_temperature_celsius", "FPGA die temperature.", nil, nil),
		adcRMS:      prometheus.NewDesc("grex_t0_adc_rms", "RMS ADC code.", []string{"pol"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.processed
	ch <- c.dropped
	ch <- c.shuffled
	ch <- c.spectrum
	ch <- c.fftOverflow
	ch <- c.requantOver
	ch <- c.temperature
	ch <- c.adcRMS
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats, snap := c.src.read()

	ch <- prometheus.MustNewConstMetric(c.processed, prometheus.CounterValue, float64(stats.Processed))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(stats.Drops))
	ch <- prometheus.MustNewConstMetric(c.shuffled, prometheus.CounterValue, float64(stats.Shuffled))

	ch <- prometheus.MustNewConstMetric(c.fftOverflow, prometheus.CounterValue, float64(snap.FFTOverflowCount))
	ch <- prometheus.MustNewConstMetric(c.requantOver, prometheus.CounterValue, float64(snap.RequantOverflowA), "a")
	ch <- prometheus.MustNewConstMetric(c.requantOver, prometheus.CounterValue, float64(snap.RequantOverflowB), "b")
	ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, snap.Temperature)
	ch <- prometheus.MustNewConstMetric(c.adcRMS, prometheus.GaugeValue, snap.ADCRMSA, "a")
	ch <- prometheus.MustNewConstMetric(c.adcRMS, prometheus.GaugeValue, snap.ADCRMSB, "b")

	if snap.SpectrumSamples > 0 {
		for ch2 := 0; ch2 < payload.Channels; ch2++ {
			ch <- prometheus.MustNewConstMetric(c.spectrum, prometheus.GaugeValue, float64(snap.AveragedSpectrum[ch2]), fmt.Sprintf("%d", ch2))
		}
	}
}

// Serve registers src's Collector and serves HTTP GET /metrics on addr
// until done closes, at which point it shuts the server down gracefully
// and returns nil.
func Serve(addr string, src *Source, done <-chan struct{}) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(src))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	log := log.With("component", "metrics")

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-done:
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
