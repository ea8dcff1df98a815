// Package orchestrator wires every pipeline component together: bounded
// channels between stages, CPU core pinning per component, a broadcast
// shutdown signal, and first-error collection across the whole thread
// set, per spec §5 and §9. The join pattern is a manual WaitGroup plus
// error channel rather than an errgroup dependency, since no pack example
// imports one; see DESIGN.md.
package orchestrator

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/capture"
	"github.com/ovro-grex/grex-t0/internal/config"
	"github.com/ovro-grex/grex-t0/internal/device"
	"github.com/ovro-grex/grex-t0/internal/downsample"
	"github.com/ovro-grex/grex-t0/internal/dumpring"
	"github.com/ovro-grex/grex-t0/internal/epoch"
	"github.com/ovro-grex/grex-t0/internal/exfil"
	"github.com/ovro-grex/grex-t0/internal/injector"
	"github.com/ovro-grex/grex-t0/internal/metrics"
	"github.com/ovro-grex/grex-t0/internal/monitor"
	"github.com/ovro-grex/grex-t0/internal/payload"
	"github.com/ovro-grex/grex-t0/internal/shutdown"
	"github.com/ovro-grex/grex-t0/internal/splitter"
	"github.com/ovro-grex/grex-t0/internal/sysconfig"
	"github.com/ovro-grex/grex-t0/internal/trigger"
)

// chanBuffer sizes the bounded channels between pipeline stages. These are
// deliberately small: backpressure (for downsamp/decode/capture) or a
// bounded drop (for the dump-ring path) is the documented behavior under
// overload, per spec §4.3 and §5.
const chanBuffer = 1024

// Orchestrator owns every component and its goroutine.
type Orchestrator struct {
	cfg *config.Config
	sd  *shutdown.Signal
	log *log.Logger

	dev  device.Device
	src  *metrics.Source
	fill *dumpring.Fill
	mon  *monitor.Monitor
}

// Run builds the full pipeline from cfg, starts every component on its own
// goroutine (when a core range is configured, each pinned component gets
// the next core from START, wrapping back to START after STOP, so a range
// with fewer cores than pinned components puts two on one core), and blocks until shutdown fires or any component returns a
// fatal error. It returns the first such error, or nil on graceful
// shutdown.
func Run(cfg *config.Config) error {
	o := &Orchestrator{cfg: cfg, sd: shutdown.New(), log: log.With("component", "orchestrator")}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		o.log.Info("received interrupt, shutting down")
		o.sd.Fire()
	}()

	return o.run()
}

func (o *Orchestrator) run() error {
	epochTime, err := device.AlignEpoch(o.cfg.NTPAddr, o.cfg.SkipNTP)
	if err != nil {
		return fmt.Errorf("orchestrator: align epoch: %w", err)
	}
	o.log.Info("aligned epoch", "time", epochTime, "skip_ntp", o.cfg.SkipNTP)

	if o.cfg.FPGAAddr != "" {
		dev, err := device.Dial(o.cfg.FPGAAddr)
		if err != nil {
			return fmt.Errorf("orchestrator: dial fpga: %w", err)
		}
		o.dev = dev
	} else {
		o.dev = device.NewFake()
	}
	defer o.dev.Close()

	if o.cfg.RequantGain != "" {
		if err := o.applyRequantGain(o.cfg.RequantGain); err != nil {
			return fmt.Errorf("orchestrator: %w", err)
		}
	}

	pool := payload.NewPool(4 * chanBuffer)
	rawOut := make(chan *payload.Bytes, chanBuffer)
	decoded := make(chan payload.Payload, chanBuffer)
	captureStats := make(chan capture.Stats, 1)

	capt, err := capture.New(o.cfg.CapPort, pool, rawOut, captureStats, o.sd, capture.Config{
		BacklogBuffer:   64,
		RecvBufferBytes: 64 << 20,
	})
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	defer capt.Close()

	decoder := capture.NewDecoder(pool, rawOut, decoded, o.sd)

	splitIn := decoded
	downsampIn := make(chan payload.Payload, chanBuffer)
	dumpIn := make(chan payload.Payload, chanBuffer)
	split := splitter.New(splitIn, downsampIn, dumpIn, o.sd)

	injected := make(chan payload.Payload, chanBuffer)
	inj := injector.New(time.Duration(o.cfg.InjectionCadenceSeconds)*time.Second, o.cfg.PulsePath, downsampIn, injected, o.sd)

	stokesOut := make(chan payload.Stokes, chanBuffer)
	ds, err := downsample.New(o.cfg.DownsamplePower, injected, stokesOut, o.sd)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	toExfil := make(chan payload.Stokes, chanBuffer)
	toMonitor := make(chan payload.Stokes, chanBuffer)

	ring, err := dumpring.New(o.cfg.VBufPower)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	trigOut := make(chan struct{}, 1)
	o.fill = dumpring.NewFill(ring, dumpIn, trigOut, ".", o.sd)

	trig, err := trigger.New(o.cfg.TrigPort, trigOut, o.sd)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	defer trig.Close()

	o.mon = monitor.New(o.dev, toMonitor, o.sd)

	sink, err := o.buildSink()
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	defer sink.Close()

	batcher := exfil.NewBatcher(sink, toExfil, windowSize, func() time.Time {
		return epoch.TimeForCount(epoch.FirstCount())
	}, o.sd)

	o.src = &metrics.Source{}

	var wg sync.WaitGroup
	errs := make(chan error, 16)

	run := func(name string, core int, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if core >= 0 {
				runtime.LockOSThread()
				if err := sysconfig.PinCurrentThread(core); err != nil {
					o.log.Warn("pin thread", "component", name, "err", err)
				}
			}
			if err := fn(); err != nil {
				select {
				case errs <- fmt.Errorf("%s: %w", name, err):
				default:
				}
				o.sd.Fire()
			}
		}()
	}

	core := o.cfg.CoreRangeStart
	nextCore := func() int {
		if o.cfg.CoreRangeStop == 0 {
			return -1
		}
		c := core
		core++
		if core > o.cfg.CoreRangeStop {
			core = o.cfg.CoreRangeStart
		}
		return c
	}

	run("capture", nextCore(), capt.Run)
	run("decoder", nextCore(), decoder.Run)
	run("splitter", nextCore(), split.Run)
	run("injector", nextCore(), inj.Run)
	run("downsample", nextCore(), ds.Run)
	run("dumpfill", nextCore(), o.fill.Run)
	run("trigger", nextCore(), trig.Run)
	run("monitor", nextCore(), o.mon.Run)
	run("exfil", nextCore(), batcher.Run)

	run("tee", -1, func() error { return o.teeStokes(stokesOut, toExfil, toMonitor) })
	run("metrics", -1, func() error { return metrics.Serve(fmt.Sprintf(":%d", o.cfg.MetricsPort), o.src, o.sd.C()) })
	run("stats", -1, func() error { return o.pumpCaptureStats(captureStats) })

	wg.Wait()
	close(errs)
	for e := range errs {
		return e
	}
	return nil
}

// windowSize is W, the number of downsampled Stokes vectors batched into
// one exfil window for the WindowedRaw/Filterbank sinks, per spec §6.
const windowSize = 256

// teeStokes duplicates every downsampled Stokes vector to both the exfil
// batcher (blocking, since exfil output must not silently lose science
// data) and the monitor (best-effort, since it is only a telemetry
// average).
func (o *Orchestrator) teeStokes(in <-chan payload.Stokes, toExfil, toMonitor chan<- payload.Stokes) error {
	for {
		select {
		case <-o.sd.C():
			return nil
		case s, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case toExfil <- s:
			case <-o.sd.C():
				return nil
			}
			select {
			case toMonitor <- s:
			default:
			}
		}
	}
}

// pumpCaptureStats forwards Capture's periodic stats snapshots to the
// metrics source and folds the Monitor's snapshot alongside on the same
// cadence.
func (o *Orchestrator) pumpCaptureStats(in <-chan capture.Stats) error {
	for {
		select {
		case <-o.sd.C():
			return nil
		case s, ok := <-in:
			if !ok {
				return nil
			}
			o.src.UpdateCapture(s)
			o.src.UpdateMonitor(o.mon.Snapshot())
		}
	}
}

// applyRequantGain applies --requant-gain: a bare number sets a flat gain
// across every channel, anything else is treated as the path to a
// per-channel gain-table file from a prior calibration run.
func (o *Orchestrator) applyRequantGain(arg string) error {
	if gain, err := strconv.ParseFloat(arg, 64); err == nil {
		return device.ApplyFlatGain(o.dev, gain, o.log)
	}
	table, err := device.LoadGainTable(arg)
	if err != nil {
		return err
	}
	return device.ApplyGainTable(o.dev, table, o.log)
}

func (o *Orchestrator) buildSink() (exfil.Sink, error) {
	switch o.cfg.Subcommand {
	case "filterbank":
		return exfil.NewFilterbank("grex_t0.fil", downsampleFactor(o.cfg))
	case "psrdada":
		o.log.Warn("no PSRDADA binding available, degrading to windowed-raw output", "key", o.cfg.PSRDADAKey)
		return exfil.NewWindowedRaw("grex_t0.praw", downsampleFactor(o.cfg))
	default:
		return exfil.NewWindowedRaw("grex_t0.praw", downsampleFactor(o.cfg))
	}
}

func downsampleFactor(cfg *config.Config) uint32 {
	return 1 << cfg.DownsamplePower
}
