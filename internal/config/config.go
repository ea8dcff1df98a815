// Package config parses the pipeline's CLI surface, per spec §6's
// authoritative flag list, in the teacher's pflag idiom (see
// src/appserver.go and src/kissutil.go for the StringP/BoolP/custom-Usage
// pattern this generalizes).
package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds every flag spec §6 names plus the active subcommand, if
// any.
type Config struct {
	CoreRangeStart int
	CoreRangeStop  int

	CapPort      int
	TrigPort     int
	MetricsPort  int
	DownsamplePower uint
	VBufPower    uint
	FPGAAddr     string
	NTPAddr      string
	ForceTrig    bool
	SkipNTP      bool
	// RequantGain is either a bare float (flat gain across every channel)
	// or a path to a per-channel gain-table file from a prior calibration
	// run; empty means leave the board's requant gain untouched.
	RequantGain  string
	InjectionCadenceSeconds int
	PulsePath    string

	// Subcommand is "", "psrdada" or "filterbank".
	Subcommand string
	PSRDADAKey     string
	PSRDADASamples int
}

// Parse parses args (typically os.Args[1:]) into a Config, applying spec
// §6's defaults, and validating --core-range as spec §6 requires (>=8
// cores, STOP >= START). If --config names a YAML file, its values seed
// the defaults before flags are applied, so CLI flags always win.
func Parse(args []string) (*Config, error) {
	cfg := &Config{
		CapPort:         60000,
		TrigPort:        65432,
		MetricsPort:     8083,
		DownsamplePower: 2,
		VBufPower:       15,
		NTPAddr:         "time.google.com",
		InjectionCadenceSeconds: 3600,
	}

	if configPath := scanConfigFlag(args); configPath != "" {
		if err := applyYAMLDefaults(configPath, cfg); err != nil {
			return nil, err
		}
	}

	fs := pflag.NewFlagSet("grex-t0", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: grex-t0 [flags] [psrdada --key HEX --samples N | filterbank]\n\n")
		fs.PrintDefaults()
	}

	var configPath string
	fs.StringVar(&configPath, "config", "", "Optional YAML file of flag defaults.")

	var coreRange string
	fs.StringVar(&coreRange, "core-range", "", "CPU core range START:STOP, e.g. 2:9.")
	fs.IntVar(&cfg.CapPort, "cap-port", cfg.CapPort, "UDP port for the voltage capture socket.")
	fs.IntVar(&cfg.TrigPort, "trig-port", cfg.TrigPort, "UDP port for the external dump trigger.")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "TCP port for the /metrics HTTP endpoint.")
	fs.UintVar(&cfg.DownsamplePower, "downsample-power", cfg.DownsamplePower, "Time downsample power d, 1..=9.")
	fs.UintVar(&cfg.VBufPower, "vbuf-power", cfg.VBufPower, "DumpRing size power v.")
	fs.StringVar(&cfg.FPGAAddr, "fpga-addr", cfg.FPGAAddr, "FPGA control-plane address.")
	fs.StringVar(&cfg.NTPAddr, "ntp-addr", cfg.NTPAddr, "NTP server for epoch alignment.")
	fs.BoolVar(&cfg.ForceTrig, "trig", cfg.ForceTrig, "Force PPS-based epoch alignment (parsed only; epoch alignment does not read it).")
	fs.BoolVar(&cfg.SkipNTP, "skip-ntp", cfg.SkipNTP, "Skip NTP alignment and use the local wall clock.")
	fs.StringVar(&cfg.RequantGain, "requant-gain", cfg.RequantGain, "Flat gain value or path to a per-channel gain-table file to apply at startup.")
	fs.IntVar(&cfg.InjectionCadenceSeconds, "injection-cadence", cfg.InjectionCadenceSeconds, "Seconds between synthetic pulse injections.")
	fs.StringVar(&cfg.PulsePath, "pulse-path", cfg.PulsePath, "Directory of synthetic pulse files.")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if coreRange != "" {
		start, stop, err := parseCoreRange(coreRange)
		if err != nil {
			return nil, err
		}
		cfg.CoreRangeStart, cfg.CoreRangeStop = start, stop
		if stop-start+1 < 8 {
			return nil, fmt.Errorf("config: core range %s spans fewer than 8 cores", coreRange)
		}
		if stop < start {
			return nil, fmt.Errorf("config: core range %s has STOP < START", coreRange)
		}
	}

	rest := fs.Args()
	if len(rest) > 0 {
		switch rest[0] {
		case "psrdada":
			cfg.Subcommand = "psrdada"
			if err := parsePSRDADASubcommand(rest[1:], cfg); err != nil {
				return nil, err
			}
		case "filterbank":
			cfg.Subcommand = "filterbank"
		default:
			return nil, fmt.Errorf("config: unknown subcommand %q", rest[0])
		}
	}

	if cfg.DownsamplePower < 1 || cfg.DownsamplePower > 9 {
		return nil, fmt.Errorf("config: downsample-power %d out of range 1..=9", cfg.DownsamplePower)
	}

	return cfg, nil
}

func parsePSRDADASubcommand(args []string, cfg *Config) error {
	fs := pflag.NewFlagSet("psrdada", pflag.ContinueOnError)
	fs.StringVar(&cfg.PSRDADAKey, "key", "", "PSRDADA buffer key, hex.")
	fs.IntVar(&cfg.PSRDADASamples, "samples", 0, "Samples per PSRDADA block.")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.PSRDADAKey == "" {
		return fmt.Errorf("config: psrdada subcommand requires --key")
	}
	return nil
}

// scanConfigFlag looks for --config/-config VALUE or --config=VALUE
// ahead of the full pflag parse, so YAML-sourced defaults can seed the
// flag set before it parses the real command line.
func scanConfigFlag(args []string) string {
	for i, a := range args {
		switch {
		case a == "--config" || a == "-config":
			if i+1 < len(args) {
				return args[i+1]
			}
		case len(a) > len("--config=") && a[:len("--config=")] == "--config=":
			return a[len("--config="):]
		}
	}
	return ""
}

func parseCoreRange(s string) (start, stop int, err error) {
	n, err := fmt.Sscanf(s, "%d:%d", &start, &stop)
	if err != nil || n != 2 {
		return 0, 0, fmt.Errorf("config: core-range %q must be START:STOP", s)
	}
	return start, stop, nil
}

// yamlDefaults mirrors the subset of Config that may be overridden via
// --config; unexported flag internals (subcommand state) stay CLI-only.
type yamlDefaults struct {
	CapPort                 *int     `yaml:"cap_port"`
	TrigPort                *int     `yaml:"trig_port"`
	MetricsPort             *int     `yaml:"metrics_port"`
	DownsamplePower         *uint    `yaml:"downsample_power"`
	VBufPower               *uint    `yaml:"vbuf_power"`
	FPGAAddr                *string  `yaml:"fpga_addr"`
	NTPAddr                 *string  `yaml:"ntp_addr"`
	SkipNTP                 *bool    `yaml:"skip_ntp"`
	RequantGain             *string  `yaml:"requant_gain"`
	InjectionCadenceSeconds *int     `yaml:"injection_cadence_seconds"`
	PulsePath               *string  `yaml:"pulse_path"`
}

func applyYAMLDefaults(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var y yamlDefaults
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if y.CapPort != nil {
		cfg.CapPort = *y.CapPort
	}
	if y.TrigPort != nil {
		cfg.TrigPort = *y.TrigPort
	}
	if y.MetricsPort != nil {
		cfg.MetricsPort = *y.MetricsPort
	}
	if y.DownsamplePower != nil {
		cfg.DownsamplePower = *y.DownsamplePower
	}
	if y.VBufPower != nil {
		cfg.VBufPower = *y.VBufPower
	}
	if y.FPGAAddr != nil {
		cfg.FPGAAddr = *y.FPGAAddr
	}
	if y.NTPAddr != nil {
		cfg.NTPAddr = *y.NTPAddr
	}
	if y.SkipNTP != nil {
		cfg.SkipNTP = *y.SkipNTP
	}
	if y.RequantGain != nil {
		cfg.RequantGain = *y.RequantGain
	}
	if y.InjectionCadenceSeconds != nil {
		cfg.InjectionCadenceSeconds = *y.InjectionCadenceSeconds
	}
	if y.PulsePath != nil {
		cfg.PulsePath = *y.PulsePath
	}
	return nil
}
