package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, 60000, cfg.CapPort)
	require.Equal(t, 65432, cfg.TrigPort)
	require.Equal(t, 8083, cfg.MetricsPort)
	require.EqualValues(t, 2, cfg.DownsamplePower)
	require.Equal(t, "time.google.com", cfg.NTPAddr)
	require.Equal(t, "", cfg.Subcommand)
}

func TestParseCoreRangeValid(t *testing.T) {
	cfg, err := Parse([]string{"--core-range", "2:9"})
	require.NoError(t, err)
	require.Equal(t, 2, cfg.CoreRangeStart)
	require.Equal(t, 9, cfg.CoreRangeStop)
}

func TestParseCoreRangeTooFewCores(t *testing.T) {
	_, err := Parse([]string{"--core-range", "2:5"})
	require.Error(t, err)
}

func TestParseDownsamplePowerOutOfRange(t *testing.T) {
	_, err := Parse([]string{"--downsample-power", "10"})
	require.Error(t, err)
}

func TestParsePSRDADASubcommand(t *testing.T) {
	cfg, err := Parse([]string{"psrdada", "--key", "DEADBEEF", "--samples", "4096"})
	require.NoError(t, err)
	require.Equal(t, "psrdada", cfg.Subcommand)
	require.Equal(t, "DEADBEEF", cfg.PSRDADAKey)
	require.Equal(t, 4096, cfg.PSRDADASamples)
}

func TestParsePSRDADASubcommandRequiresKey(t *testing.T) {
	_, err := Parse([]string{"psrdada", "--samples", "4096"})
	require.Error(t, err)
}

func TestParseFilterbankSubcommand(t *testing.T) {
	cfg, err := Parse([]string{"filterbank"})
	require.NoError(t, err)
	require.Equal(t, "filterbank", cfg.Subcommand)
}

func TestParseRequantGainAcceptsFlatValueOrPath(t *testing.T) {
	cfg, err := Parse([]string{"--requant-gain", "2.5"})
	require.NoError(t, err)
	require.Equal(t, "2.5", cfg.RequantGain)

	cfg, err = Parse([]string{"--requant-gain", "/etc/grex/gains.txt"})
	require.NoError(t, err)
	require.Equal(t, "/etc/grex/gains.txt", cfg.RequantGain)
}

func TestParseYAMLConfigSeedsDefaultsButCLIWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cap_port: 7000\ntrig_port: 7001\n"), 0o644))

	cfg, err := Parse([]string{"--config", path, "--trig-port", "9999"})
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.CapPort)
	require.Equal(t, 9999, cfg.TrigPort)
}
