// Command grex-t0 runs the T0 real-time pipeline: UDP capture, ordering,
// dump-ring recording, Stokes downsampling, synthetic pulse injection and
// exfiltration, plus the FPGA control plane, per spec §6/§7.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/ovro-grex/grex-t0/internal/config"
	"github.com/ovro-grex/grex-t0/internal/orchestrator"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "grex-t0: %v\n", err)
		return 2
	}

	if err := orchestrator.Run(cfg); err != nil {
		log.Error("fatal pipeline error", "err", err)
		return 1
	}
	return 0
}
