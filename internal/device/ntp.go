package device

import (
	"fmt"
	"time"

	"github.com/beevik/ntp"
)

// AlignEpoch makes a single NTP query against addr and returns the current
// wall-clock time corrected by the measured clock offset. A failed or
// invalid query is returned as an error; there is no retry. The
// orchestrator calls it once at startup and logs the result. The shared
// epoch (package epoch) is not seeded from it: Capture sets E0 from the
// local wall clock when the first packet arrives, so the measured NTP
// offset does not enter any per-packet timestamp.
//
// When skip is true (the pipeline's --skip-ntp flag), AlignEpoch returns
// the local wall clock unadjusted.
func AlignEpoch(addr string, skip bool) (time.Time, error) {
	if skip {
		return time.Now(), nil
	}
	resp, err := ntp.Query(addr)
	if err != nil {
		return time.Time{}, fmt.Errorf("device: ntp query %s: %w", addr, err)
	}
	if err := resp.Validate(); err != nil {
		return time.Time{}, fmt.Errorf("device: ntp response from %s invalid: %w", addr, err)
	}
	return time.Now().Add(resp.ClockOffset), nil
}
