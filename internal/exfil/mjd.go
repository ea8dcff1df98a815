package exfil

import "time"

// unixEpochMJD is the Modified Julian Date of the Unix epoch
// (1970-01-01T00:00:00 UTC).
const unixEpochMJD = 40587.0

// mjdUTC converts t to a Modified Julian Date in UTC, as spec §6's
// Filterbank tstart field requires.
func mjdUTC(t time.Time) float64 {
	return unixEpochMJD + float64(t.UTC().UnixNano())/(86400.0*1e9)
}

// heimdallTimestamp formats t the way the downstream Heimdall/WindowedRaw
// UTC_START header field expects: an ISO-8601-like timestamp with
// microsecond precision, per spec §6.
func heimdallTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02-15:04:05.000000")
}
