// Package epoch holds the single process-wide datum shared mutably across
// components: the wall-clock instant corresponding to the first-ever
// observed packet count. It is written once by Capture and read by every
// consumer that needs to turn a packet count into a wall-clock time.
package epoch

import (
	"sync/atomic"
	"time"
)

// SampleInterval is the FPGA's fixed packet cadence.
const SampleInterval = 8192 * time.Nanosecond

var (
	epochNanos int64
	firstCount uint64
	set        atomic.Bool
)

// Set records E0 (the wall-clock time of the first observed packet) and the
// count it carried. It is a no-op after the first call: per §5 this atomic
// is written once.
func Set(t time.Time, count uint64) {
	if !set.CompareAndSwap(false, true) {
		return
	}
	atomic.StoreInt64(&epochNanos, t.UnixNano())
	atomic.StoreUint64(&firstCount, count)
}

// IsSet reports whether Set has been called yet.
func IsSet() bool {
	return set.Load()
}

// E0 returns the recorded epoch time. Returns the zero Time if Set has not
// been called yet.
func E0() time.Time {
	if !set.Load() {
		return time.Time{}
	}
	return time.Unix(0, atomic.LoadInt64(&epochNanos))
}

// FirstCount returns the count recorded by Set.
func FirstCount() uint64 {
	return atomic.LoadUint64(&firstCount)
}

// TimeForCount converts a packet count to wall-clock time using the
// recorded epoch: E0 + (count-FirstCount())*8.192us, since E0 is the time
// of the first observed packet. Per the design notes, this is the
// only place per-payload timestamps are derived; no component should read
// the OS clock for per-packet timing.
func TimeForCount(count uint64) time.Time {
	e0 := E0()
	first := FirstCount()
	delta := time.Duration(count-first) * SampleInterval
	return e0.Add(delta)
}

// reset is a test-only helper to allow repeated Set calls across test cases
// in the same process.
func reset() {
	set.Store(false)
	atomic.StoreInt64(&epochNanos, 0)
	atomic.StoreUint64(&firstCount, 0)
}
