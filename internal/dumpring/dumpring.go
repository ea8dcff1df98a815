// Package dumpring implements the fixed-capacity circular buffer of the
// most recently accepted payloads, dumped to disk on external trigger, per
// spec §4.6.
package dumpring

import (
	"fmt"

	"github.com/ovro-grex/grex-t0/internal/payload"
)

// Ring is a power-of-two circular buffer of Payloads, indexed with a mask
// rather than a modulo, in the style of the mask-based ring buffer in
// catrate's generic ringBuffer. Unlike that ring, Ring never grows: it is a
// fixed-capacity overwrite buffer, matching the "N most recent payloads"
// semantics of spec §3.
type Ring struct {
	buf        []payload.Payload
	written    []bool
	mask       uint64
	writeIndex uint64
	pushes     uint64
}

// New constructs a Ring of capacity N = 2^v.
func New(v uint) (*Ring, error) {
	if v == 0 || v > 62 {
		return nil, fmt.Errorf("dumpring: invalid vbuf power %d", v)
	}
	n := uint64(1) << v
	return &Ring{
		buf:     make([]payload.Payload, n),
		written: make([]bool, n),
		mask:    n - 1,
	}, nil
}

// Cap returns N, the ring's fixed capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Push writes p at the current write index and advances it, without any
// allocation.
func (r *Ring) Push(p payload.Payload) {
	idx := r.writeIndex & r.mask
	r.buf[idx] = p
	r.written[idx] = true
	r.writeIndex++
	r.pushes++
}

// Snapshot returns the ring's N most recent payloads in temporal order,
// oldest first, as required by the dump operation of spec §4.6. Slots never
// written (only possible before the ring has filled once) contribute the
// zero-valued Payload, per spec §8's "first N-M stored slots contribute
// zero-valued payloads" invariant.
//
// Traversal starts at writeIndex (the oldest slot once the ring has
// wrapped at least once) and wraps back around to it.
func (r *Ring) Snapshot() []payload.Payload {
	n := uint64(len(r.buf))
	out := make([]payload.Payload, n)
	start := r.writeIndex & r.mask
	for i := uint64(0); i < n; i++ {
		idx := (start + i) & r.mask
		if r.written[idx] {
			out[i] = r.buf[idx]
		}
	}
	return out
}
