package payload

// Pool is a fixed-size, channel-backed free list of Bytes slots shared
// between Capture and Decoder. Producers acquire a slot by reference,
// write into it, and hand it downstream; the consumer that finishes with a
// slot returns it via Put so it is recycled without reallocation, per the
// ownership model in the design notes.
type Pool struct {
	free chan *Bytes
}

// NewPool preallocates size slots and returns a Pool holding all of them.
func NewPool(size int) *Pool {
	p := &Pool{free: make(chan *Bytes, size)}
	for i := 0; i < size; i++ {
		p.free <- new(Bytes)
	}
	return p
}

// Get acquires a slot, blocking until one is available. Capacity sizing is
// the caller's responsibility: the pool should hold enough slots to cover
// every in-flight packet across Capture's reorder backlog and the
// Capture-to-Decoder channel (Decoder returns each slot as soon as it has
// decoded it).
func (p *Pool) Get() *Bytes {
	return <-p.free
}

// Put returns a slot to the pool. It never blocks; a pool that is
// momentarily over-full (more slots returned than were ever handed out, a
// programming error) silently drops the excess rather than deadlocking the
// returner.
func (p *Pool) Put(b *Bytes) {
	select {
	case p.free <- b:
	default:
	}
}
