// Package payload defines the fixed-layout voltage sample carried over the
// wire from the FPGA channelizer, and the Stokes-I reduction used by the
// downsample stage.
package payload

import "encoding/binary"

// Channels is the number of frequency channels produced by the FPGA's
// channelizer (set by gateware, never reconfigured at runtime).
const Channels = 2048

// Size is the number of bytes in one wire datagram: an 8-byte count
// followed by Channels*2 polarizations of signed 8-bit (re, im) pairs.
const Size = 8 + 2*Channels*2

// Bytes is one raw, undecoded wire datagram.
type Bytes [Size]byte

// Sample is a single Q1.7 fixed-point complex voltage sample.
type Sample struct {
	Re, Im int8
}

// Payload is the decoded form of one wire datagram: a monotonic packet
// index and the per-channel complex voltage for both polarizations.
type Payload struct {
	Count uint64
	PolA  [Channels]Sample
	PolB  [Channels]Sample
}

// Decode parses a raw wire datagram into a Payload. It is a pure,
// deterministic function with no failure modes beyond the caller-guaranteed
// size of b.
//
// Wire layout: the first 8 bytes are a big-endian count. Every 8-byte word
// after that carries two adjacent channels of both polarizations, in the
// order [A[n].re, A[n].im, B[n].re, B[n].im, A[n+1].re, A[n+1].im, B[n+1].re, B[n+1].im].
func Decode(b *Bytes) Payload {
	var p Payload
	p.Count = binary.BigEndian.Uint64(b[0:8])

	words := b[8:]
	for n := 0; n < Channels; n += 2 {
		w := words[n*4 : n*4+8]
		p.PolA[n] = Sample{Re: int8(w[0]), Im: int8(w[1])}
		p.PolB[n] = Sample{Re: int8(w[2]), Im: int8(w[3])}
		p.PolA[n+1] = Sample{Re: int8(w[4]), Im: int8(w[5])}
		p.PolB[n+1] = Sample{Re: int8(w[6]), Im: int8(w[7])}
	}
	return p
}

// Encode is the inverse of Decode: it word-packs a Payload back into the
// wire layout. Used for loopback tests and as the reference encoder for
// synthetic/injected test streams.
func Encode(p *Payload) Bytes {
	var b Bytes
	binary.BigEndian.PutUint64(b[0:8], p.Count)

	words := b[8:]
	for n := 0; n < Channels; n += 2 {
		w := words[n*4 : n*4+8]
		w[0], w[1] = byte(p.PolA[n].Re), byte(p.PolA[n].Im)
		w[2], w[3] = byte(p.PolB[n].Re), byte(p.PolB[n].Im)
		w[4], w[5] = byte(p.PolA[n+1].Re), byte(p.PolA[n+1].Im)
		w[6], w[7] = byte(p.PolB[n+1].Re), byte(p.PolB[n+1].Im)
	}
	return b
}

// Stokes is a per-channel total-intensity vector.
type Stokes [Channels]float32

// StokesI computes the Stokes-I power spectrum for a payload:
//
//	S_i = (|A_i|^2 + |B_i|^2) / 2^14
//
// Each |x|^2 fits comfortably in an int32 (inputs are int8), so the whole
// computation is done in integer arithmetic up to the final normalizing
// divide, per the numerics note in the design notes.
func (p *Payload) StokesI() Stokes {
	var s Stokes
	for i := 0; i < Channels; i++ {
		a := p.PolA[i]
		b := p.PolB[i]
		magA := int32(a.Re)*int32(a.Re) + int32(a.Im)*int32(a.Im)
		magB := int32(b.Re)*int32(b.Re) + int32(b.Im)*int32(b.Im)
		s[i] = float32(magA+magB) / 16384.0
	}
	return s
}
