// Package rubin implements the fixed-model binary arithmetic coder that
// JFFS2 uses for dynrubin-compressed inodes.
//
// The model is positional: one weight per bit position of an output byte,
// fixed for the whole stream and derived from an 8-byte header leading
// the compressed data. The coded body is consumed bit by bit, within each
// byte most-significant bit first.
package rubin

import "errors"

// The coder works on a 16-bit register; upperBit marks the half-way point
// of the interval and triggers renormalization.
const (
	registerBits = 16
	upperBit     = 1 << (registerBits - 1)
	lowerBits    = upperBit - 1
)

// headerLen is the number of weight bytes leading the compressed stream.
const headerLen = 8

var errShortInput = errors.New("rubin: input shorter than header and seed")

// weights holds the per-bit-position probability model. A weight counts,
// out of 256, the chance that the bit is zero. A zero header byte yields
// the saturated weight 256.
type weights [8]uint32

func newWeights(hdr []byte) weights {
	var w weights
	for i := range w {
		w[i] = 256 - uint32(hdr[i])
	}
	return w
}

// decoder tracks the arithmetic interval [q, q+p) and the decoded value
// window recQ. It is owned by a single Decompress call.
type decoder struct {
	br   bitReader
	p    uint32
	q    uint32
	recQ uint32
}

// init seeds the decoder from the coded body: the full interval, and the
// first two body bytes as the big-endian value window. The bit reader
// starts past those 16 seed bits.
func (d *decoder) init(body []byte) {
	d.p = 2 * upperBit
	d.q = 0
	d.recQ = uint32(body[0])<<8 | uint32(body[1])
	d.br.init(body, 16)
}

// decodeBit renormalizes the interval, splits it according to weight and
// returns the decoded bit.
func (d *decoder) decodeBit(weight uint32) uint32 {
	// Rescale while the interval sits in the upper half or has become
	// too narrow to split, pulling one code bit per iteration.
	for d.q&upperBit != 0 || d.p+d.q <= upperBit {
		d.q = (d.q & lowerBits) << 1
		d.p <<= 1
		d.recQ = (d.recQ&lowerBits)<<1 | d.br.nextBit()
	}
	i0 := weight * d.p >> 8
	if i0 == 0 {
		i0 = 1
	}
	// No upper clamp on i0. A saturated weight can push i0 up to p and
	// beyond; the matching encoder relies on the identical arithmetic
	// and any corruption is left to the data checksum.
	if d.recQ < d.q+i0 {
		d.p = i0
		return 0
	}
	d.p -= i0
	d.q += i0
	return 1
}

// Decompress decodes a dynrubin payload, an 8-byte weight header followed
// by the arithmetic-coded body, into a new slice of destLen bytes.
//
// destLen is authoritative: decoding stops when it is reached, there is no
// end-of-stream marker. The payload must be long enough to produce destLen
// bytes; a truncated body yields garbage output bytes rather than an error,
// which callers are expected to catch with a checksum over the result.
func Decompress(src []byte, destLen int) ([]byte, error) {
	if destLen < 0 {
		return nil, errors.New("rubin: negative destination length")
	}
	dst := make([]byte, destLen)
	if destLen == 0 {
		return dst, nil
	}
	if len(src) < headerLen+2 {
		return nil, errShortInput
	}
	w := newWeights(src[:headerLen])
	var d decoder
	d.init(src[headerLen:])
	for i := range dst {
		var b uint32
		for _, weight := range w {
			b >>= 1
			if d.decodeBit(weight) != 0 {
				b |= 0x80
			}
		}
		// The first decoded bit has been shifted down to bit 0.
		dst[i] = byte(b)
	}
	return dst, nil
}
