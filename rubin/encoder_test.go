package rubin

// The package exports no encoder; the one below exists to exercise the
// round-trip behavior of the decoder. It mirrors the dynrubin compressor:
// the same renormalization emitting the top bit of q, an upper clamp on
// the encode side, and 16 flush bits of q at the end.

type bitWriter struct {
	buf []byte
	ofs int
}

// pushBit appends a bit, most-significant bit of each byte first.
func (bw *bitWriter) pushBit(bit uint32) {
	if bw.ofs>>3 >= len(bw.buf) {
		bw.buf = append(bw.buf, 0)
	}
	if bit != 0 {
		bw.buf[bw.ofs>>3] |= 0x80 >> uint(bw.ofs&7)
	}
	bw.ofs++
}

type encoder struct {
	bw bitWriter
	p  uint32
	q  uint32
}

func newEncoder() *encoder {
	return &encoder{p: 2 * upperBit}
}

func (e *encoder) encodeBit(weight, bit uint32) {
	for e.q&upperBit != 0 || e.p+e.q <= upperBit {
		e.bw.pushBit(e.q >> (registerBits - 1))
		e.q = (e.q & lowerBits) << 1
		e.p <<= 1
	}
	i0 := weight * e.p >> 8
	if i0 == 0 {
		i0 = 1
	}
	if i0 >= e.p {
		i0 = e.p - 1
	}
	if bit == 0 {
		e.p = i0
	} else {
		e.p -= i0
		e.q += i0
	}
}

func (e *encoder) flush() {
	for i := 0; i < registerBits; i++ {
		e.bw.pushBit(e.q >> (registerBits - 1))
		e.q = (e.q & lowerBits) << 1
	}
}

// deriveWeights builds the positional model from a bit histogram of the
// input, scaled to 256ths and clamped to [1,255].
func deriveWeights(data []byte) weights {
	var ones [8]int
	for _, b := range data {
		for i := uint(0); i < 8; i++ {
			if b>>i&1 != 0 {
				ones[i]++
			}
		}
	}
	var w weights
	for i := range w {
		if len(data) == 0 {
			w[i] = 128
			continue
		}
		z := 256 - ones[i]*256/len(data)
		if z < 1 {
			z = 1
		}
		if z > 255 {
			z = 255
		}
		w[i] = uint32(z)
	}
	return w
}

// compress produces a payload Decompress understands: 8 header bytes
// followed by the coded body.
func compress(data []byte) []byte {
	return compressWeights(data, deriveWeights(data))
}

func compressWeights(data []byte, w weights) []byte {
	hdr := make([]byte, headerLen)
	for i := range w {
		hdr[i] = byte(256 - w[i])
	}
	e := newEncoder()
	for _, b := range data {
		for i := uint(0); i < 8; i++ {
			e.encodeBit(w[i], uint32(b>>i)&1)
		}
	}
	e.flush()
	// The decoder always consumes two seed bytes.
	for len(e.bw.buf) < 2 {
		e.bw.buf = append(e.bw.buf, 0)
	}
	return append(hdr, e.bw.buf...)
}
