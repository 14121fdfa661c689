package rubin

import "encoding/binary"

// bitReader supplies single bits of the coded body in the order the encoder
// emitted them: bytes in sequence, most-significant bit of each byte first.
// It keeps a 32-bit lookahead word composed so that byte k of the current
// chunk occupies bits 8k..8k+7; stream bit n of the chunk then sits at bit
// position n^7 of the word.
type bitReader struct {
	in  []byte
	pos int    // byte position of the lookahead chunk
	w   uint32 // lookahead word
	off uint   // bit offset into the lookahead, 0..31
}

func (br *bitReader) init(in []byte, off uint) {
	br.in = in
	br.pos = 0
	br.w = loadWord(in, 0)
	br.off = off
}

// loadWord composes the 4-byte chunk at pos. A short final chunk is padded
// with zero bytes; the caller has to supply enough input for the requested
// output, trailing zero bits only feed the final renormalizations.
func loadWord(in []byte, pos int) uint32 {
	if pos+4 <= len(in) {
		return binary.LittleEndian.Uint32(in[pos:])
	}
	var w uint32
	for i := 0; pos+i < len(in); i++ {
		w |= uint32(in[pos+i]) << (8 * uint(i))
	}
	return w
}

// nextBit returns the next bit of the stream, refilling the lookahead when
// it is exhausted.
func (br *bitReader) nextBit() uint32 {
	bit := br.w >> (br.off ^ 7) & 1
	br.off++
	if br.off > 31 {
		br.pos += 4
		br.w = loadWord(br.in, br.pos)
		br.off = 0
	}
	return bit
}
