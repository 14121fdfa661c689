package jffs2

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"
	lzo "github.com/rasky/go-lzo"
	"github.com/ulikunitz/xz/lzma"

	"github.com/xmoezzz/go-jffs2/rubin"
)

// The kernel's lzma glue stores a raw stream with fixed parameters; the
// classic .lzma header has to be rebuilt around the data before a stock
// reader accepts it. The properties byte encodes lc=0, lp=0, pb=0.
const (
	lzmaProperties byte = 0
	lzmaDictCap         = 0x2000
	lzmaHeaderLen       = 13
)

// decompress expands the data of one inode node according to its
// compression type. dsize is the expected output length and authoritative
// for the types that do not self-terminate.
func decompress(compr byte, src []byte, dsize uint32) ([]byte, error) {
	switch compr {
	case comprNone:
		if int(dsize) > len(src) {
			return nil, errors.New("jffs2: stored data shorter than dsize")
		}
		out := make([]byte, dsize)
		copy(out, src)
		return out, nil
	case comprZero:
		return make([]byte, dsize), nil
	case comprRtime:
		return rtimeDecompress(src, int(dsize))
	case comprDynRubin:
		return rubin.Decompress(src, int(dsize))
	case comprZlib:
		zr, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, errors.Wrap(err, "zlib")
		}
		defer zr.Close()
		out := make([]byte, dsize)
		if _, err = io.ReadFull(zr, out); err != nil {
			return nil, errors.Wrap(err, "zlib")
		}
		return out, nil
	case comprLZO:
		out, err := lzo.Decompress1X(bytes.NewReader(src), len(src),
			int(dsize))
		if err != nil {
			return nil, errors.Wrap(err, "lzo")
		}
		return out, nil
	case comprLZMA:
		buf := make([]byte, lzmaHeaderLen, lzmaHeaderLen+len(src))
		buf[0] = lzmaProperties
		binary.LittleEndian.PutUint32(buf[1:], lzmaDictCap)
		binary.LittleEndian.PutUint64(buf[5:], uint64(dsize))
		buf = append(buf, src...)
		lr, err := lzma.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, errors.Wrap(err, "lzma")
		}
		out := make([]byte, dsize)
		if _, err = io.ReadFull(lr, out); err != nil {
			return nil, errors.Wrap(err, "lzma")
		}
		return out, nil
	case comprRubinMIPS:
		return nil, errors.New("jffs2: rubinmips compression is deprecated")
	case comprCopy:
		return nil, errors.New("jffs2: copy compression was never implemented")
	default:
		return nil, errors.Errorf("jffs2: unknown compression type %#02x",
			compr)
	}
}

// rtimeDecompress expands the rtime back-reference format: pairs of a
// literal byte and a repeat count copied from the byte's previous
// occurrence, tracked in a 256-entry position table.
func rtimeDecompress(src []byte, dsize int) ([]byte, error) {
	dst := make([]byte, 0, dsize)
	var positions [256]int
	for pos := 0; len(dst) < dsize; {
		if pos+2 > len(src) {
			return nil, errors.New("jffs2: rtime: truncated input")
		}
		val := src[pos]
		repeat := int(src[pos+1])
		pos += 2

		dst = append(dst, val)
		backoffs := positions[val]
		positions[val] = len(dst)
		if len(dst)+repeat > dsize {
			return nil, errors.New("jffs2: rtime: output overrun")
		}
		// The copied region may overlap its own output.
		for ; repeat > 0; repeat-- {
			dst = append(dst, dst[backoffs])
			backoffs++
		}
	}
	return dst, nil
}
