package jffs2

import "hash/crc32"

// JFFS2 checksums use the IEEE polynomial but neither the pre- nor the
// post-inversion of the standard checksum, and a zero seed (the kernel's
// crc32(0, buf, len)). hash/crc32 applies both inversions around its
// update, so they are undone here.
func nodeCRC(p []byte) uint32 {
	const mask = 0xffffffff
	return crc32.Update(mask, crc32.IEEETable, p) ^ mask
}
