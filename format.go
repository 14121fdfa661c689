package jffs2

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// magicBitmask marks the start of every node. An image whose first two
// bytes read 0x1985 little-endian is a little-endian image; 0x8519 means
// the image is big-endian.
const magicBitmask = 0x1985

// Node types handled by this package. Other types (cleanmarker, summary,
// xattr) are skipped during the scan.
const (
	nodetypeDirent = 0xe001
	nodetypeInode  = 0xe002
)

// Compression types stored in the compr field of an inode node.
const (
	comprNone      = 0x00
	comprZero      = 0x01
	comprRtime     = 0x02
	comprRubinMIPS = 0x03
	comprCopy      = 0x04
	comprDynRubin  = 0x05
	comprZlib      = 0x06
	comprLZO       = 0x07
	comprLZMA      = 0x08
)

// Directory entry types as stored in a dirent node.
const (
	dtDir = 4
	dtReg = 8
)

// Wire sizes: the unknown-node header and the fixed parts of the two node
// types, counted from the end of the header.
const (
	headerLen = 12
	direntLen = 28
	inodeLen  = 56
)

// rootInode is the inode number of the filesystem root; dirent parent
// chains terminate there.
const rootInode = 1

var errNodeTooShort = errors.New("jffs2: node shorter than its fixed part")

// nodeHeader is the unknown-node header preceding every node.
type nodeHeader struct {
	nodetype uint16
	totlen   uint32
	hdrCRC   uint32
}

// unmarshal parses the header from the start of a node. p must hold at
// least headerLen bytes.
func (h *nodeHeader) unmarshal(bo binary.ByteOrder, p []byte) {
	h.nodetype = bo.Uint16(p[2:])
	h.totlen = bo.Uint32(p[4:])
	h.hdrCRC = bo.Uint32(p[8:])
}

// verify checks the header checksum, which covers the magic, node type and
// total length fields.
func (h *nodeHeader) verify(p []byte) bool {
	return nodeCRC(p[:headerLen-4]) == h.hdrCRC
}

// dirent is a directory entry node. It binds a name to an inode number
// under a parent inode; newer versions replace older ones.
type dirent struct {
	pino    uint32
	version uint32
	ino     uint32
	mctime  uint32
	ntype   byte
	nodeCRC uint32
	nameCRC uint32
	name    string
}

// unmarshal parses a dirent from a full node, header included.
func (d *dirent) unmarshal(bo binary.ByteOrder, raw []byte) error {
	if len(raw) < headerLen+direntLen {
		return errNodeTooShort
	}
	d.pino = bo.Uint32(raw[12:])
	d.version = bo.Uint32(raw[16:])
	d.ino = bo.Uint32(raw[20:])
	d.mctime = bo.Uint32(raw[24:])
	nsize := int(raw[28])
	d.ntype = raw[29]
	d.nodeCRC = bo.Uint32(raw[32:])
	d.nameCRC = bo.Uint32(raw[36:])
	if headerLen+direntLen+nsize > len(raw) {
		return errors.New("jffs2: dirent name out of bounds")
	}
	name := raw[headerLen+direntLen : headerLen+direntLen+nsize]
	// names are NUL-truncated
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	d.name = string(name)
	return nil
}

// verify checks the node checksum (header plus fixed fields, minus the two
// trailing CRCs) and the name checksum over the untruncated name bytes.
func (d *dirent) verify(raw []byte) bool {
	if nodeCRC(raw[:headerLen+direntLen-8]) != d.nodeCRC {
		return false
	}
	nsize := int(raw[28])
	name := raw[headerLen+direntLen : headerLen+direntLen+nsize]
	return nodeCRC(name) == d.nameCRC
}

// inode is a data node: a compressed extent of csize bytes covering dsize
// bytes at offset within the file identified by ino.
type inode struct {
	ino     uint32
	version uint32
	isize   uint32
	mtime   uint32
	offset  uint32
	csize   uint32
	dsize   uint32
	compr   byte
	flags   uint16
	dataCRC uint32
	nodeCRC uint32
	data    int // image offset of the compressed data
}

// unmarshal parses an inode from a full node, header included. pos is the
// node's offset in the image, recorded so the data can be sliced later.
func (n *inode) unmarshal(bo binary.ByteOrder, raw []byte, pos int) error {
	if len(raw) < headerLen+inodeLen {
		return errNodeTooShort
	}
	n.ino = bo.Uint32(raw[12:])
	n.version = bo.Uint32(raw[16:])
	n.isize = bo.Uint32(raw[28:])
	n.mtime = bo.Uint32(raw[36:])
	n.offset = bo.Uint32(raw[44:])
	n.csize = bo.Uint32(raw[48:])
	n.dsize = bo.Uint32(raw[52:])
	n.compr = raw[56]
	n.flags = bo.Uint16(raw[58:])
	n.dataCRC = bo.Uint32(raw[60:])
	n.nodeCRC = bo.Uint32(raw[64:])
	if headerLen+inodeLen+int(n.csize) > len(raw) {
		return errors.New("jffs2: inode data out of bounds")
	}
	n.data = pos + headerLen + inodeLen
	return nil
}

// verify checks the node checksum; it covers everything up to the data
// checksum field.
func (n *inode) verify(raw []byte) bool {
	return nodeCRC(raw[:headerLen+inodeLen-8]) == n.nodeCRC
}

// pad4 rounds a node length up to the 4-byte alignment the format keeps
// between nodes.
func pad4(n int) int {
	return (n + 3) &^ 3
}
