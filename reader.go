package jffs2

import (
	"encoding/binary"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// maxPathDepth bounds dirent parent chains; anything deeper is treated as
// a loop in a corrupted image.
const maxPathDepth = 32

// ReaderConfig holds the options for a Reader.
type ReaderConfig struct {
	// Strict enables checksum verification: nodes failing their node or
	// name checksum are dropped during the scan, and a data checksum
	// mismatch makes ReadFile fail. The default mirrors the kernel's
	// out-of-tree extractors and ignores all checksums.
	Strict bool
}

// Reader provides access to the files of a JFFS2 image. The image data is
// borrowed for the lifetime of the Reader and never modified.
type Reader struct {
	data    []byte
	bo      binary.ByteOrder
	strict  bool
	dirents map[uint32]*dirent
	inodes  map[uint32][]*inode
}

// Entry describes a file or directory of the image.
type Entry struct {
	// Path of the entry relative to the filesystem root, with forward
	// slashes.
	Path string
	// IsDir reports whether the entry is a directory.
	IsDir bool
	// Size of the reconstructed file content; zero for directories.
	Size int64

	ino uint32
}

// NewReader scans a JFFS2 image with the default configuration.
func NewReader(data []byte) (*Reader, error) {
	return ReaderConfig{}.NewReader(data)
}

// OpenFile reads an image file and scans it with the default
// configuration.
func OpenFile(name string) (*Reader, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return NewReader(data)
}

// NewReader scans a JFFS2 image.
func (c ReaderConfig) NewReader(data []byte) (*Reader, error) {
	if len(data) < 2 {
		return nil, errors.New("jffs2: image too small")
	}
	r := &Reader{
		data:    data,
		strict:  c.Strict,
		dirents: make(map[uint32]*dirent),
		inodes:  make(map[uint32][]*inode),
	}
	switch binary.LittleEndian.Uint16(data) {
	case magicBitmask:
		r.bo = binary.LittleEndian
	case 0x8519:
		r.bo = binary.BigEndian
	default:
		return nil, errors.New("jffs2: image has no jffs2 magic")
	}
	r.scan()
	return r, nil
}

// scan walks the image node by node, resynchronizing on the magic when a
// node header is implausible, and collects the newest dirent per inode
// number and all inode data nodes.
func (r *Reader) scan() {
	for pos := 0; pos+headerLen <= len(r.data); {
		if r.bo.Uint16(r.data[pos:]) != magicBitmask {
			pos += 4
			continue
		}
		var h nodeHeader
		h.unmarshal(r.bo, r.data[pos:])
		if h.totlen == 0 || int(h.totlen) > len(r.data)-pos {
			break
		}
		if r.strict && !h.verify(r.data[pos:]) {
			pos += 4
			continue
		}
		raw := r.data[pos : pos+int(h.totlen)]
		switch h.nodetype {
		case nodetypeDirent:
			r.scanDirent(raw)
		case nodetypeInode:
			r.scanInode(raw, pos)
		}
		pos += pad4(int(h.totlen))
	}
}

func (r *Reader) scanDirent(raw []byte) {
	var d dirent
	if err := d.unmarshal(r.bo, raw); err != nil {
		return
	}
	if r.strict && !d.verify(raw) {
		return
	}
	if old, ok := r.dirents[d.ino]; ok && old.version > d.version {
		return
	}
	r.dirents[d.ino] = &d
}

func (r *Reader) scanInode(raw []byte, pos int) {
	var n inode
	if err := n.unmarshal(r.bo, raw, pos); err != nil {
		return
	}
	if r.strict && !n.verify(raw) {
		return
	}
	// An older node for the same extent is obsolete.
	for _, old := range r.inodes[n.ino] {
		if old.version > n.version && old.offset == n.offset {
			return
		}
	}
	r.inodes[n.ino] = append(r.inodes[n.ino], &n)
}

// resolve follows the parent chain of a dirent up to the root and returns
// the slash-separated path and the entry type.
func (r *Reader) resolve(ino uint32) (string, byte, error) {
	d, ok := r.dirents[ino]
	if !ok {
		return "", 0, errors.Errorf("jffs2: no dirent for inode %d", ino)
	}
	ntype := d.ntype
	var parts []string
	for depth := 0; ; depth++ {
		if depth >= maxPathDepth {
			return "", 0, errors.Errorf(
				"jffs2: dirent chain for inode %d exceeds depth %d",
				ino, maxPathDepth)
		}
		parts = append(parts, d.name)
		if d.pino == rootInode {
			break
		}
		if d, ok = r.dirents[d.pino]; !ok {
			return "", 0, errors.Errorf(
				"jffs2: missing parent dirent %d", ino)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return path.Join(parts...), ntype, nil
}

// Entries returns the files and directories of the image sorted by path.
// Entry types other than regular files and directories are omitted, as
// are dirents whose parent chains cannot be resolved.
func (r *Reader) Entries() ([]*Entry, error) {
	entries := make([]*Entry, 0, len(r.dirents))
	for ino := range r.dirents {
		if ino == 0 {
			// deletion dirent
			continue
		}
		p, ntype, err := r.resolve(ino)
		if err != nil || p == "" {
			continue
		}
		switch ntype {
		case dtDir:
			entries = append(entries, &Entry{
				Path:  p,
				IsDir: true,
				ino:   ino,
			})
		case dtReg:
			entries = append(entries, &Entry{
				Path: p,
				Size: r.fileSize(ino),
				ino:  ino,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// fileSize reports the size of the newest inode version, which is
// authoritative for truncations.
func (r *Reader) fileSize(ino uint32) int64 {
	var version, isize uint32
	for _, n := range r.inodes[ino] {
		if n.version >= version {
			version = n.version
			isize = n.isize
		}
	}
	return int64(isize)
}

// ReadFile reconstructs the content of a file entry. Data nodes are
// applied in version order at their file offsets, so overwrites and holes
// behave the way the filesystem replays them; the final length is the
// newest node's file size.
func (r *Reader) ReadFile(e *Entry) ([]byte, error) {
	if e.IsDir {
		return nil, errors.Errorf("jffs2: %s is a directory", e.Path)
	}
	nodes := append([]*inode(nil), r.inodes[e.ino]...)
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].version < nodes[j].version
	})
	var buf []byte
	for _, n := range nodes {
		data := r.data[n.data : n.data+int(n.csize)]
		if r.strict && nodeCRC(data) != n.dataCRC {
			return nil, errors.Errorf(
				"jffs2: %s: data checksum mismatch in inode %d version %d",
				e.Path, n.ino, n.version)
		}
		out, err := decompress(n.compr, data, n.dsize)
		if err != nil {
			return nil, errors.Wrapf(err,
				"jffs2: %s: inode %d version %d", e.Path, n.ino,
				n.version)
		}
		end := int(n.offset) + len(out)
		for len(buf) < end {
			buf = append(buf, 0)
		}
		copy(buf[n.offset:], out)
	}
	size := int(r.fileSize(e.ino))
	for len(buf) < size {
		buf = append(buf, 0)
	}
	return buf[:size], nil
}

// Extract writes all entries of the image below dir. Entries whose paths
// are not local to dir are rejected.
func (r *Reader) Extract(dir string) error {
	entries, err := r.Entries()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err = r.extractEntry(dir, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reader) extractEntry(dir string, e *Entry) error {
	name := filepath.FromSlash(e.Path)
	if !filepath.IsLocal(name) {
		return errors.Errorf("jffs2: entry path %q escapes the target",
			e.Path)
	}
	target := filepath.Join(dir, name)
	if e.IsDir {
		return os.MkdirAll(target, 0o755)
	}
	data, err := r.ReadFile(e)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}
