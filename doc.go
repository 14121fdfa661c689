// Package jffs2 reads JFFS2 flash filesystem images.
//
// A Reader scans an image for directory entry and inode nodes, keeps the
// newest node versions, and reconstructs file contents from the per-node
// compressed data. All compression types the kernel writes are supported
// except the deprecated rubinmips and the never-implemented copy type.
package jffs2
