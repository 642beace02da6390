// Package drivers defines the contracts the kernel core consumes from
// out-of-scope collaborators:
// concrete block/char devices and filesystem backends are never implemented
// here, only the interfaces the MM, IPC and syscall layers call through.
package drivers

import "github.com/Redstone-OS/forge/defs"

// BlockDevice is the contract a block storage backend exposes. Sector
// numbers and buffer sizes are in units of BlockSize().
type BlockDevice interface {
	ReadBlock(sector int, buf []byte) defs.Err_t
	WriteBlock(sector int, buf []byte) defs.Err_t
	BlockSize() int
	TotalBlocks() int
}

// CharDevice is the contract a byte-oriented device (the serial console,
// first and foremost) exposes.
type CharDevice interface {
	WriteByte(b byte) defs.Err_t
	WriteString(s string) (int, defs.Err_t)
}

// DirEntry describes one entry returned by Vnode.Readdir.
type DirEntry struct {
	Name string
	Ino uint64
}

// StatInfo is the subset of file metadata the kernel core needs from a
// filesystem backend to service stat(2) and to size file-backed VMOs.
type StatInfo struct {
	Ino uint64
	Mode uint32
	Size int64
	Rdev uint
}

// Vnode is the contract a filesystem root/inode exposes.
type Vnode interface {
	Lookup(name string) (Vnode, defs.Err_t)
	Open(flags int) defs.Err_t
	Create(name string, mode uint32) (Vnode, defs.Err_t)
	Readdir() ([]DirEntry, defs.Err_t)
	Read(offset int64, buf []byte) (int, defs.Err_t)
	Write(offset int64, buf []byte) (int, defs.Err_t)
	Stat() (StatInfo, defs.Err_t)
}

// FileSystem is the contract a mounted filesystem exposes to the VFS layer
// that sits above the kernel core (out of scope; only its entry point is
// needed to resolve file-backed VMOs and module images).
type FileSystem interface {
	Root() Vnode
}
