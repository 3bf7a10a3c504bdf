// Package fsentry defines the data model for nodes in the filesystem view.
package fsentry

import (
	"fmt"
	"os"
	"path/filepath"
)

// 📄 Kind identifies what a FileEntry points at
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDir
	KindSymlink
)

// String returns a string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// 📊 SizeKind is the computation state of an entry's size
type SizeKind int

const (
	SizeUncomputed SizeKind = iota
	SizeComputed
	SizeUnavailable
)

// 📊 SizeState is a tri-state size value: uncomputed, computed bytes, or
// unavailable with a reason (e.g. the stat failed)
type SizeState struct {
	Kind   SizeKind
	Bytes  int64
	Reason string
}

// ComputedSize returns a SizeState holding a known byte count
func ComputedSize(bytes int64) SizeState {
	return SizeState{Kind: SizeComputed, Bytes: bytes}
}

// UnavailableSize returns a SizeState carrying the reason the size could not be computed
func UnavailableSize(reason string) SizeState {
	return SizeState{Kind: SizeUnavailable, Reason: reason}
}

// String returns a human-readable form of the size state
func (s SizeState) String() string {
	switch s.Kind {
	case SizeComputed:
		return FormatBytes(s.Bytes)
	case SizeUnavailable:
		return fmt.Sprintf("unavailable (%s)", s.Reason)
	default:
		return "-"
	}
}

// 🗂️ FileEntry is a node in the filesystem view. Path is always absolute.
type FileEntry struct {
	Path string
	Kind Kind
	Size SizeState
}

// Name returns the entry's basename
func (e FileEntry) Name() string {
	return filepath.Base(e.Path)
}

// KindOf maps a FileInfo to an entry Kind
func KindOf(info os.FileInfo) Kind {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		return KindSymlink
	case info.IsDir():
		return KindDir
	default:
		return KindFile
	}
}

// FormatBytes renders a byte count as a human-readable string
func FormatBytes(size int64) string {
	const (
		kb = int64(1024)
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case size >= gb:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(gb))
	case size >= mb:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(mb))
	case size >= kb:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(kb))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
