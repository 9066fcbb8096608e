package paging

import (
	"fmt"
)

const DEFAULT_BUFFER_POOL_FRAMES = 64

var (
	ErrBufferExceeded   = fmt.Errorf("no free buffer frame, all pages are pinned")
	ErrPageNotResident  = fmt.Errorf("page is not in the buffer pool")
	ErrPageNotPinned    = fmt.Errorf("page is not pinned")
	ErrPagePinned       = fmt.Errorf("page is still pinned")
	ErrBadPoolOptions   = fmt.Errorf("invalid buffer pool options")
	ErrPageSizeMismatch = fmt.Errorf("page size does not match the buffer pool")
)

// PagedFile is the part of a disk file the buffer pool needs
type PagedFile interface {
	ID() uint32
	Name() string
	PageSize() uint32
	AllocatePage() (int32, error)
	ReadPage(pageNo int32, buffer []byte) error
	WritePage(pageNo int32, buffer []byte) error
}

type PageSystemOption struct {
	PageSizeByte     uint32
	BufferPoolFrames int
	// VictimCacheBytes bounds the cache of clean page images kept after eviction, 0 disables it
	VictimCacheBytes int64
}

type PageSystem interface {
	// Allocates a new page at the end of the file and returns it pinned
	AllocPage(file PagedFile) (int32, *Page, error)

	/*
		- pins the page, reading it from the victim cache or disk when not resident
		- every successful ReadPage must be matched by exactly one UnPinPage
	*/
	ReadPage(file PagedFile, pageNo int32) (*Page, error)

	// Drops one pin. A dirty unpin marks the frame for write back before it gets reused
	UnPinPage(file PagedFile, pageNo int32, dirty bool) error

	// Writes back the dirty pages of the file and releases its frames.
	// Pinned pages stay resident and make FlushFile fail with ErrPagePinned
	FlushFile(file PagedFile) error

	PinCount(file PagedFile, pageNo int32) int
	Stats() Stats
	Close() error
}

type Stats struct {
	Frames       int
	UsedFrames   int
	PinnedFrames int
	DirtyFrames  int
	Hits         uint64
	Misses       uint64
	VictimHits   uint64
	DiskReads    uint64
	DiskWrites   uint64
	Evictions    uint64
}
