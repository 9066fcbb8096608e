package freelist

import "fmt"

var (
	ErrNoFreePages    = fmt.Errorf("no free pages")
	ErrInvalidAddress = fmt.Errorf("address outside of free list range")
)

type FreeList interface {
	GetPages(count uint64) ([]uint64, error)
	ReleasePages(pages []uint64) error
	IsPageFree(page uint64) bool
	FreePagesAvailable() uint64
}

/*
BitmapFreeList tracks the addresses [start, end] with one bit each.
A set bit means the address is in use, bit i of byte j maps to address start + j*8 + i.
*/
type BitmapFreeList struct {
	bitmap []byte
	start  uint64
	end    uint64
	free   uint64
}

func NewBitmapFreeList(bitmap []byte, start uint64, end uint64) *BitmapFreeList {
	if end-start+1 > uint64(len(bitmap))*8 {
		end = start + uint64(len(bitmap))*8 - 1
	}
	fl := &BitmapFreeList{
		bitmap: bitmap,
		start:  start,
		end:    end,
	}
	for addr := start; addr <= end; addr++ {
		if !fl.isSet(addr - start) {
			fl.free++
		}
	}
	return fl
}

func (fl *BitmapFreeList) isSet(bit uint64) bool {
	return fl.bitmap[bit/8]&(1<<(bit%8)) != 0
}

func (fl *BitmapFreeList) set(bit uint64) {
	fl.bitmap[bit/8] |= 1 << (bit % 8)
}

func (fl *BitmapFreeList) clear(bit uint64) {
	fl.bitmap[bit/8] &^= 1 << (bit % 8)
}

// GetPages hands out up to count free addresses, lowest first.
// It returns fewer than count when the list runs short.
func (fl *BitmapFreeList) GetPages(count uint64) ([]uint64, error) {
	if fl.free == 0 {
		return nil, ErrNoFreePages
	}
	pages := make([]uint64, 0, min(count, fl.free))
	for addr := fl.start; addr <= fl.end && uint64(len(pages)) < count; addr++ {
		if fl.isSet(addr - fl.start) {
			continue
		}
		fl.set(addr - fl.start)
		fl.free--
		pages = append(pages, addr)
	}
	return pages, nil
}

// ReleasePages marks the addresses free again. Releasing a free address is a no-op.
func (fl *BitmapFreeList) ReleasePages(pages []uint64) error {
	for _, addr := range pages {
		if addr < fl.start || addr > fl.end {
			return ErrInvalidAddress
		}
		if !fl.isSet(addr - fl.start) {
			continue
		}
		fl.clear(addr - fl.start)
		fl.free++
	}
	return nil
}

func (fl *BitmapFreeList) IsPageFree(page uint64) bool {
	if page < fl.start || page > fl.end {
		return false
	}
	return !fl.isSet(page - fl.start)
}

func (fl *BitmapFreeList) FreePagesAvailable() uint64 {
	return fl.free
}
