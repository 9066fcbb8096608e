package paging

// Page is the buffer pool's view of a resident page.
// The byte slice stays valid for as long as the caller holds a pin on it.
type Page struct {
	pageNumber int32
	buffer     []byte
}

func (p *Page) PageNumber() int32 {
	return p.pageNumber
}

func (p *Page) Data() []byte {
	return p.buffer
}

type frame struct {
	page     Page
	file     PagedFile
	index    uint64
	pinCount int
	dirty    bool
}

func (fr *frame) key() pageKey {
	return pageKey{fileID: fr.file.ID(), pageNo: fr.page.pageNumber}
}

func (fr *frame) reset() {
	fr.file = nil
	fr.page.pageNumber = 0
	fr.pinCount = 0
	fr.dirty = false
}

type pageKey struct {
	fileID uint32
	pageNo int32
}

// pack folds the key into the 8 byte id used by the victim cache
func (k pageKey) pack() uint64 {
	return uint64(k.fileID)<<32 | uint64(uint32(k.pageNo))
}
