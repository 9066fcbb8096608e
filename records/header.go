package records

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

var (
	ErrBadHeader  = fmt.Errorf("not a heap file header page")
	ErrNameLength = fmt.Errorf("file name too long")
)

// MaxNameSize bounds the file name stored in the header page
const MaxNameSize = 50

// HeaderPageNo is where a heap file keeps its header, data pages come after it
const HeaderPageNo = int32(1)

/*
Header page
┌────────────────────────────────────────────────────────────────┐
| magic (4byte) | fileName (50byte, zero padded) | pad (2byte)   |
| recCnt (4byte) | firstPage (4byte) | lastPage (4byte)          |
| pageCnt (4byte)                                                |
└────────────────────────────────────────────────────────────────┘
pageCnt counts the data pages in the chain, the header page is not part of it.
All integers little endian.
*/
const (
	hdrOffMagic     = 0
	hdrOffName      = 4
	hdrOffRecCnt    = hdrOffName + MaxNameSize + 2
	hdrOffFirstPage = hdrOffRecCnt + 4
	hdrOffLastPage  = hdrOffFirstPage + 4
	hdrOffPageCnt   = hdrOffLastPage + 4
	HeaderSize      = hdrOffPageCnt + 4

	headerMagic uint32 = 0x48454150 // HEAP
)

type HeaderPage struct {
	FileName  string
	RecCnt    int32
	FirstPage int32
	LastPage  int32
	PageCnt   int32
}

func (h *HeaderPage) Encode(buffer []byte) error {
	if len(h.FileName) > MaxNameSize {
		return fmt.Errorf("%w: %q", ErrNameLength, h.FileName)
	}
	if len(buffer) < HeaderSize {
		return ErrPageSize
	}
	binary.LittleEndian.PutUint32(buffer[hdrOffMagic:], headerMagic)
	name := buffer[hdrOffName:hdrOffRecCnt]
	clear(name)
	copy(name, h.FileName)
	binary.LittleEndian.PutUint32(buffer[hdrOffRecCnt:], uint32(h.RecCnt))
	binary.LittleEndian.PutUint32(buffer[hdrOffFirstPage:], uint32(h.FirstPage))
	binary.LittleEndian.PutUint32(buffer[hdrOffLastPage:], uint32(h.LastPage))
	binary.LittleEndian.PutUint32(buffer[hdrOffPageCnt:], uint32(h.PageCnt))
	return nil
}

func DecodeHeader(buffer []byte) (*HeaderPage, error) {
	hv, err := ReadHeaderPage(buffer)
	if err != nil {
		return nil, err
	}
	return &HeaderPage{
		FileName:  hv.FileName(),
		RecCnt:    hv.RecCnt(),
		FirstPage: hv.FirstPage(),
		LastPage:  hv.LastPage(),
		PageCnt:   hv.PageCnt(),
	}, nil
}

// HeaderView reads and updates the header fields in place, every holder of the page sees the same values
type HeaderView struct {
	buffer []byte
}

func ReadHeaderPage(buffer []byte) (*HeaderView, error) {
	if len(buffer) < HeaderSize {
		return nil, ErrPageSize
	}
	if binary.LittleEndian.Uint32(buffer[hdrOffMagic:]) != headerMagic {
		return nil, ErrBadHeader
	}
	return &HeaderView{buffer: buffer}, nil
}

func (hv *HeaderView) FileName() string {
	name := hv.buffer[hdrOffName : hdrOffName+MaxNameSize]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

func (hv *HeaderView) field(off int) int32 {
	return int32(binary.LittleEndian.Uint32(hv.buffer[off:]))
}

func (hv *HeaderView) setField(off int, v int32) {
	binary.LittleEndian.PutUint32(hv.buffer[off:], uint32(v))
}

func (hv *HeaderView) RecCnt() int32    { return hv.field(hdrOffRecCnt) }
func (hv *HeaderView) FirstPage() int32 { return hv.field(hdrOffFirstPage) }
func (hv *HeaderView) LastPage() int32  { return hv.field(hdrOffLastPage) }
func (hv *HeaderView) PageCnt() int32   { return hv.field(hdrOffPageCnt) }

func (hv *HeaderView) SetRecCnt(v int32)   { hv.setField(hdrOffRecCnt, v) }
func (hv *HeaderView) SetLastPage(v int32) { hv.setField(hdrOffLastPage, v) }
func (hv *HeaderView) SetPageCnt(v int32)  { hv.setField(hdrOffPageCnt, v) }
