package disk

import (
	"encoding/binary"
	"fmt"
	"syscall"

	"boro-heap/utils/checksums"
)

const DEFAULT_PAGE_SIZE = uint32(4096) // 4kb
const MIN_PAGE_SIZE = uint32(128)

var (
	ErrNoFile           = fmt.Errorf("file does not exist")
	ErrFileExists       = fmt.Errorf("file already exists")
	ErrFileOpen         = fmt.Errorf("file is open")
	ErrFileClosed       = fmt.Errorf("file is closed")
	ErrBadFileName      = fmt.Errorf("invalid file name")
	ErrBadPageNo        = fmt.Errorf("invalid page number")
	ErrBadBuffer        = fmt.Errorf("buffer size does not match page size")
	ErrCorruptHeader    = fmt.Errorf("file metadata checksum mismatch")
	ErrPageSizeMismatch = fmt.Errorf("file was created with a different page size")
)

type FileOptions struct {
	PageSizeByte  uint32
	FileDirectory string
}

/*
Paged file
┌──────────────────────────────────────────────────────────────┐
| crc (4byte) | magic (4byte) | pageSize (4byte)               |
| pageCount (4byte) | firstPage (4byte)                        |
|──────────────────block 0 : file metadata─────────────────────|
| page 1                                                       |
|--------------------------------------------------------------|
| page 2 ...                                                   |
└──────────────────────────────────────────────────────────────┘
page number N lives in block N, block 0 is never handed out
*/
const (
	fileMagic       = uint32(0x424f524f)
	metaOffMagic    = 4
	metaOffPageSize = 8
	metaOffCount    = 12
	metaOffFirst    = 16
	metaSize        = 20
)

type filemeta struct {
	pageSize  uint32
	pageCount uint32
	firstPage uint32
	buffer    []byte
}

func (fm *filemeta) SerializeMetaData() {
	binary.BigEndian.PutUint32(fm.buffer[metaOffMagic:], fileMagic)
	binary.BigEndian.PutUint32(fm.buffer[metaOffPageSize:], fm.pageSize)
	binary.BigEndian.PutUint32(fm.buffer[metaOffCount:], fm.pageCount)
	binary.BigEndian.PutUint32(fm.buffer[metaOffFirst:], fm.firstPage)
	checksums.CalculateCRC(fm.buffer[0:4], fm.buffer[4:])
}

func (fm *filemeta) DeserializeMetaData() error {
	if !checksums.VerifyCRC(fm.buffer[0:4], fm.buffer[4:]) {
		return ErrCorruptHeader
	}
	if binary.BigEndian.Uint32(fm.buffer[metaOffMagic:]) != fileMagic {
		return ErrCorruptHeader
	}
	fm.pageSize = binary.BigEndian.Uint32(fm.buffer[metaOffPageSize:])
	fm.pageCount = binary.BigEndian.Uint32(fm.buffer[metaOffCount:])
	fm.firstPage = binary.BigEndian.Uint32(fm.buffer[metaOffFirst:])
	return nil
}

// File is an open paged file. The same *File is shared by every opener of a name.
type File struct {
	id        uint32
	name      string
	path      string
	fd        int
	openCount int
	meta      filemeta
	options   *FileOptions
}

func (f *File) ID() uint32 {
	return f.id
}

func (f *File) Name() string {
	return f.name
}

func (f *File) PageSize() uint32 {
	return f.meta.pageSize
}

func (f *File) PageCount() uint32 {
	return f.meta.pageCount
}

// FirstPage returns the number of the first page ever allocated in the file
func (f *File) FirstPage() (int32, error) {
	if f.meta.firstPage == 0 {
		return 0, ErrBadPageNo
	}
	return int32(f.meta.firstPage), nil
}

func (f *File) offset(pageNo int32) int64 {
	return int64(pageNo) * int64(f.meta.pageSize)
}

func (f *File) checkPage(pageNo int32, buffer []byte) error {
	if f.fd < 0 {
		return ErrFileClosed
	}
	if pageNo < 1 || uint32(pageNo) > f.meta.pageCount {
		return fmt.Errorf("%w: %d in %s", ErrBadPageNo, pageNo, f.name)
	}
	if len(buffer) != int(f.meta.pageSize) {
		return ErrBadBuffer
	}
	return nil
}

// AllocatePage appends a zeroed page and persists the new page count
func (f *File) AllocatePage() (int32, error) {
	if f.fd < 0 {
		return 0, ErrFileClosed
	}
	pageNo := int32(f.meta.pageCount + 1)
	if _, err := syscall.Pwrite(f.fd, make([]byte, f.meta.pageSize), f.offset(pageNo)); err != nil {
		return 0, err
	}

	prevCount, prevFirst := f.meta.pageCount, f.meta.firstPage
	f.meta.pageCount++
	if f.meta.firstPage == 0 {
		f.meta.firstPage = uint32(pageNo)
	}
	f.meta.SerializeMetaData()
	if _, err := syscall.Pwrite(f.fd, f.meta.buffer, 0); err != nil {
		f.meta.pageCount, f.meta.firstPage = prevCount, prevFirst // restore values
		f.meta.SerializeMetaData()
		return 0, err
	}
	return pageNo, nil
}

func (f *File) ReadPage(pageNo int32, buffer []byte) error {
	if err := f.checkPage(pageNo, buffer); err != nil {
		return err
	}
	n, err := syscall.Pread(f.fd, buffer, f.offset(pageNo))
	if err != nil {
		return err
	}
	// short read past a torn tail, pad with zeros
	for i := n; i < len(buffer); i++ {
		buffer[i] = 0
	}
	return nil
}

func (f *File) WritePage(pageNo int32, buffer []byte) error {
	if err := f.checkPage(pageNo, buffer); err != nil {
		return err
	}
	_, err := syscall.Pwrite(f.fd, buffer, f.offset(pageNo))
	return err
}

func (f *File) Sync() error {
	if f.fd < 0 {
		return ErrFileClosed
	}
	return syscall.Fsync(f.fd)
}
