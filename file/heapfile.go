package file

import (
	"errors"
	"fmt"

	"boro-heap/disk"
	"boro-heap/filesystem"
	"boro-heap/paging"
	"boro-heap/records"

	"github.com/phuslu/log"
)

var (
	ErrFileExists      = fmt.Errorf("heap file already exists")
	ErrBadScanParm     = fmt.Errorf("bad scan parameter")
	ErrInvalidRecLen   = fmt.Errorf("invalid record length")
	ErrFileEOF         = fmt.Errorf("end of file")
	ErrNoCurrentRecord = fmt.Errorf("no current record")
	ErrBadPageSize     = fmt.Errorf("page size not usable for heap files")
	ErrNotDataPage     = fmt.Errorf("not a data page of this heap file")
)

/*
Heap file
┌──────────────┐   ┌──────────────┐   ┌──────────────┐
| header page  |   | data page    |   | data page    |
| firstPage ───┼──>| nextPage ────┼──>| nextPage = -1|
| lastPage ────┼───┼──────────────┼──>|              |
└──────────────┘   └──────────────┘   └──────────────┘
The header page is the first page of the paged file. Data pages form a singly
linked chain, new pages are only ever linked at the tail.

An open handle pins the header page for its whole life and at most one data
page (the cursor page) at a time. Handles on the same file share the header
frame, header fields are always read from and written to the frame bytes.
*/
type HeapFile struct {
	logger log.Logger
	fs     filesystem.FileSystem
	file   *disk.File

	headerPageNo int32
	headerPage   *paging.Page
	header       *records.HeaderView
	hdrDirty     bool

	curPage   *paging.Page
	curPageNo int32
	curDirty  bool
	curRec    records.RID
}

/*
CreateHeapFile lays out an empty heap file: a header page and one empty data page.
A partially created file is left in place when a later step fails.
*/
func CreateHeapFile(logger log.Logger, fs filesystem.FileSystem, name string) error {
	if len(name) > records.MaxNameSize {
		return fmt.Errorf("%w: %q", records.ErrNameLength, name)
	}
	if pageSize := int(fs.PageSize()); pageSize > records.MaxPageSize || pageSize < records.HeaderSize {
		return ErrBadPageSize
	}

	if file, err := fs.OpenFile(name); err == nil {
		if err := fs.CloseFile(file); err != nil {
			logger.Error().Err(err).Str("file", name).Msg("error closing existing file")
		}
		return ErrFileExists
	}

	if err := fs.CreateFile(name); err != nil {
		if errors.Is(err, disk.ErrFileExists) {
			return ErrFileExists
		}
		logger.Error().Err(err).Str("file", name).Msg("error creating file")
		return err
	}

	file, err := fs.OpenFile(name)
	if err != nil {
		logger.Error().Err(err).Str("file", name).Msg("error opening created file")
		return err
	}
	defer func() {
		if err := fs.CloseFile(file); err != nil {
			logger.Error().Err(err).Str("file", name).Msg("error closing created file")
		}
	}()

	headerPageNo, headerPage, err := fs.AllocPage(file)
	if err != nil {
		logger.Error().Err(err).Str("file", name).Msg("error allocating header page")
		return err
	}

	dataPageNo, dataPage, err := fs.AllocPage(file)
	if err != nil {
		logger.Error().Err(err).Str("file", name).Msg("error allocating first data page")
		if err := fs.UnPinPage(file, headerPageNo, false); err != nil {
			logger.Error().Err(err).Str("file", name).Msg("error unpinning header page")
		}
		return err
	}
	records.ReadDataPage(dataPage.Data()).Init(dataPageNo)

	header := &records.HeaderPage{
		FileName:  name,
		FirstPage: dataPageNo,
		LastPage:  dataPageNo,
		PageCnt:   1,
	}
	encodeErr := header.Encode(headerPage.Data())

	hdrErr := fs.UnPinPage(file, headerPageNo, true)
	dataErr := fs.UnPinPage(file, dataPageNo, true)
	if err := errors.Join(encodeErr, hdrErr, dataErr); err != nil {
		logger.Error().Err(err).Str("file", name).Msg("error finishing heap file creation")
		return err
	}

	logger.Debug().Str("file", name).Int32("header", headerPageNo).Int32("first", dataPageNo).Msg("created heap file")
	return nil
}

func DestroyHeapFile(fs filesystem.FileSystem, name string) error {
	return fs.DestroyFile(name)
}

/*
OpenHeapFile pins the header page and the first data page of the file.
Nothing stays pinned or open when it fails.
*/
func OpenHeapFile(logger log.Logger, fs filesystem.FileSystem, name string) (*HeapFile, error) {
	file, err := fs.OpenFile(name)
	if err != nil {
		logger.Error().Err(err).Str("file", name).Msg("error opening heap file")
		return nil, err
	}

	hf := &HeapFile{
		logger:    logger,
		fs:        fs,
		file:      file,
		curPageNo: records.EndOfChain,
		curRec:    records.NullRID,
	}

	if err := hf.load(); err != nil {
		logger.Error().Err(err).Str("file", name).Msg("error reading heap file header")
		hf.Close()
		return nil, err
	}
	return hf, nil
}

func (hf *HeapFile) load() error {
	headerPageNo, err := hf.file.FirstPage()
	if err != nil {
		return err
	}

	page, err := hf.fs.ReadPage(hf.file, headerPageNo)
	if err != nil {
		return err
	}
	hf.headerPageNo = headerPageNo
	hf.headerPage = page

	header, err := records.ReadHeaderPage(page.Data())
	if err != nil {
		return err
	}
	hf.header = header

	return hf.pinPage(header.FirstPage())
}

/*
Close releases what the handle holds: the cursor page, the header page and the file.
Every step runs even when an earlier one fails, the first failure is returned.
*/
func (hf *HeapFile) Close() error {
	if hf.file == nil {
		return nil
	}

	var closeErr error
	if hf.curPage != nil {
		if err := hf.fs.UnPinPage(hf.file, hf.curPageNo, hf.curDirty); err != nil {
			hf.logger.Error().Err(err).Str("file", hf.file.Name()).Int32("page", hf.curPageNo).Msg("error unpinning data page on close")
			closeErr = err
		}
		hf.curPage = nil
		hf.curPageNo = records.EndOfChain
		hf.curDirty = false
	}

	if hf.headerPage != nil {
		if err := hf.fs.UnPinPage(hf.file, hf.headerPageNo, hf.hdrDirty); err != nil {
			hf.logger.Error().Err(err).Str("file", hf.file.Name()).Msg("error unpinning header page on close")
			closeErr = errors.Join(closeErr, err)
		}
		hf.headerPage = nil
		hf.hdrDirty = false
	}

	if err := hf.fs.CloseFile(hf.file); err != nil {
		hf.logger.Error().Err(err).Str("file", hf.file.Name()).Msg("error closing heap file")
		closeErr = errors.Join(closeErr, err)
	}
	hf.file = nil
	hf.curRec = records.NullRID
	return closeErr
}

func (hf *HeapFile) FileName() string {
	return hf.header.FileName()
}

func (hf *HeapFile) GetRecordCount() int {
	return int(hf.header.RecCnt())
}

// GetRecord fetches a record by id and makes it the current record
func (hf *HeapFile) GetRecord(rid records.RID) (records.Record, error) {
	if err := hf.pinPage(rid.PageNo); err != nil {
		return nil, err
	}

	rec, err := records.ReadDataPage(hf.curPage.Data()).GetRecord(rid)
	if err != nil {
		return nil, err
	}
	hf.curRec = rid
	return rec, nil
}

/*
pinPage makes pageNo the cursor page.
- already the cursor page: nothing happens
- otherwise the held page is unpinned with its dirty flag and pageNo is pinned clean
When the unpin fails the old page stays the cursor page. When the read fails, or the
page read is not a data page of the chain, no page is held.
*/
func (hf *HeapFile) pinPage(pageNo int32) error {
	if hf.curPage != nil && hf.curPageNo == pageNo {
		return nil
	}
	if pageNo == hf.headerPageNo {
		return fmt.Errorf("%w: %d", ErrNotDataPage, pageNo)
	}

	if hf.curPage != nil {
		if err := hf.fs.UnPinPage(hf.file, hf.curPageNo, hf.curDirty); err != nil {
			hf.logger.Error().Err(err).Str("file", hf.file.Name()).Int32("page", hf.curPageNo).Msg("error unpinning data page")
			return err
		}
		hf.curPage = nil
		hf.curDirty = false
		hf.curRec = records.NullRID
	}

	page, err := hf.fs.ReadPage(hf.file, pageNo)
	if err != nil {
		hf.logger.Error().Err(err).Str("file", hf.file.Name()).Int32("page", pageNo).Msg("error reading data page")
		hf.curPageNo = records.EndOfChain
		return err
	}
	if records.ReadDataPage(page.Data()).PageNo() != pageNo {
		hf.curPageNo = records.EndOfChain
		if err := hf.fs.UnPinPage(hf.file, pageNo, false); err != nil {
			hf.logger.Error().Err(err).Str("file", hf.file.Name()).Int32("page", pageNo).Msg("error unpinning foreign page")
			return errors.Join(fmt.Errorf("%w: %d", ErrNotDataPage, pageNo), err)
		}
		return fmt.Errorf("%w: %d", ErrNotDataPage, pageNo)
	}
	hf.curPage = page
	hf.curPageNo = pageNo
	hf.curDirty = false
	return nil
}

// unpinCurrent drops the cursor page, the cursor page number is kept
func (hf *HeapFile) unpinCurrent() error {
	if hf.curPage == nil {
		return nil
	}
	if err := hf.fs.UnPinPage(hf.file, hf.curPageNo, hf.curDirty); err != nil {
		hf.logger.Error().Err(err).Str("file", hf.file.Name()).Int32("page", hf.curPageNo).Msg("error unpinning data page")
		return err
	}
	hf.curPage = nil
	hf.curDirty = false
	return nil
}

// header mutations land on the shared frame, other handles see them on their next read
func (hf *HeapFile) incRecordCount() {
	hf.header.SetRecCnt(hf.header.RecCnt() + 1)
	hf.hdrDirty = true
}

func (hf *HeapFile) decRecordCount() {
	hf.header.SetRecCnt(hf.header.RecCnt() - 1)
	hf.hdrDirty = true
}

func (hf *HeapFile) appendPage(pageNo int32) {
	hf.header.SetLastPage(pageNo)
	hf.header.SetPageCnt(hf.header.PageCnt() + 1)
	hf.hdrDirty = true
}
