package file

import (
	"errors"

	"boro-heap/filesystem"
	"boro-heap/records"

	"github.com/phuslu/log"
)

// InsertFileScan appends records at the tail of the page chain
type InsertFileScan struct {
	*HeapFile
}

func OpenInsertFileScan(logger log.Logger, fs filesystem.FileSystem, name string) (*InsertFileScan, error) {
	hf, err := OpenHeapFile(logger, fs, name)
	if err != nil {
		return nil, err
	}
	return &InsertFileScan{HeapFile: hf}, nil
}

/*
InsertRecord stores rec in the last page, linking a fresh page at the tail when it is full.
Records larger than an empty page can hold fail with ErrInvalidRecLen.
*/
func (is *InsertFileScan) InsertRecord(rec records.Record) (records.RID, error) {
	if len(rec) > records.MaxRecordSize(int(is.file.PageSize())) {
		return records.NullRID, ErrInvalidRecLen
	}

	if err := is.pinPage(is.header.LastPage()); err != nil {
		return records.NullRID, err
	}

	rid, err := records.ReadDataPage(is.curPage.Data()).InsertRecord(rec)
	if err == nil {
		is.curDirty = true
		is.curRec = rid
		is.incRecordCount()
		return rid, nil
	}
	if !errors.Is(err, records.ErrNoSpace) {
		return records.NullRID, err
	}

	if err := is.extend(); err != nil {
		return records.NullRID, err
	}

	rid, err = records.ReadDataPage(is.curPage.Data()).InsertRecord(rec)
	if err != nil {
		is.logger.Error().Err(err).Str("file", is.file.Name()).Int32("page", is.curPageNo).Msg("record does not fit a fresh page")
		return records.NullRID, err
	}
	is.curDirty = true
	is.curRec = rid
	is.incRecordCount()
	return rid, nil
}

// extend links a new page after the cursor page and makes it the cursor page
func (is *InsertFileScan) extend() error {
	newPageNo, newPage, err := is.fs.AllocPage(is.file)
	if err != nil {
		is.logger.Error().Err(err).Str("file", is.file.Name()).Msg("error allocating data page")
		return err
	}
	records.ReadDataPage(newPage.Data()).Init(newPageNo)

	records.ReadDataPage(is.curPage.Data()).SetNextPage(newPageNo)
	is.curDirty = true
	is.appendPage(newPageNo)

	unpinErr := is.fs.UnPinPage(is.file, is.curPageNo, is.curDirty)
	if unpinErr != nil {
		is.logger.Error().Err(unpinErr).Str("file", is.file.Name()).Int32("page", is.curPageNo).Msg("error unpinning full page")
	}

	is.curPage = newPage
	is.curPageNo = newPageNo
	is.curDirty = true
	is.curRec = records.NullRID
	is.logger.Debug().Str("file", is.file.Name()).Int32("page", newPageNo).Msg("extended page chain")
	return unpinErr
}

// Close unpins the cursor page as dirty whatever its flag says
func (is *InsertFileScan) Close() error {
	if is.curPage != nil {
		is.curDirty = true
	}
	return is.HeapFile.Close()
}
