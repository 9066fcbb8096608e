package file

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"boro-heap/filesystem"
	"boro-heap/records"

	"github.com/phuslu/log"
)

type Datatype int

const (
	STRING Datatype = iota
	INTEGER
	FLOAT
)

// widths of the numeric types as stored in records
const (
	IntWidth   = 4
	FloatWidth = 4
)

func (d Datatype) String() string {
	switch d {
	case STRING:
		return "STRING"
	case INTEGER:
		return "INTEGER"
	case FLOAT:
		return "FLOAT"
	}
	return "UNKNOWN"
}

type Operator int

const (
	LT Operator = iota
	LTE
	EQ
	GTE
	GT
	NE
)

func (o Operator) String() string {
	switch o {
	case LT:
		return "<"
	case LTE:
		return "<="
	case EQ:
		return "="
	case GTE:
		return ">="
	case GT:
		return ">"
	case NE:
		return "!="
	}
	return "?"
}

type filter struct {
	offset   int
	length   int
	datatype Datatype
	value    []byte
	op       Operator
}

/*
HeapFileScan walks the page chain in page order then slot order,
handing out the records that pass the filter set by StartScan.

The mark is a savepoint (page, record, end of file) refreshed by every ScanNext,
ResetScan returns the cursor to it.
*/
type HeapFileScan struct {
	*HeapFile

	filter *filter
	eof    bool

	markedPageNo int32
	markedRec    records.RID
	markedEOF    bool
}

func OpenHeapFileScan(logger log.Logger, fs filesystem.FileSystem, name string) (*HeapFileScan, error) {
	hf, err := OpenHeapFile(logger, fs, name)
	if err != nil {
		return nil, err
	}
	hs := &HeapFileScan{HeapFile: hf}
	hs.MarkScan()
	return hs, nil
}

/*
StartScan sets the filter, a nil value turns filtering off.
- offset >= 0 and length >= 1
- INTEGER and FLOAT need length equal to their width
- value must hold at least length bytes
A rejected filter leaves the scan untouched.
*/
func (hs *HeapFileScan) StartScan(offset int, length int, datatype Datatype, value []byte, op Operator) error {
	if value == nil {
		hs.filter = nil
		hs.eof = false
		return nil
	}

	if offset < 0 || length < 1 || len(value) < length {
		return ErrBadScanParm
	}
	switch datatype {
	case STRING:
	case INTEGER:
		if length != IntWidth {
			return ErrBadScanParm
		}
	case FLOAT:
		if length != FloatWidth {
			return ErrBadScanParm
		}
	default:
		return ErrBadScanParm
	}
	if op < LT || op > NE {
		return ErrBadScanParm
	}

	hs.filter = &filter{
		offset:   offset,
		length:   length,
		datatype: datatype,
		value:    bytes.Clone(value[:length]),
		op:       op,
	}
	hs.eof = false
	return nil
}

// EndScan releases the cursor page, the next ScanNext starts over from the first page
func (hs *HeapFileScan) EndScan() error {
	if err := hs.unpinCurrent(); err != nil {
		return err
	}
	hs.curPageNo = records.EndOfChain
	hs.curRec = records.NullRID
	hs.eof = false
	return nil
}

func (hs *HeapFileScan) MarkScan() {
	hs.markedPageNo = hs.curPageNo
	hs.markedRec = hs.curRec
	hs.markedEOF = hs.eof
}

// ResetScan moves the cursor back to the mark, there is no I/O when the mark is on the cursor page
func (hs *HeapFileScan) ResetScan() error {
	if hs.markedPageNo != hs.curPageNo || (hs.curPage == nil && hs.markedPageNo != records.EndOfChain) {
		if hs.markedPageNo == records.EndOfChain {
			if err := hs.unpinCurrent(); err != nil {
				return err
			}
			hs.curPageNo = records.EndOfChain
		} else if err := hs.pinPage(hs.markedPageNo); err != nil {
			return err
		}
	}
	hs.curRec = hs.markedRec
	hs.eof = hs.markedEOF
	return nil
}

/*
ScanNext returns the next record passing the filter or ErrFileEOF once the chain is exhausted.
Without a cursor page the scan starts at the first page of the file.
After ErrFileEOF no page is held and ErrFileEOF repeats until EndScan or StartScan.
*/
func (hs *HeapFileScan) ScanNext() (records.RID, error) {
	defer hs.MarkScan()

	if hs.eof {
		return records.NullRID, ErrFileEOF
	}
	if hs.curPage == nil {
		if err := hs.pinPage(hs.header.FirstPage()); err != nil {
			return records.NullRID, err
		}
		hs.curRec = records.NullRID
	}

	for {
		dp := records.ReadDataPage(hs.curPage.Data())

		var rid records.RID
		var err error
		if hs.curRec.IsNull() || hs.curRec.PageNo != hs.curPageNo {
			rid, err = dp.FirstRecord()
		} else {
			rid, err = dp.NextRecord(hs.curRec)
		}

		for err == nil {
			rec, recErr := dp.GetRecord(rid)
			if recErr != nil {
				return records.NullRID, recErr
			}
			if hs.MatchRecord(rec) {
				hs.curRec = rid
				return rid, nil
			}
			rid, err = dp.NextRecord(rid)
		}
		if !errors.Is(err, records.ErrEndOfPage) && !errors.Is(err, records.ErrNoRecords) {
			return records.NullRID, err
		}

		// the link has to be read while the page is still pinned
		nextPageNo := dp.GetNextPage()
		if err := hs.unpinCurrent(); err != nil {
			return records.NullRID, err
		}
		hs.curRec = records.NullRID

		if nextPageNo == records.EndOfChain {
			hs.curPageNo = records.EndOfChain
			hs.eof = true
			return records.NullRID, ErrFileEOF
		}
		if err := hs.pinPage(nextPageNo); err != nil {
			return records.NullRID, err
		}
	}
}

// Scan calls fn for every remaining matching record until the end of the file or an error
func (hs *HeapFileScan) Scan(fn func(rid records.RID, rec records.Record) error) error {
	for {
		rid, err := hs.ScanNext()
		if errors.Is(err, ErrFileEOF) {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err := hs.GetRecord()
		if err != nil {
			return err
		}
		if err := fn(rid, rec); err != nil {
			return err
		}
	}
}

// MatchRecord tells whether rec passes the filter. A filter window past the end of rec never matches
func (hs *HeapFileScan) MatchRecord(rec records.Record) bool {
	f := hs.filter
	if f == nil {
		return true
	}
	if f.offset+f.length > len(rec) {
		return false
	}
	window := rec[f.offset : f.offset+f.length]

	var less, equal, greater bool
	switch f.datatype {
	case INTEGER:
		diff := int64(int32(binary.LittleEndian.Uint32(window))) - int64(int32(binary.LittleEndian.Uint32(f.value)))
		less, equal, greater = diff < 0, diff == 0, diff > 0
	case FLOAT:
		diff := math.Float32frombits(binary.LittleEndian.Uint32(window)) - math.Float32frombits(binary.LittleEndian.Uint32(f.value))
		less, equal, greater = diff < 0, diff == 0, diff > 0
	default:
		cmp := bytes.Compare(window, f.value)
		less, equal, greater = cmp < 0, cmp == 0, cmp > 0
	}

	switch f.op {
	case LT:
		return less
	case LTE:
		return less || equal
	case EQ:
		return equal
	case GTE:
		return greater || equal
	case GT:
		return greater
	case NE:
		return !equal
	}
	return false
}

// GetRecord returns the current record, the page stays pinned by the scan
func (hs *HeapFileScan) GetRecord() (records.Record, error) {
	if hs.curPage == nil || hs.curRec.IsNull() {
		return nil, ErrNoCurrentRecord
	}
	return records.ReadDataPage(hs.curPage.Data()).GetRecord(hs.curRec)
}

/*
DeleteRecord removes the current record. The cursor stays where it is,
the following ScanNext carries on with the next slot.
*/
func (hs *HeapFileScan) DeleteRecord() error {
	if hs.curPage == nil || hs.curRec.IsNull() {
		return ErrNoCurrentRecord
	}
	if err := records.ReadDataPage(hs.curPage.Data()).DeleteRecord(hs.curRec); err != nil {
		hs.logger.Error().Err(err).Str("file", hs.file.Name()).Str("rid", hs.curRec.String()).Msg("error deleting record")
		return err
	}
	hs.curDirty = true
	hs.decRecordCount()
	return nil
}

// MarkDirty flags the cursor page as modified, for callers writing through a returned record
func (hs *HeapFileScan) MarkDirty() {
	if hs.curPage != nil {
		hs.curDirty = true
	}
}
