package records

import (
	"encoding/binary"
	"fmt"
)

var (
	ErrNoSpace     = fmt.Errorf("not enough space on page")
	ErrNoRecords   = fmt.Errorf("page holds no records")
	ErrEndOfPage   = fmt.Errorf("end of page")
	ErrInvalidSlot = fmt.Errorf("invalid slot")
	ErrBadRID      = fmt.Errorf("invalid record id")
	ErrPageSize    = fmt.Errorf("page too small")
)

/*
Data page
┌──────────────────────────────────────────────────────────────┐
| pageNo (4byte) | nextPage (4byte) | slotCnt (2byte)          |
| freePtr (2byte) | reserved (4byte)                           |
|──────────────────────────────────────────────────────────────|
| slot 0 : offset (2byte) length (2byte) | slot 1 | ...  →     |
|                                                              |
|                    free space                                |
|                                                              |
|               ← ... | record 1 | record 0                    |
└──────────────────────────────────────────────────────────────┘
slots grow forward from the header, record bytes grow backward from the end of the page.
freePtr is the first byte used by record data. A slot with offset 0 is empty,
its number can be handed out again by a later insert.
All fields little endian.
*/
const (
	dpOffPageNo   = 0
	dpOffNextPage = 4
	dpOffSlotCnt  = 8
	dpOffFreePtr  = 10
	dpHeaderSize  = 16
	slotSize      = 4

	// DPFixed is the overhead a page always pays: its header and one slot
	DPFixed = dpHeaderSize + slotSize

	// EndOfChain terminates the page chain
	EndOfChain = int32(-1)

	// MaxPageSize keeps every offset inside 16 bits
	MaxPageSize = 1 << 15
)

// MaxRecordSize is the largest record an empty page of pageSize bytes can hold
func MaxRecordSize(pageSize int) int {
	return pageSize - DPFixed
}

type DataPage struct {
	buffer []byte
}

// ReadDataPage interprets buffer as a data page, the buffer is used in place
func ReadDataPage(buffer []byte) *DataPage {
	return &DataPage{buffer: buffer}
}

// Init stamps an empty page header for pageNo
func (dp *DataPage) Init(pageNo int32) {
	clear(dp.buffer)
	binary.LittleEndian.PutUint32(dp.buffer[dpOffPageNo:], uint32(pageNo))
	dp.SetNextPage(EndOfChain)
	dp.setSlotCount(0)
	dp.setFreePtr(len(dp.buffer))
}

func (dp *DataPage) PageNo() int32 {
	return int32(binary.LittleEndian.Uint32(dp.buffer[dpOffPageNo:]))
}

func (dp *DataPage) GetNextPage() int32 {
	return int32(binary.LittleEndian.Uint32(dp.buffer[dpOffNextPage:]))
}

func (dp *DataPage) SetNextPage(pageNo int32) {
	binary.LittleEndian.PutUint32(dp.buffer[dpOffNextPage:], uint32(pageNo))
}

func (dp *DataPage) SlotCount() int {
	return int(binary.LittleEndian.Uint16(dp.buffer[dpOffSlotCnt:]))
}

func (dp *DataPage) setSlotCount(n int) {
	binary.LittleEndian.PutUint16(dp.buffer[dpOffSlotCnt:], uint16(n))
}

func (dp *DataPage) freePtr() int {
	return int(binary.LittleEndian.Uint16(dp.buffer[dpOffFreePtr:]))
}

func (dp *DataPage) setFreePtr(v int) {
	binary.LittleEndian.PutUint16(dp.buffer[dpOffFreePtr:], uint16(v))
}

func (dp *DataPage) slot(i int) (int, int) {
	at := dpHeaderSize + i*slotSize
	return int(binary.LittleEndian.Uint16(dp.buffer[at:])), int(binary.LittleEndian.Uint16(dp.buffer[at+2:]))
}

func (dp *DataPage) setSlot(i int, offset int, length int) {
	at := dpHeaderSize + i*slotSize
	binary.LittleEndian.PutUint16(dp.buffer[at:], uint16(offset))
	binary.LittleEndian.PutUint16(dp.buffer[at+2:], uint16(length))
}

// FreeSpace is the gap between the slot array and the record data
func (dp *DataPage) FreeSpace() int {
	return dp.freePtr() - (dpHeaderSize + dp.SlotCount()*slotSize)
}

// RecordCount counts the occupied slots
func (dp *DataPage) RecordCount() int {
	count := 0
	for i := 0; i < dp.SlotCount(); i++ {
		if offset, _ := dp.slot(i); offset != 0 {
			count++
		}
	}
	return count
}

func (dp *DataPage) InsertRecord(rec Record) (RID, error) {
	slotNo := dp.SlotCount()
	for i := 0; i < dp.SlotCount(); i++ {
		if offset, _ := dp.slot(i); offset == 0 {
			slotNo = i
			break
		}
	}

	need := len(rec)
	if slotNo == dp.SlotCount() {
		need += slotSize
	}
	if need > dp.FreeSpace() {
		return NullRID, ErrNoSpace
	}

	offset := dp.freePtr() - len(rec)
	copy(dp.buffer[offset:], rec)
	dp.setFreePtr(offset)
	if slotNo == dp.SlotCount() {
		dp.setSlotCount(slotNo + 1)
	}
	dp.setSlot(slotNo, offset, len(rec))

	return RID{PageNo: dp.PageNo(), SlotNo: int32(slotNo)}, nil
}

func (dp *DataPage) checkRID(rid RID) (int, int, error) {
	if rid.PageNo != dp.PageNo() || rid.SlotNo < 0 || int(rid.SlotNo) >= dp.SlotCount() {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidSlot, rid)
	}
	offset, length := dp.slot(int(rid.SlotNo))
	if offset == 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidSlot, rid)
	}
	return offset, length, nil
}

// GetRecord returns the record bytes in place, writes through the slice land on the page
func (dp *DataPage) GetRecord(rid RID) (Record, error) {
	offset, length, err := dp.checkRID(rid)
	if err != nil {
		return nil, err
	}
	return Record(dp.buffer[offset : offset+length : offset+length]), nil
}

// DeleteRecord frees the slot and compacts the record area, other RIDs keep their slot
func (dp *DataPage) DeleteRecord(rid RID) error {
	offset, length, err := dp.checkRID(rid)
	if err != nil {
		return err
	}

	freePtr := dp.freePtr()
	copy(dp.buffer[freePtr+length:offset+length], dp.buffer[freePtr:offset])
	clear(dp.buffer[freePtr : freePtr+length])
	dp.setFreePtr(freePtr + length)

	for i := 0; i < dp.SlotCount(); i++ {
		if o, l := dp.slot(i); o != 0 && o < offset {
			dp.setSlot(i, o+length, l)
		}
	}
	dp.setSlot(int(rid.SlotNo), 0, 0)

	// trailing empty slots give their bytes back
	count := dp.SlotCount()
	for count > 0 {
		if o, _ := dp.slot(count - 1); o != 0 {
			break
		}
		count--
	}
	dp.setSlotCount(count)
	return nil
}

// FirstRecord returns the lowest occupied slot
func (dp *DataPage) FirstRecord() (RID, error) {
	rid, err := dp.nextFrom(0)
	if err == ErrEndOfPage {
		return NullRID, ErrNoRecords
	}
	return rid, err
}

// NextRecord returns the next occupied slot after cur. cur itself may have been deleted
func (dp *DataPage) NextRecord(cur RID) (RID, error) {
	if cur.PageNo != dp.PageNo() {
		return NullRID, fmt.Errorf("%w: %s", ErrInvalidSlot, cur)
	}
	return dp.nextFrom(int(cur.SlotNo) + 1)
}

func (dp *DataPage) nextFrom(slotNo int) (RID, error) {
	for i := max(slotNo, 0); i < dp.SlotCount(); i++ {
		if offset, _ := dp.slot(i); offset != 0 {
			return RID{PageNo: dp.PageNo(), SlotNo: int32(i)}, nil
		}
	}
	return NullRID, ErrEndOfPage
}
