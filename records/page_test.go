package records

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPage(pageNo int32, size int) *DataPage {
	dp := ReadDataPage(make([]byte, size))
	dp.Init(pageNo)
	return dp
}

func TestDataPageInit(t *testing.T) {
	dp := newTestPage(7, 128)
	assert.Equal(t, int32(7), dp.PageNo())
	assert.Equal(t, EndOfChain, dp.GetNextPage())
	assert.Equal(t, 0, dp.SlotCount())
	assert.Equal(t, 128-dpHeaderSize, dp.FreeSpace())

	_, err := dp.FirstRecord()
	assert.ErrorIs(t, err, ErrNoRecords)

	dp.SetNextPage(9)
	assert.Equal(t, int32(9), dp.GetNextPage())
}

func TestDataPageInsertAndGet(t *testing.T) {
	dp := newTestPage(1, 128)

	r0, err := dp.InsertRecord(Record("alpha"))
	require.NoError(t, err)
	r1, err := dp.InsertRecord(Record("beta"))
	require.NoError(t, err)
	assert.Equal(t, RID{PageNo: 1, SlotNo: 0}, r0)
	assert.Equal(t, RID{PageNo: 1, SlotNo: 1}, r1)
	assert.Equal(t, 2, dp.RecordCount())

	rec, err := dp.GetRecord(r1)
	require.NoError(t, err)
	assert.Equal(t, "beta", string(rec))

	t.Run("record is a view of the page", func(t *testing.T) {
		rec, err := dp.GetRecord(r0)
		require.NoError(t, err)
		rec[0] = 'A'
		again, _ := dp.GetRecord(r0)
		assert.Equal(t, "Alpha", string(again))
	})

	t.Run("bad rids", func(t *testing.T) {
		_, err := dp.GetRecord(RID{PageNo: 1, SlotNo: 5})
		assert.ErrorIs(t, err, ErrInvalidSlot)
		_, err = dp.GetRecord(RID{PageNo: 2, SlotNo: 0})
		assert.ErrorIs(t, err, ErrInvalidSlot)
		assert.ErrorIs(t, dp.DeleteRecord(NullRID), ErrInvalidSlot)
	})
}

func TestDataPageFull(t *testing.T) {
	dp := newTestPage(1, 128)

	_, err := dp.InsertRecord(make(Record, MaxRecordSize(128)+1))
	assert.ErrorIs(t, err, ErrNoSpace)

	rid, err := dp.InsertRecord(make(Record, MaxRecordSize(128)))
	require.NoError(t, err)
	assert.Equal(t, 0, dp.FreeSpace())

	_, err = dp.InsertRecord(Record{})
	assert.ErrorIs(t, err, ErrNoSpace)

	require.NoError(t, dp.DeleteRecord(rid))
	assert.Equal(t, 0, dp.SlotCount())
	assert.Equal(t, 128-dpHeaderSize, dp.FreeSpace())
}

func TestDataPageDelete(t *testing.T) {
	dp := newTestPage(3, 256)

	var rids []RID
	for _, s := range []string{"one", "two", "three", "four"} {
		rid, err := dp.InsertRecord(Record(s))
		require.NoError(t, err)
		rids = append(rids, rid)
	}
	before := dp.FreeSpace()

	require.NoError(t, dp.DeleteRecord(rids[1]))
	assert.Equal(t, before+3, dp.FreeSpace())
	assert.Equal(t, 3, dp.RecordCount())

	_, err := dp.GetRecord(rids[1])
	assert.ErrorIs(t, err, ErrInvalidSlot)

	t.Run("other records survive compaction", func(t *testing.T) {
		for i, s := range []string{"one", "", "three", "four"} {
			if i == 1 {
				continue
			}
			rec, err := dp.GetRecord(rids[i])
			require.NoError(t, err)
			assert.Equal(t, s, string(rec))
		}
	})

	t.Run("iteration skips the hole", func(t *testing.T) {
		next, err := dp.NextRecord(rids[0])
		require.NoError(t, err)
		assert.Equal(t, rids[2], next)

		// continuing from the deleted slot itself
		next, err = dp.NextRecord(rids[1])
		require.NoError(t, err)
		assert.Equal(t, rids[2], next)

		_, err = dp.NextRecord(rids[3])
		assert.ErrorIs(t, err, ErrEndOfPage)
	})

	t.Run("empty slot is reused", func(t *testing.T) {
		rid, err := dp.InsertRecord(Record("again"))
		require.NoError(t, err)
		assert.Equal(t, rids[1], rid)
		rec, _ := dp.GetRecord(rid)
		assert.True(t, bytes.Equal([]byte("again"), rec))
	})

	t.Run("first record after deleting slot zero", func(t *testing.T) {
		require.NoError(t, dp.DeleteRecord(rids[0]))
		first, err := dp.FirstRecord()
		require.NoError(t, err)
		assert.Equal(t, rids[1], first)
	})
}

func TestHeaderPage(t *testing.T) {
	buffer := make([]byte, 128)

	_, err := DecodeHeader(buffer)
	assert.ErrorIs(t, err, ErrBadHeader)

	h := &HeaderPage{FileName: "students", RecCnt: 42, FirstPage: 2, LastPage: 9, PageCnt: 5}
	require.NoError(t, h.Encode(buffer))
	decoded, err := DecodeHeader(buffer)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)

	t.Run("view shares the page bytes", func(t *testing.T) {
		first, err := ReadHeaderPage(buffer)
		require.NoError(t, err)
		second, err := ReadHeaderPage(buffer)
		require.NoError(t, err)

		first.SetRecCnt(first.RecCnt() + 1)
		first.SetLastPage(11)
		first.SetPageCnt(6)
		assert.Equal(t, int32(43), second.RecCnt())
		assert.Equal(t, int32(11), second.LastPage())
		assert.Equal(t, int32(6), second.PageCnt())
		assert.Equal(t, int32(2), second.FirstPage())
		assert.Equal(t, "students", second.FileName())

		_, err = ReadHeaderPage(make([]byte, 128))
		assert.ErrorIs(t, err, ErrBadHeader)
	})

	long := &HeaderPage{FileName: string(bytes.Repeat([]byte("x"), MaxNameSize+1))}
	assert.ErrorIs(t, long.Encode(buffer), ErrNameLength)
	assert.ErrorIs(t, h.Encode(make([]byte, 10)), ErrPageSize)
}

func TestParseRID(t *testing.T) {
	rid, err := ParseRID(RID{PageNo: 4, SlotNo: 11}.String())
	require.NoError(t, err)
	assert.Equal(t, RID{PageNo: 4, SlotNo: 11}, rid)

	// page 1 is the header page, never a record
	for _, bad := range []string{"", "4", "x.1", "0.1", "1.0", "3.-1"} {
		_, err := ParseRID(bad)
		assert.ErrorIs(t, err, ErrBadRID, bad)
	}
	assert.True(t, NullRID.IsNull())
}
