package file

import (
	"strings"
	"testing"

	"boro-heap/disk"
	"boro-heap/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapFileLifecycle(t *testing.T) {
	fs := newTestFS(t, 8)

	t.Run("Test create", func(t *testing.T) {
		require.NoError(t, CreateHeapFile(testLogger(), fs, "students"))
		assert.ErrorIs(t, CreateHeapFile(testLogger(), fs, "students"), ErrFileExists)
		assert.ErrorIs(t, CreateHeapFile(testLogger(), fs, strings.Repeat("x", records.MaxNameSize+1)), records.ErrNameLength)
	})

	t.Run("Test open empty file", func(t *testing.T) {
		hf, err := OpenHeapFile(testLogger(), fs, "students")
		require.NoError(t, err)
		assert.Equal(t, "students", hf.FileName())
		assert.Equal(t, 0, hf.GetRecordCount())
		assert.Equal(t, int32(1), hf.headerPageNo)
		assert.Equal(t, int32(2), hf.header.FirstPage())
		assert.Equal(t, int32(2), hf.header.LastPage())
		assert.Equal(t, int32(1), hf.header.PageCnt())
		assert.Equal(t, int32(2), hf.curPageNo)
		assert.True(t, hf.curRec.IsNull())

		assert.Nil(t, hf.Close())
		assert.Nil(t, hf.Close())
	})

	t.Run("Test create fails while open", func(t *testing.T) {
		hf, err := OpenHeapFile(testLogger(), fs, "students")
		require.NoError(t, err)
		assert.ErrorIs(t, CreateHeapFile(testLogger(), fs, "students"), ErrFileExists)
		assert.ErrorIs(t, DestroyHeapFile(fs, "students"), disk.ErrFileOpen)
		assert.Nil(t, hf.Close())
	})

	t.Run("Test destroy", func(t *testing.T) {
		require.NoError(t, DestroyHeapFile(fs, "students"))
		_, err := OpenHeapFile(testLogger(), fs, "students")
		assert.ErrorIs(t, err, disk.ErrNoFile)
		assert.ErrorIs(t, DestroyHeapFile(fs, "students"), disk.ErrNoFile)
	})

	assertPinsBalanced(t, fs)
}

func TestHeapFileRoundTrip(t *testing.T) {
	fs := newTestFS(t, 8)
	require.NoError(t, CreateHeapFile(testLogger(), fs, "people"))

	inputs := []string{"ada", "grace", "", "barbara", "edsger"}
	rids := make([]records.RID, len(inputs))

	is, err := OpenInsertFileScan(testLogger(), fs, "people")
	require.NoError(t, err)
	for i, in := range inputs {
		rids[i], err = is.InsertRecord(records.Record(in))
		require.NoError(t, err)

		rec, err := is.GetRecord(rids[i])
		require.NoError(t, err)
		assert.Equal(t, in, string(rec))
	}
	assert.Equal(t, len(inputs), is.GetRecordCount())
	assert.Nil(t, is.Close())

	t.Run("Test records survive reopen", func(t *testing.T) {
		hf, err := OpenHeapFile(testLogger(), fs, "people")
		require.NoError(t, err)
		defer hf.Close()

		assert.Equal(t, len(inputs), hf.GetRecordCount())
		for i := len(inputs) - 1; i >= 0; i-- {
			rec, err := hf.GetRecord(rids[i])
			require.NoError(t, err)
			assert.Equal(t, inputs[i], string(rec))
			assert.Equal(t, rids[i], hf.curRec)
		}
	})

	t.Run("Test bad record ids", func(t *testing.T) {
		hf, err := OpenHeapFile(testLogger(), fs, "people")
		require.NoError(t, err)
		defer hf.Close()

		_, err = hf.GetRecord(records.RID{PageNo: 99, SlotNo: 0})
		assert.ErrorIs(t, err, disk.ErrBadPageNo)
		assert.Nil(t, hf.curPage)

		_, err = hf.GetRecord(records.RID{PageNo: rids[0].PageNo, SlotNo: 40})
		assert.ErrorIs(t, err, records.ErrInvalidSlot)

		// the header page is not a data page
		_, err = hf.GetRecord(records.RID{PageNo: hf.headerPageNo, SlotNo: 0})
		assert.ErrorIs(t, err, ErrNotDataPage)
		assert.Nil(t, hf.curPage)

		// a page of the file that was never linked into the chain
		orphan, _, err := fs.AllocPage(hf.file)
		require.NoError(t, err)
		require.NoError(t, fs.UnPinPage(hf.file, orphan, true))
		_, err = hf.GetRecord(records.RID{PageNo: orphan, SlotNo: 0})
		assert.ErrorIs(t, err, ErrNotDataPage)
		assert.Nil(t, hf.curPage)

		rec, err := hf.GetRecord(rids[1])
		require.NoError(t, err)
		assert.Equal(t, "grace", string(rec))
	})

	t.Run("Test scan after a header page lookup", func(t *testing.T) {
		hs, err := OpenHeapFileScan(testLogger(), fs, "people")
		require.NoError(t, err)
		defer hs.Close()
		require.NoError(t, hs.StartScan(0, 0, STRING, nil, EQ))

		_, err = hs.HeapFile.GetRecord(records.RID{PageNo: hs.headerPageNo, SlotNo: 0})
		assert.ErrorIs(t, err, ErrNotDataPage)
		assert.Equal(t, rids[0].PageNo, hs.curPageNo)

		var seen []records.RID
		for len(seen) <= len(inputs) {
			rid, err := hs.ScanNext()
			if err != nil {
				assert.ErrorIs(t, err, ErrFileEOF)
				break
			}
			seen = append(seen, rid)
		}
		assert.Equal(t, rids, seen)
	})

	assertPinsBalanced(t, fs)
}

func TestInsertOverflowChain(t *testing.T) {
	fs := newTestFS(t, 8)

	// 50 byte records plus a 4 byte slot, four fit in a 256 byte page
	const recordSize = 50
	const perPage = 4
	values := make([]int32, 10)
	for i := range values {
		values[i] = int32(i)
	}
	rids := createWithInts(t, fs, "chain", recordSize, values...)

	hf, err := OpenHeapFile(testLogger(), fs, "chain")
	require.NoError(t, err)
	assert.Equal(t, len(values), hf.GetRecordCount())
	assert.Equal(t, int32(3), hf.header.PageCnt())

	var perPageCounts []int
	var pages []int32
	for pageNo := hf.header.FirstPage(); pageNo != records.EndOfChain; {
		page, err := fs.ReadPage(hf.file, pageNo)
		require.NoError(t, err)
		dp := records.ReadDataPage(page.Data())
		perPageCounts = append(perPageCounts, dp.RecordCount())
		pages = append(pages, pageNo)
		next := dp.GetNextPage()
		require.NoError(t, fs.UnPinPage(hf.file, pageNo, false))
		pageNo = next
	}
	assert.Equal(t, []int{perPage, perPage, 2}, perPageCounts)
	assert.Equal(t, hf.header.LastPage(), pages[len(pages)-1])

	for i, rid := range rids {
		assert.Equal(t, pages[i/perPage], rid.PageNo)
	}
	assert.Nil(t, hf.Close())

	t.Run("Test appends go to the tail page", func(t *testing.T) {
		is, err := OpenInsertFileScan(testLogger(), fs, "chain")
		require.NoError(t, err)
		rid, err := is.InsertRecord(intRecord(10, recordSize))
		require.NoError(t, err)
		assert.Equal(t, pages[2], rid.PageNo)
		assert.Equal(t, 11, is.GetRecordCount())
		assert.Nil(t, is.Close())
	})

	assertPinsBalanced(t, fs)
}

func TestInsertRecordLength(t *testing.T) {
	fs := newTestFS(t, 8)
	require.NoError(t, CreateHeapFile(testLogger(), fs, "big"))

	is, err := OpenInsertFileScan(testLogger(), fs, "big")
	require.NoError(t, err)

	maxSize := records.MaxRecordSize(testPageSize)
	_, err = is.InsertRecord(make(records.Record, maxSize+1))
	assert.ErrorIs(t, err, ErrInvalidRecLen)
	assert.Equal(t, 0, is.GetRecordCount())

	_, err = is.InsertRecord(make(records.Record, maxSize))
	assert.Nil(t, err)
	rid, err := is.InsertRecord(make(records.Record, maxSize))
	assert.Nil(t, err)
	assert.Equal(t, int32(0), rid.SlotNo)
	assert.Equal(t, 2, is.GetRecordCount())
	assert.Equal(t, int32(2), is.header.PageCnt())
	assert.Nil(t, is.Close())

	assertPinsBalanced(t, fs)
}

func TestHandlesShareHeader(t *testing.T) {
	fs := newTestFS(t, 8)
	createWithInts(t, fs, "shared", 8, 1, 2, 3)

	hs, err := OpenHeapFileScan(testLogger(), fs, "shared")
	require.NoError(t, err)
	is, err := OpenInsertFileScan(testLogger(), fs, "shared")
	require.NoError(t, err)

	for _, v := range []int32{4, 5, 6} {
		_, err := is.InsertRecord(intRecord(v, 8))
		require.NoError(t, err)
	}

	t.Run("Test reader sees the writer's count", func(t *testing.T) {
		assert.Equal(t, 6, is.GetRecordCount())
		assert.Equal(t, 6, hs.GetRecordCount())

		require.NoError(t, hs.StartScan(0, 0, STRING, nil, EQ))
		values := scanAll(t, hs)
		assert.Equal(t, []int32{1, 2, 3, 4, 5, 6}, values)
		assert.Equal(t, hs.GetRecordCount(), len(values))
	})

	t.Run("Test writer sees the reader's delete", func(t *testing.T) {
		require.NoError(t, hs.EndScan())
		require.NoError(t, hs.StartScan(0, IntWidth, INTEGER, intBytes(2), EQ))
		_, err := hs.ScanNext()
		require.NoError(t, err)
		require.NoError(t, hs.DeleteRecord())

		assert.Equal(t, 5, hs.GetRecordCount())
		assert.Equal(t, 5, is.GetRecordCount())
	})

	assert.Nil(t, is.Close())
	assert.Nil(t, hs.Close())

	t.Run("Test count survives reopen", func(t *testing.T) {
		hs, err := OpenHeapFileScan(testLogger(), fs, "shared")
		require.NoError(t, err)
		defer hs.Close()

		require.NoError(t, hs.StartScan(0, 0, STRING, nil, EQ))
		values := scanAll(t, hs)
		assert.Equal(t, []int32{1, 3, 4, 5, 6}, values)
		assert.Equal(t, hs.GetRecordCount(), len(values))
	})

	assertPinsBalanced(t, fs)
}
