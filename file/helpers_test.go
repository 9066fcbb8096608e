package file

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"boro-heap/disk"
	"boro-heap/filesystem"
	"boro-heap/logging"
	"boro-heap/paging"
	"boro-heap/records"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageSize = 256

// countingFS tracks successful pins and unpins per page number
type countingFS struct {
	filesystem.FileSystem
	pins   map[int32]int
	unpins map[int32]int
}

func (c *countingFS) AllocPage(f *disk.File) (int32, *paging.Page, error) {
	pageNo, page, err := c.FileSystem.AllocPage(f)
	if err == nil {
		c.pins[pageNo]++
	}
	return pageNo, page, err
}

func (c *countingFS) ReadPage(f *disk.File, pageNo int32) (*paging.Page, error) {
	page, err := c.FileSystem.ReadPage(f, pageNo)
	if err == nil {
		c.pins[pageNo]++
	}
	return page, err
}

func (c *countingFS) UnPinPage(f *disk.File, pageNo int32, dirty bool) error {
	err := c.FileSystem.UnPinPage(f, pageNo, dirty)
	if err == nil {
		c.unpins[pageNo]++
	}
	return err
}

func newTestFS(t *testing.T, frames int) *countingFS {
	t.Helper()
	options := filesystem.DefaultOptions(t.TempDir())
	options.FileOptions.PageSizeByte = testPageSize
	options.PageSystemOption.PageSizeByte = testPageSize
	options.BufferPoolFrames = frames
	options.VictimCacheBytes = 0

	fs, err := filesystem.NewFileSystem(testLogger(), options)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	return &countingFS{
		FileSystem: fs,
		pins:       make(map[int32]int),
		unpins:     make(map[int32]int),
	}
}

func testLogger() log.Logger {
	return *logging.CreateDiscardLogger()
}

func assertPinsBalanced(t *testing.T, fs *countingFS) {
	t.Helper()
	assert.Equal(t, fs.pins, fs.unpins, "every pin must be matched by one unpin")
	assert.Equal(t, 0, fs.Stats().PinnedFrames)
}

func intRecord(v int32, size int) records.Record {
	rec := make(records.Record, size)
	binary.LittleEndian.PutUint32(rec, uint32(v))
	return rec
}

func recordInt(rec records.Record) int32 {
	return int32(binary.LittleEndian.Uint32(rec))
}

func intBytes(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

func floatBytes(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

func createWithInts(t *testing.T, fs filesystem.FileSystem, name string, size int, values ...int32) []records.RID {
	t.Helper()
	require.NoError(t, CreateHeapFile(testLogger(), fs, name))
	is, err := OpenInsertFileScan(testLogger(), fs, name)
	require.NoError(t, err)
	defer is.Close()

	rids := make([]records.RID, 0, len(values))
	for _, v := range values {
		rid, err := is.InsertRecord(intRecord(v, size))
		require.NoError(t, err)
		rids = append(rids, rid)
	}
	return rids
}

// scanAll returns the integers of every record passing the current filter
func scanAll(t *testing.T, hs *HeapFileScan) []int32 {
	t.Helper()
	var values []int32
	for {
		_, err := hs.ScanNext()
		if errors.Is(err, ErrFileEOF) {
			return values
		}
		require.NoError(t, err)
		rec, err := hs.GetRecord()
		require.NoError(t, err)
		values = append(values, recordInt(rec))
	}
}
