package paging

import (
	"sync"

	"boro-heap/utils/cache"
	"boro-heap/utils/freelist"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/phuslu/log"
)

/*
What is a buffer pool for us
- a fixed set of frames, each frame holds one page of one file
- callers pin a page with ReadPage / AllocPage and release it with UnPinPage
- a frame with pin count zero sits in the LRU replacer and can be reused
- a dirty frame is written back to its file before the frame is reused
- the free frame bitmap hands out frames that never held a page (or were released by FlushFile)

Victim cache
- when a frame gets reused its page image (already clean on disk) is copied into a ristretto cache
- a miss in the pool checks the victim cache before going to disk
- an entry is deleted the moment the page becomes resident again, so a frame is the only
  owner of a page image while resident and the cache never serves an outdated copy
*/
type bufferPool struct {
	logger   log.Logger
	options  PageSystemOption
	frames   []*frame
	table    map[pageKey]*frame
	free     freelist.FreeList
	replacer cache.Cache[pageKey, *frame]
	victims  *ristretto.Cache[uint64, []byte]
	stats    Stats
	mutex    *sync.Mutex
}

func NewPageSystem(logger log.Logger, options PageSystemOption) (PageSystem, error) {
	if options.BufferPoolFrames == 0 {
		options.BufferPoolFrames = DEFAULT_BUFFER_POOL_FRAMES
	}
	if options.BufferPoolFrames < 0 || options.PageSizeByte == 0 || options.VictimCacheBytes < 0 {
		return nil, ErrBadPoolOptions
	}

	frames := make([]*frame, options.BufferPoolFrames)
	for i := range frames {
		frames[i] = &frame{
			index: uint64(i),
			page: Page{
				buffer: make([]byte, options.PageSizeByte),
			},
		}
	}

	bp := &bufferPool{
		logger:   logger,
		options:  options,
		frames:   frames,
		table:    make(map[pageKey]*frame, options.BufferPoolFrames),
		free:     freelist.NewBitmapFreeList(make([]byte, (options.BufferPoolFrames+7)/8), 0, uint64(options.BufferPoolFrames)-1),
		replacer: cache.NewLRUCache[pageKey, *frame](options.BufferPoolFrames),
		mutex:    &sync.Mutex{},
	}

	if options.VictimCacheBytes > 0 {
		pages := options.VictimCacheBytes / int64(options.PageSizeByte)
		victims, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
			NumCounters:        max(10*pages, 100),
			MaxCost:            options.VictimCacheBytes,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			logger.Error().Err(err).Msg("failed to create victim cache")
			return nil, err
		}
		bp.victims = victims
	}

	return bp, nil
}

// grabFrame returns an unused frame, reusing the least recently unpinned one when none is free
func (bp *bufferPool) grabFrame() (*frame, error) {
	if idx, err := bp.free.GetPages(1); err == nil {
		return bp.frames[idx[0]], nil
	}

	key, fr, ok := bp.replacer.EvictOldest(func(pageKey, *frame) bool { return true })
	if !ok {
		return nil, ErrBufferExceeded
	}

	if fr.dirty {
		if err := fr.file.WritePage(fr.page.pageNumber, fr.page.buffer); err != nil {
			bp.logger.Error().Err(err).Str("file", fr.file.Name()).Int32("page", fr.page.pageNumber).Msg("failed to write back page on eviction")
			bp.replacer.Put(key, fr)
			return nil, err
		}
		bp.stats.DiskWrites++
	}

	if bp.victims != nil {
		image := make([]byte, len(fr.page.buffer))
		copy(image, fr.page.buffer)
		bp.victims.Set(key.pack(), image, int64(len(image)))
	}

	bp.logger.Debug().Str("file", fr.file.Name()).Int32("page", fr.page.pageNumber).Bool("dirty", fr.dirty).Msg("evicted page")
	delete(bp.table, key)
	fr.reset()
	bp.stats.Evictions++
	return fr, nil
}

func (bp *bufferPool) releaseFrame(fr *frame) {
	fr.reset()
	bp.free.ReleasePages([]uint64{fr.index})
}

func (bp *bufferPool) install(fr *frame, file PagedFile, pageNo int32) *Page {
	fr.file = file
	fr.page.pageNumber = pageNo
	fr.pinCount = 1
	fr.dirty = false
	bp.table[fr.key()] = fr
	return &fr.page
}

func (bp *bufferPool) AllocPage(file PagedFile) (int32, *Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if file.PageSize() != bp.options.PageSizeByte {
		return 0, nil, ErrPageSizeMismatch
	}

	fr, err := bp.grabFrame()
	if err != nil {
		return 0, nil, err
	}

	pageNo, err := file.AllocatePage()
	if err != nil {
		bp.logger.Error().Err(err).Str("file", file.Name()).Msg("failed to allocate page")
		bp.releaseFrame(fr)
		return 0, nil, err
	}

	clear(fr.page.buffer)
	page := bp.install(fr, file, pageNo)
	bp.logger.Debug().Str("file", file.Name()).Int32("page", pageNo).Msg("allocated page")
	return pageNo, page, nil
}

func (bp *bufferPool) ReadPage(file PagedFile, pageNo int32) (*Page, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	key := pageKey{fileID: file.ID(), pageNo: pageNo}

	if fr, ok := bp.table[key]; ok {
		if fr.pinCount == 0 {
			bp.replacer.Evict(key, func(*frame) bool { return true })
		}
		fr.pinCount++
		bp.stats.Hits++
		return &fr.page, nil
	}

	if file.PageSize() != bp.options.PageSizeByte {
		return nil, ErrPageSizeMismatch
	}

	fr, err := bp.grabFrame()
	if err != nil {
		return nil, err
	}
	bp.stats.Misses++

	loaded := false
	if bp.victims != nil {
		if image, ok := bp.victims.Get(key.pack()); ok && len(image) == len(fr.page.buffer) {
			copy(fr.page.buffer, image)
			bp.stats.VictimHits++
			loaded = true
		}
		bp.victims.Del(key.pack())
	}

	if !loaded {
		if err := file.ReadPage(pageNo, fr.page.buffer); err != nil {
			bp.releaseFrame(fr)
			return nil, err
		}
		bp.stats.DiskReads++
	}

	return bp.install(fr, file, pageNo), nil
}

func (bp *bufferPool) UnPinPage(file PagedFile, pageNo int32, dirty bool) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	key := pageKey{fileID: file.ID(), pageNo: pageNo}
	fr, ok := bp.table[key]
	if !ok {
		return ErrPageNotResident
	}
	if fr.pinCount == 0 {
		return ErrPageNotPinned
	}

	if dirty {
		fr.dirty = true
	}
	fr.pinCount--
	if fr.pinCount == 0 {
		bp.replacer.Put(key, fr)
	}
	return nil
}

func (bp *bufferPool) FlushFile(file PagedFile) error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	var flushErr error
	for key, fr := range bp.table {
		if key.fileID != file.ID() {
			continue
		}

		if fr.pinCount > 0 {
			bp.logger.Error().Str("file", file.Name()).Int32("page", key.pageNo).Int("pins", fr.pinCount).Msg("page still pinned on flush")
			flushErr = ErrPagePinned
			continue
		}

		if fr.dirty {
			if err := file.WritePage(key.pageNo, fr.page.buffer); err != nil {
				bp.logger.Error().Err(err).Str("file", file.Name()).Int32("page", key.pageNo).Msg("failed to flush page")
				flushErr = err
				continue
			}
			bp.stats.DiskWrites++
		}

		bp.replacer.Evict(key, func(*frame) bool { return true })
		delete(bp.table, key)
		bp.releaseFrame(fr)
	}
	return flushErr
}

// PinCount reports the pins held on a resident page, zero when it is not resident
func (bp *bufferPool) PinCount(file PagedFile, pageNo int32) int {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if fr, ok := bp.table[pageKey{fileID: file.ID(), pageNo: pageNo}]; ok {
		return fr.pinCount
	}
	return 0
}

func (bp *bufferPool) Stats() Stats {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	stats := bp.stats
	stats.Frames = len(bp.frames)
	stats.UsedFrames = len(bp.table)
	for _, fr := range bp.table {
		if fr.pinCount > 0 {
			stats.PinnedFrames++
		}
		if fr.dirty {
			stats.DirtyFrames++
		}
	}
	return stats
}

// Close writes back every dirty frame. Files must still be open
func (bp *bufferPool) Close() error {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	var closeErr error
	for key, fr := range bp.table {
		if !fr.dirty {
			continue
		}
		if err := fr.file.WritePage(key.pageNo, fr.page.buffer); err != nil {
			bp.logger.Error().Err(err).Str("file", fr.file.Name()).Int32("page", key.pageNo).Msg("failed to flush page on close")
			closeErr = err
			continue
		}
		fr.dirty = false
		bp.stats.DiskWrites++
	}

	if bp.victims != nil {
		bp.victims.Close()
		bp.victims = nil
	}
	return closeErr
}
