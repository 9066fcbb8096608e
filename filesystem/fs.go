package filesystem

import (
	"boro-heap/disk"
	"boro-heap/paging"

	"github.com/phuslu/log"
)

/*
Filesystem joins the paged files (disk) with the buffer pool (paging)
into the one collaborator the heap file layer talks to.

- files are created, opened and destroyed by name inside one directory
- pages of an open file are only reached through the buffer pool, pinned on read and released by UnPinPage
- closing the last handle of a file writes back its dirty pages before the descriptor goes away
*/
type FileSystem interface {
	CreateFile(name string) error
	DestroyFile(name string) error
	OpenFile(name string) (*disk.File, error)
	CloseFile(file *disk.File) error

	// Appends a zeroed page to the file and returns it pinned
	AllocPage(file *disk.File) (int32, *paging.Page, error)
	// Pins and returns a page of the file
	ReadPage(file *disk.File, pageNo int32) (*paging.Page, error)
	UnPinPage(file *disk.File, pageNo int32, dirty bool) error

	PageSize() uint32
	Stats() paging.Stats
	Close() error
}

type FileSystemOptions struct {
	disk.FileOptions
	paging.PageSystemOption
}

func DefaultOptions(dir string) *FileSystemOptions {
	return &FileSystemOptions{
		FileOptions: disk.FileOptions{
			PageSizeByte:  disk.DEFAULT_PAGE_SIZE,
			FileDirectory: dir,
		},
		PageSystemOption: paging.PageSystemOption{
			PageSizeByte:     disk.DEFAULT_PAGE_SIZE,
			BufferPoolFrames: paging.DEFAULT_BUFFER_POOL_FRAMES,
			VictimCacheBytes: int64(paging.DEFAULT_BUFFER_POOL_FRAMES) * int64(disk.DEFAULT_PAGE_SIZE),
		},
	}
}

type localfilesystem struct {
	options *FileSystemOptions
	disk    *disk.Manager
	paging  paging.PageSystem
	logger  log.Logger
}

func (lfs *localfilesystem) CreateFile(name string) error {
	return lfs.disk.CreateFile(name)
}

func (lfs *localfilesystem) DestroyFile(name string) error {
	return lfs.disk.DestroyFile(name)
}

func (lfs *localfilesystem) OpenFile(name string) (*disk.File, error) {
	return lfs.disk.OpenFile(name)
}

/*
Only the last close flushes, earlier openers share the frames of the file
and may still have pages pinned.
*/
func (lfs *localfilesystem) CloseFile(file *disk.File) error {
	if lfs.disk.Openers(file) == 1 {
		if err := lfs.paging.FlushFile(file); err != nil {
			lfs.logger.Error().Err(err).Str("file", file.Name()).Msg("error flushing file on close")
			return err
		}
	}
	return lfs.disk.CloseFile(file)
}

func (lfs *localfilesystem) AllocPage(file *disk.File) (int32, *paging.Page, error) {
	return lfs.paging.AllocPage(file)
}

func (lfs *localfilesystem) ReadPage(file *disk.File, pageNo int32) (*paging.Page, error) {
	return lfs.paging.ReadPage(file, pageNo)
}

func (lfs *localfilesystem) UnPinPage(file *disk.File, pageNo int32, dirty bool) error {
	return lfs.paging.UnPinPage(file, pageNo, dirty)
}

func (lfs *localfilesystem) PageSize() uint32 {
	return lfs.disk.PageSize()
}

func (lfs *localfilesystem) Stats() paging.Stats {
	return lfs.paging.Stats()
}

// Close writes back every dirty page still buffered, open files stay open
func (lfs *localfilesystem) Close() error {
	return lfs.paging.Close()
}

func NewFileSystem(logger log.Logger, options *FileSystemOptions) (FileSystem, error) {

	if options.PageSystemOption.PageSizeByte == 0 {
		options.PageSystemOption.PageSizeByte = options.FileOptions.PageSizeByte
	}
	if options.FileOptions.PageSizeByte == 0 {
		options.FileOptions.PageSizeByte = options.PageSystemOption.PageSizeByte
	}
	if options.FileOptions.PageSizeByte != options.PageSystemOption.PageSizeByte {
		logger.Error().Uint32("file", options.FileOptions.PageSizeByte).Uint32("pool", options.PageSystemOption.PageSizeByte).Msg("page size of files and buffer pool differ")
		return nil, paging.ErrPageSizeMismatch
	}

	manager, err := disk.NewManager(logger, &options.FileOptions)
	if err != nil {
		logger.Error().Err(err).Msg("error creating disk manager")
		return nil, err
	}

	// the manager may have filled in the default page size
	options.PageSystemOption.PageSizeByte = manager.PageSize()
	pages, err := paging.NewPageSystem(logger, options.PageSystemOption)
	if err != nil {
		logger.Error().Err(err).Msg("error creating paging")
		return nil, err
	}

	return &localfilesystem{
		disk:    manager,
		paging:  pages,
		options: options,
		logger:  logger,
	}, nil
}
