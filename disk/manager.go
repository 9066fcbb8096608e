package disk

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/phuslu/log"
)

const permissionBits = 0755 // directory requires executioin as well hence 7 bit
const filePermissionBits = 0644

/*
Manager owns the paged files of one directory.
Opening a name twice hands back the same *File with its open count raised,
the descriptor is only closed once every opener called CloseFile.
*/
type Manager struct {
	logger     log.Logger
	options    *FileOptions
	files      map[string]*File
	nextFileID uint32
	lock       *sync.Mutex
}

func NewManager(logger log.Logger, options *FileOptions) (*Manager, error) {
	if options.PageSizeByte == 0 {
		options.PageSizeByte = DEFAULT_PAGE_SIZE
	}
	if options.PageSizeByte < MIN_PAGE_SIZE {
		return nil, ErrBadBuffer
	}

	if _, err := os.Stat(options.FileDirectory); err != nil {
		logger.Info().Str("dir", options.FileDirectory).Msg("creating file directory")
		if err := os.MkdirAll(options.FileDirectory, permissionBits); err != nil {
			logger.Error().Err(err).Msg("failed to create file directory")
			return nil, err
		}
	}

	return &Manager{
		logger:     logger,
		options:    options,
		files:      make(map[string]*File),
		nextFileID: 1,
		lock:       &sync.Mutex{},
	}, nil
}

func (m *Manager) path(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, filepath.Separator) || name == "." || name == ".." {
		return "", ErrBadFileName
	}
	return filepath.Join(m.options.FileDirectory, name), nil
}

// CreateFile creates an empty paged file holding only its metadata block
func (m *Manager) CreateFile(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	path, err := m.path(name)
	if err != nil {
		return err
	}

	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_CREAT|syscall.O_EXCL, filePermissionBits)
	if err != nil {
		if errors.Is(err, syscall.EEXIST) {
			return ErrFileExists
		}
		m.logger.Error().Err(err).Str("file", name).Msg("failed to create file")
		return err
	}
	defer syscall.Close(fd)

	meta := filemeta{
		pageSize: m.options.PageSizeByte,
		buffer:   make([]byte, m.options.PageSizeByte),
	}
	meta.SerializeMetaData()

	if _, err := syscall.Pwrite(fd, meta.buffer, 0); err != nil {
		m.logger.Error().Err(err).Str("file", name).Msg("failed to write file metadata")
		return err
	}
	if err := syscall.Fsync(fd); err != nil {
		m.logger.Error().Err(err).Str("file", name).Msg("failed to fsync file")
		return err
	}
	m.logger.Debug().Str("file", name).Msg("created file")
	return nil
}

func (m *Manager) OpenFile(name string) (*File, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if f, ok := m.files[name]; ok {
		f.openCount++
		return f, nil
	}

	path, err := m.path(name)
	if err != nil {
		return nil, err
	}

	fd, err := syscall.Open(path, syscall.O_RDWR, filePermissionBits)
	if err != nil {
		if errors.Is(err, syscall.ENOENT) {
			return nil, ErrNoFile
		}
		return nil, err
	}

	f := &File{
		name:    name,
		path:    path,
		fd:      fd,
		options: m.options,
		meta: filemeta{
			buffer: make([]byte, m.options.PageSizeByte),
		},
	}

	if _, err := syscall.Pread(fd, f.meta.buffer, 0); err != nil {
		syscall.Close(fd)
		m.logger.Error().Err(err).Str("file", name).Msg("failed to read file metadata")
		return nil, err
	}
	if err := f.meta.DeserializeMetaData(); err != nil {
		syscall.Close(fd)
		m.logger.Error().Err(err).Str("file", name).Msg("failed to decode file metadata")
		return nil, err
	}
	if f.meta.pageSize != m.options.PageSizeByte {
		syscall.Close(fd)
		return nil, ErrPageSizeMismatch
	}

	f.id = m.nextFileID
	m.nextFileID++
	f.openCount = 1
	m.files[name] = f
	return f, nil
}

func (m *Manager) CloseFile(f *File) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if f == nil || f.fd < 0 {
		return ErrFileClosed
	}

	f.openCount--
	if f.openCount > 0 {
		return nil
	}

	delete(m.files, f.name)
	syncErr := syscall.Fsync(f.fd)
	closeErr := syscall.Close(f.fd)
	f.fd = -1
	if syncErr != nil {
		m.logger.Error().Err(syncErr).Str("file", f.name).Msg("failed to fsync file on close")
		return syncErr
	}
	return closeErr
}

// DestroyFile removes a file that no one holds open
func (m *Manager) DestroyFile(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.files[name]; ok {
		return ErrFileOpen
	}
	path, err := m.path(name)
	if err != nil {
		return err
	}
	if err := syscall.Unlink(path); err != nil {
		if errors.Is(err, syscall.ENOENT) {
			return ErrNoFile
		}
		m.logger.Error().Err(err).Str("file", name).Msg("failed to delete file")
		return err
	}
	m.logger.Debug().Str("file", name).Msg("destroyed file")
	return nil
}

func (m *Manager) IsOpen(name string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, ok := m.files[name]
	return ok
}

func (m *Manager) PageSize() uint32 {
	return m.options.PageSizeByte
}

// Openers reports how many CloseFile calls are still needed before f is really closed
func (m *Manager) Openers(f *File) int {
	m.lock.Lock()
	defer m.lock.Unlock()
	if f == nil || f.fd < 0 {
		return 0
	}
	return f.openCount
}
