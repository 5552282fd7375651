// Package mmapfile provides on-demand memory mapping of fixed-size
// segments of a single backing file. It implements component A of the
// GOL core: "map fixed-size segments of a file on demand; return stable
// byte pointers by page number." One Manager owns one file; segments are
// mapped lazily and stay mapped until the Manager is closed (spec §4.A).
//
// Grounded on hupe1980-vecgo/internal/mmap's Mapping/Region split, widened
// from a single read-only whole-file mapping to multiple independently
// creatable segments, and extended with a read-write mapping leg for
// writer transactions (the example only ever mapped read-only).
package mmapfile

import (
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/byjtew/libgeodesk/golerr"
)

// SegmentSize is the fixed mapping unit (spec §3.1): a store is a
// concatenation of 1 GiB segments.
const SegmentSize = 1 << 30

// ErrClosed is returned by any operation against a Manager or Mapping
// after Close has been called.
var ErrClosed = errors.New("mmapfile: manager is closed")

// segment is one mapped 1 GiB region of the backing file; segmentFor
// always maps a full SegmentSize, growing the file first if needed.
type segment struct {
	data []byte
}

// Manager owns a single backing file and lazily maps its segments.
// Safe for concurrent read access once a segment has been mapped;
// mapping a new segment takes an exclusive lock.
type Manager struct {
	path     string
	file     *os.File
	writable bool

	mu       sync.RWMutex
	segments map[uint32]*segment
	closed   bool
}

// Open maps path for reading (and, if writable, for writing). The file
// must already exist; callers that create a new store should create the
// file first (with Create) before Opening it.
func Open(path string, writable bool) (*Manager, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, golerr.Wrap(golerr.FileNotFound, path, err.Error())
		}
		return nil, golerr.Wrap(golerr.IoError, path, err.Error())
	}
	return &Manager{
		path:     path,
		file:     f,
		writable: writable,
		segments: make(map[uint32]*segment),
	}, nil
}

// Create creates a new, empty backing file at path (truncating any
// existing file) and opens it read-write.
func Create(path string) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, golerr.Wrap(golerr.IoError, path, err.Error())
	}
	f.Close()
	return Open(path, true)
}

// Path returns the backing file path.
func (m *Manager) Path() string { return m.path }

// Writable reports whether this Manager holds a read-write mapping.
func (m *Manager) Writable() bool { return m.writable }

func segmentIndex(offset uint64) uint32 { return uint32(offset / SegmentSize) }
func segmentOffset(offset uint64) int   { return int(offset % SegmentSize) }

// EnsureSize grows the backing file (via ftruncate, which is sparse on
// every target OS) so that it is at least size bytes, so that mapping
// the segment containing the last byte below size will succeed.
func (m *Manager) EnsureSize(size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	fi, err := m.file.Stat()
	if err != nil {
		return golerr.Wrap(golerr.IoError, m.path, err.Error())
	}
	if uint64(fi.Size()) >= size {
		return nil
	}
	if err := m.file.Truncate(int64(size)); err != nil {
		return golerr.Wrap(golerr.IoError, m.path, err.Error())
	}
	return nil
}

// segmentFor maps (or returns the already-mapped) segment containing
// offset. It takes m.mu itself: a read lock for the lookup, and the
// write lock to map a segment that is not yet present.
func (m *Manager) segmentFor(offset uint64) (*segment, error) {
	idx := segmentIndex(offset)

	m.mu.RLock()
	seg, ok := m.segments[idx]
	m.mu.RUnlock()
	if ok {
		return seg, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if seg, ok = m.segments[idx]; ok {
		return seg, nil
	}

	segStart := uint64(idx) * SegmentSize
	if err := m.growLocked(segStart + SegmentSize); err != nil {
		return nil, err
	}

	data, err := osMap(m.file, int64(segStart), SegmentSize, m.writable)
	if err != nil {
		return nil, golerr.Wrap(golerr.IoError, m.path, err.Error())
	}
	seg = &segment{data: data}
	m.segments[idx] = seg
	return seg, nil
}

func (m *Manager) growLocked(size uint64) error {
	fi, err := m.file.Stat()
	if err != nil {
		return golerr.Wrap(golerr.IoError, m.path, err.Error())
	}
	if uint64(fi.Size()) >= size {
		return nil
	}
	if err := m.file.Truncate(int64(size)); err != nil {
		return golerr.Wrap(golerr.IoError, m.path, err.Error())
	}
	return nil
}

// Data returns a stable byte slice starting at offset and running to the
// end of the enclosing segment, mapping that segment on demand. The
// returned slice aliases the mapped memory directly (zero-copy) and
// remains valid until Close.
func (m *Manager) Data(offset uint64) ([]byte, error) {
	seg, err := m.segmentFor(offset)
	if err != nil {
		return nil, err
	}
	return seg.data[segmentOffset(offset):], nil
}

// DataRange returns exactly size bytes starting at offset. It fails if
// the requested range would cross a segment boundary: blobs never
// cross a segment boundary (spec §3.4), so a legitimate caller never
// hits this.
func (m *Manager) DataRange(offset uint64, size uint64) ([]byte, error) {
	if segmentOffset(offset)+int(size) > SegmentSize {
		return nil, errors.Errorf("mmapfile: range [%d,%d) crosses a segment boundary", offset, offset+size)
	}
	b, err := m.Data(offset)
	if err != nil {
		return nil, err
	}
	return b[:size], nil
}

// Prefetch gives the OS a sequential-read hint for the region starting
// at offset; advisory only, and may be a no-op on platforms without
// madvise (spec §4.A).
func (m *Manager) Prefetch(offset uint64, size uint64) {
	seg, err := m.segmentFor(offset)
	if err != nil {
		return
	}
	off := segmentOffset(offset)
	end := off + int(size)
	if end > len(seg.data) {
		end = len(seg.data)
	}
	if off >= end {
		return
	}
	_ = osAdvise(seg.data[off:end], adviseSequential)
}

// Force flushes all dirty mapped segments to disk (msync), per spec
// §4.A and the commit protocol in §4.B ("force() all data pages").
func (m *Manager) Force() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	for _, seg := range m.segments {
		if err := osSync(seg.data); err != nil {
			return golerr.Wrap(golerr.IoError, m.path, err.Error())
		}
	}
	return nil
}

// Close unmaps every mapped segment and closes the backing file. Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var first error
	for _, seg := range m.segments {
		if err := osUnmap(seg.data); err != nil && first == nil {
			first = err
		}
	}
	m.segments = nil
	if err := m.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
