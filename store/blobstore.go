package store

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/pkg/errors"

	"github.com/byjtew/libgeodesk/golerr"
	"github.com/byjtew/libgeodesk/internal/mmapfile"
	"github.com/byjtew/libgeodesk/logging"
)

// CreateOptions configures a new store (spec §3.1: page size is fixed at
// creation time and never changes for the life of the file).
type CreateOptions struct {
	PageSize uint32
	Logger   *log.Logger
}

// OpenOptions configures opening an existing store.
type OpenOptions struct {
	Writable bool
	Logger   *log.Logger
}

// BlobStore is a persistent, memory-mapped, page-oriented blob allocator
// (spec §3). One BlobStore owns one backing file; readers may share a
// BlobStore concurrently, but only one Transaction may be open at a time
// (spec §5: single-writer).
type BlobStore struct {
	logger *log.Logger
	mgr    *mmapfile.Manager
	path   string

	pageSize      uint32
	pageSizeShift uint8
	writable      bool

	// mu guards header, the trunk free-table, and writer exclusivity.
	// Readers of blob payloads do not need it: once written, a blob's
	// bytes never move (spec §5, "compaction is out of scope").
	mu        sync.Mutex
	header    Header
	buckets   *bucketBits
	writerOut bool
}

// Create creates a new, empty store at path.
func Create(path string, opts CreateOptions) (*BlobStore, error) {
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if err := validatePageSize(pageSize); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mgr, err := mmapfile.Create(path)
	if err != nil {
		return nil, err
	}
	if err := mgr.EnsureSize(uint64(pageSize)); err != nil {
		mgr.Close()
		return nil, err
	}
	page0, err := mgr.DataRange(0, uint64(pageSize))
	if err != nil {
		mgr.Close()
		return nil, err
	}

	h := Header{
		TotalPageCount: 1,
		GUID:           uuid.New(),
		PageSizeShift:  pageSizeShiftFor(pageSize),
	}
	writeHeader(page0, h)
	if err := mgr.Force(); err != nil {
		mgr.Close()
		return nil, err
	}

	s := &BlobStore{
		logger:        logger,
		mgr:           mgr,
		path:          path,
		pageSize:      pageSize,
		pageSizeShift: h.PageSizeShift,
		writable:      true,
		header:        h,
		buckets:       newBucketBits(),
	}
	logger.Info().Str("path", path).Uint32("pageSize", pageSize).Str("guid", h.GUID.String()).Msg("store created")
	return s, nil
}

// probePageSize reads just enough of the file to learn its page size
// (PageSizeShift lives at a fixed offset regardless of page size) before
// the file is mapped.
func probePageSize(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, golerr.Wrap(golerr.FileNotFound, path, err.Error())
		}
		return 0, golerr.Wrap(golerr.IoError, path, err.Error())
	}
	defer f.Close()

	buf := make([]byte, offPageSizeShift+1)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return 0, golerr.Wrap(golerr.InvalidFormat, path, "file too short to contain a header")
	}
	shift := buf[offPageSizeShift]
	pageSize := uint32(1) << shift
	if err := validatePageSize(pageSize); err != nil {
		return 0, golerr.Wrap(golerr.InvalidFormat, path, err.Error())
	}
	return pageSize, nil
}

// readRawPage0 reads page 0 directly from the backing file, bypassing
// any mapping, so its header checksum can be inspected before the store
// commits to either mapping it as-is or replaying a journal over it.
func readRawPage0(path string, pageSize uint32) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, golerr.Wrap(golerr.FileNotFound, path, err.Error())
		}
		return nil, golerr.Wrap(golerr.IoError, path, err.Error())
	}
	defer f.Close()

	buf := make([]byte, pageSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return nil, golerr.Wrap(golerr.InvalidFormat, path, "file too short to contain a header")
	}
	return buf, nil
}

// Open opens an existing store. Before mapping it, it inspects the
// on-disk header to decide whether a journal left behind by an
// interrupted transaction needs replaying, or is merely an orphan of an
// already-durable commit (spec §7; see recoverFromCrash).
func Open(path string, opts OpenOptions) (*BlobStore, error) {
	pageSize, err := probePageSize(path)
	if err != nil {
		return nil, err
	}
	if err := recoverFromCrash(path, pageSize); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mgr, err := mmapfile.Open(path, opts.Writable)
	if err != nil {
		return nil, err
	}
	page0, err := mgr.DataRange(0, uint64(pageSize))
	if err != nil {
		mgr.Close()
		return nil, err
	}
	h, err := readHeader(page0)
	if err != nil {
		mgr.Close()
		return nil, err
	}

	s := &BlobStore{
		logger:        logger,
		mgr:           mgr,
		path:          path,
		pageSize:      pageSize,
		pageSizeShift: h.PageSizeShift,
		writable:      opts.Writable,
		header:        h,
		buckets:       newBucketBits(),
	}
	if err := s.rebuildBuckets(); err != nil {
		mgr.Close()
		return nil, err
	}
	logger.Debug().Str("path", path).Uint32("totalPages", h.TotalPageCount).Msg("store opened")
	return s, nil
}

// rebuildBuckets scans the trunk free-table and marks every non-empty
// bucket in the in-memory accelerator (spec §4.A note: rebuilt on Open,
// not persisted).
func (s *BlobStore) rebuildBuckets() error {
	for i, head := range s.header.TrunkFreeTable {
		if head != 0 {
			s.buckets.set(i)
		}
	}
	return nil
}

// PageSize returns the store's fixed page size in bytes.
func (s *BlobStore) PageSize() uint32 { return s.pageSize }

// TotalPageCount returns the number of pages currently allocated to the store file.
func (s *BlobStore) TotalPageCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.TotalPageCount
}

// GUID returns the store's identity, assigned once at creation.
func (s *BlobStore) GUID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.GUID
}

// IndexPointer returns the root page of the store's quadtree tile
// index, or 0 if none has been set (spec §3.2 header.indexPointer).
func (s *BlobStore) IndexPointer() PageNum {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.header.IndexPointer
}

func (s *BlobStore) pageOffset(page PageNum) uint64 { return uint64(page) * uint64(s.pageSize) }

// BlobPayload returns the payload bytes of the blob whose first page is
// page: a stable, zero-copy slice valid until Close (spec §4.A/§3.4).
func (s *BlobStore) BlobPayload(page PageNum) ([]byte, error) {
	if page == 0 {
		return nil, errors.New("store: page 0 is the header, not a blob")
	}
	raw, err := s.mgr.Data(s.pageOffset(page))
	if err != nil {
		return nil, err
	}
	if len(raw) < BlobHeaderSize {
		return nil, golerr.Wrap(golerr.InvalidFormat, s.path, "truncated blob header")
	}
	bh := readBlobHeader(raw)
	if bh.IsFree {
		return nil, errors.Errorf("store: page %d is free, not a live blob", page)
	}
	end := BlobHeaderSize + int(bh.PayloadSize)
	if end > len(raw) {
		return nil, golerr.Wrap(golerr.InvalidFormat, s.path, "payload size exceeds mapped segment")
	}
	return raw[BlobHeaderSize:end], nil
}

// Close flushes and unmaps the store. Safe to call once.
func (s *BlobStore) Close() error {
	return s.mgr.Close()
}

// Begin starts an exclusive write transaction. Only one Transaction may
// be open on a BlobStore at a time (spec §5: single-writer); Begin
// blocks callers out with an error rather than queuing them, leaving
// queuing policy to the caller (or to the taskqueue package).
func (s *BlobStore) Begin() (*Transaction, error) {
	if !s.writable {
		return nil, errors.New("store: opened read-only")
	}
	s.mu.Lock()
	if s.writerOut {
		s.mu.Unlock()
		return nil, errors.New("store: a transaction is already open")
	}
	s.writerOut = true
	s.mu.Unlock()

	j, err := createJournal(s.path)
	if err != nil {
		s.mu.Lock()
		s.writerOut = false
		s.mu.Unlock()
		return nil, err
	}

	return &Transaction{
		store:     s,
		journal:   j,
		header:    s.header,
		buckets:   s.buckets.clone(),
		preimages: make(map[uint64][]byte),
	}, nil
}
