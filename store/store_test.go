package store

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byjtew/libgeodesk/golerr"
)

func tempStorePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.gol")
}

func TestHeaderMagicAndVersionBytes(t *testing.T) {
	page := make([]byte, DefaultPageSize)
	writeHeader(page, Header{TotalPageCount: 1, PageSizeShift: pageSizeShiftFor(DefaultPageSize)})

	want := []byte{0xB1, 0x0B, 0xDA, 0x7A, 0x40, 0x42, 0x0F, 0x00}
	assert.Equal(t, want, page[:8])

	_, err := readHeader(page)
	require.NoError(t, err)

	corrupt := make([]byte, len(page))
	copy(corrupt, page)
	corrupt[0] = 0x00
	_, err = readHeader(corrupt)
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid store format")
}

func TestCreateThenOpen(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)
	guid := s.GUID()
	require.NoError(t, s.Close())

	s2, err := Open(path, OpenOptions{Writable: true})
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, guid, s2.GUID())
	assert.EqualValues(t, 1, s2.TotalPageCount())
	assert.EqualValues(t, DefaultPageSize, s2.PageSize())
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0x00}, 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(path, OpenOptions{})
	require.Error(t, err)
}

func TestAllocEmptyStoreReturnsPageOne(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)
	defer s.Close()

	txn, err := s.Begin()
	require.NoError(t, err)
	page, err := txn.Alloc(100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, page)
	require.NoError(t, txn.Commit())
	assert.EqualValues(t, 2, s.TotalPageCount())
}

func TestAllocFreeRoundTripCoalesces(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)
	defer s.Close()

	txn, err := s.Begin()
	require.NoError(t, err)
	first, err := txn.Alloc(100)
	require.NoError(t, err)
	second, err := txn.Alloc(100)
	require.NoError(t, err)
	require.NoError(t, txn.Free(first))
	require.NoError(t, txn.Free(second))
	require.NoError(t, txn.Commit())

	nonZero := 0
	var onlyPage PageNum
	for _, p := range s.header.TrunkFreeTable {
		if p != 0 {
			nonZero++
			onlyPage = p
		}
	}
	require.Equal(t, 1, nonZero)
	assert.EqualValues(t, 1, onlyPage)

	bh, err := (&Transaction{store: s, header: s.header}).readBlob(onlyPage)
	require.NoError(t, err)
	assert.True(t, bh.IsFree)
	assert.EqualValues(t, 2, pagesForPayload(bh.PayloadSize, s.PageSize()))
}

func TestAllocBoundaryPageCounts(t *testing.T) {
	ps := uint32(4096)
	assert.EqualValues(t, 1, pagesForPayload(0, ps))
	assert.EqualValues(t, 1, pagesForPayload(ps-8, ps))
	assert.EqualValues(t, 2, pagesForPayload(ps-7, ps))
}

func TestWouldCrossSegment(t *testing.T) {
	ps := uint32(4096)
	perSeg := segmentPageCount(ps)

	assert.False(t, wouldCrossSegment(0, perSeg, ps))
	assert.False(t, wouldCrossSegment(perSeg-10, 10, ps))
	assert.True(t, wouldCrossSegment(perSeg-10, 11, ps))
	assert.False(t, wouldCrossSegment(perSeg, 5, ps))
}

func TestPrecedingFreeBlobPagesInvariant(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)
	defer s.Close()

	txn, err := s.Begin()
	require.NoError(t, err)
	a, err := txn.Alloc(100)
	require.NoError(t, err)
	b, err := txn.Alloc(100)
	require.NoError(t, err)
	require.NoError(t, txn.Free(a))

	bh, err := txn.readBlob(b)
	require.NoError(t, err)
	assert.EqualValues(t, 1, bh.PrecedingFreeBlobPages, "b's preceding blob (a) is free and 1 page")

	require.NoError(t, txn.Commit())
}

func TestOpenDiscardsOrphanJournalWithoutRollback(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)

	txn, err := s.Begin()
	require.NoError(t, err)
	page, err := txn.Alloc(100)
	require.NoError(t, err)

	jPath := journalPath(path)
	_, err = os.Stat(jPath)
	require.NoError(t, err, "journal should exist while the transaction is open")

	// Replicate Commit's durable steps by hand, but crash before
	// journal.discard() runs: force data, write and force the header,
	// publish to the store, leaving the journal on disk.
	require.NoError(t, s.mgr.Force())
	page0, err := s.mgr.DataRange(0, uint64(s.pageSize))
	require.NoError(t, err)
	writeHeader(page0, txn.header)
	require.NoError(t, s.mgr.Force())

	s.mu.Lock()
	s.header = txn.header
	s.buckets = txn.buckets
	s.writerOut = false
	s.mu.Unlock()
	txn.done = true

	require.NoError(t, s.Close())

	_, err = os.Stat(jPath)
	require.NoError(t, err, "journal should still be on disk after the simulated crash")

	s2, err := Open(path, OpenOptions{Writable: true})
	require.NoError(t, err)
	defer s2.Close()

	_, err = os.Stat(jPath)
	assert.True(t, os.IsNotExist(err), "an orphaned-but-valid journal should be discarded, not replayed")

	bh, err := (&Transaction{store: s2, header: s2.header}).readBlob(page)
	require.NoError(t, err)
	assert.False(t, bh.IsFree)
	assert.EqualValues(t, 100, bh.PayloadSize, "a durably committed allocation must survive reopen")
}

func TestOpenReplaysJournalOnInvalidHeaderChecksum(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)

	txn, err := s.Begin()
	require.NoError(t, err)
	page, err := txn.Alloc(100)
	require.NoError(t, err)

	bh, err := txn.readBlob(page)
	require.NoError(t, err)
	require.EqualValues(t, 100, bh.PayloadSize, "sanity: Alloc writes straight through to the live mapping")

	// Corrupt the on-disk header checksum in place, simulating a crash
	// partway through Commit's header force, and leave the journal
	// behind without ever reaching discard().
	page0, err := s.mgr.DataRange(0, uint64(s.pageSize))
	require.NoError(t, err)
	page0[len(page0)-1] ^= 0xFF
	require.NoError(t, s.mgr.Force())

	jPath := journalPath(path)
	_, err = os.Stat(jPath)
	require.NoError(t, err)

	require.NoError(t, s.Close())

	require.NoError(t, recoverFromCrash(path, DefaultPageSize))

	_, err = os.Stat(jPath)
	assert.True(t, os.IsNotExist(err), "a replayed journal should be removed")

	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	require.NoError(t, err)
	defer f.Close()
	raw := make([]byte, BlobHeaderSize)
	_, err = f.ReadAt(raw, int64(page)*int64(DefaultPageSize))
	require.NoError(t, err)
	restored := readBlobHeader(raw)
	assert.EqualValues(t, 0, restored.PayloadSize, "replay should restore the page to its pre-transaction state")
	assert.False(t, restored.IsFree)
}

func TestExceedsAddressableLimitBoundary(t *testing.T) {
	ps := uint32(4096)
	maxPages := PageNum(MaxAddressableBytes / uint64(ps))

	assert.False(t, exceedsAddressableLimit(maxPages, ps))
	assert.True(t, exceedsAddressableLimit(maxPages+1, ps))
}

func TestGrowToRejectsPastStoreFullLimit(t *testing.T) {
	path := tempStorePath(t)
	s, err := Create(path, CreateOptions{PageSize: DefaultPageSize})
	require.NoError(t, err)
	defer s.Close()

	txn, err := s.Begin()
	require.NoError(t, err)

	maxPages := PageNum(MaxAddressableBytes / uint64(s.pageSize))
	err = txn.growTo(maxPages + 1)
	require.Error(t, err)
	assert.True(t, golerr.Is(err, golerr.StoreFull))
	assert.EqualValues(t, 1, txn.header.TotalPageCount, "a rejected grow must not mutate the transaction's header")
}

func TestVersionMismatchRejected(t *testing.T) {
	page := make([]byte, DefaultPageSize)
	writeHeader(page, Header{TotalPageCount: 1, PageSizeShift: pageSizeShiftFor(DefaultPageSize)})
	binary.LittleEndian.PutUint32(page[offVersion:], 2)
	writeChecksum(page)
	_, err := readHeader(page)
	require.Error(t, err)
}
