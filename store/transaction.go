package store

import (
	"github.com/pkg/errors"

	"github.com/byjtew/libgeodesk/golerr"
)

// minSplitRemainder is the smallest remainder, in pages, worth splitting
// off a free blob instead of handing the whole thing to the allocation
// (avoids manufacturing unusably tiny free blobs, spec §3.5 edge case).
const minSplitRemainder = 1

// Transaction batches allocation and deallocation operations for atomic,
// crash-safe commit (spec §4.B). Only one Transaction may be open on a
// BlobStore at a time.
type Transaction struct {
	store   *BlobStore
	journal *journal
	header  Header
	buckets *bucketBits

	// preimages caches, per touched page-aligned byte offset, the bytes
	// observed the first time this transaction mutated that region, so
	// Rollback can restore them without re-reading the journal file.
	preimages map[uint64][]byte

	done bool
}

// SetIndexPointer records the root page of the store's quadtree tile
// index (spec §3.2 header.indexPointer). Like any other header change
// made inside a transaction, it only becomes visible to other readers
// once Commit publishes t.header.
func (t *Transaction) SetIndexPointer(root PageNum) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	t.header.IndexPointer = root
	return nil
}

func (t *Transaction) checkOpen() error {
	if t.done {
		return errors.New("store: transaction already committed or rolled back")
	}
	return nil
}

// touch journals the pre-image of [offset,offset+len(data)) the first
// time this transaction is about to overwrite it.
func (t *Transaction) touch(offset uint64, liveCurrent []byte) error {
	if _, ok := t.preimages[offset]; ok {
		return nil
	}
	preimage := make([]byte, len(liveCurrent))
	copy(preimage, liveCurrent)
	if err := t.journal.recordPreimage(offset, preimage); err != nil {
		return err
	}
	t.preimages[offset] = preimage
	return nil
}

func (t *Transaction) blobRaw(page PageNum) ([]byte, error) {
	return t.store.mgr.Data(t.store.pageOffset(page))
}

func (t *Transaction) writeBlob(page PageNum, bh blobHeader) error {
	raw, err := t.blobRaw(page)
	if err != nil {
		return err
	}
	footprint := FreeBlobMetadataSize
	if !bh.IsFree {
		footprint = BlobHeaderSize
	}
	if len(raw) < footprint {
		footprint = len(raw)
	}
	if err := t.touch(t.store.pageOffset(page), raw[:footprint]); err != nil {
		return err
	}
	writeBlobHeader(raw, bh)
	return nil
}

func (t *Transaction) readBlob(page PageNum) (blobHeader, error) {
	raw, err := t.blobRaw(page)
	if err != nil {
		return blobHeader{}, err
	}
	if len(raw) < BlobHeaderSize {
		return blobHeader{}, golerr.Wrap(golerr.InvalidFormat, t.store.path, "truncated blob header")
	}
	return readBlobHeader(raw), nil
}

// setPreceding updates the precedingFreeBlobPages field of the blob
// starting at page, if that page is within the live store and still in
// the same 1 GiB segment as the blob before it (spec §3.4: blobs never
// cross a segment boundary, so neither does this back-pointer).
func (t *Transaction) setPreceding(page PageNum, value uint32) error {
	if page == 0 || page >= t.header.TotalPageCount {
		return nil
	}
	pagesPerSegment := segmentPageCount(t.store.pageSize)
	if page%pagesPerSegment == 0 {
		return nil // first page of a segment has no preceding blob
	}
	bh, err := t.readBlob(page)
	if err != nil {
		return err
	}
	bh.PrecedingFreeBlobPages = value
	return t.writeBlob(page, bh)
}

func segmentPageCount(pageSize uint32) PageNum {
	return PageNum(1<<30) / pageSize
}

// wouldCrossSegment reports whether a pages-page blob starting at page
// would straddle a 1 GiB segment boundary (spec §3.4: blobs never do).
func wouldCrossSegment(page PageNum, pages uint32, pageSize uint32) bool {
	pagesPerSegment := segmentPageCount(pageSize)
	offset := page % pagesPerSegment
	return offset != 0 && offset+pages > pagesPerSegment
}

// unlinkFree removes the free blob at page (whose header is bh, with
// bucket index bucket) from the trunk free-table chain it sits on.
func (t *Transaction) unlinkFree(page PageNum, bh blobHeader, bucket int) error {
	if bh.PrevFreeBlob == 0 {
		t.header.TrunkFreeTable[bucket] = bh.NextFreeBlob
		if bh.NextFreeBlob == 0 {
			clearRangeBitIfGroupEmpty(&t.header.TrunkFreeTableRanges, t.header.TrunkFreeTable[:], bucket)
			t.buckets.clear(bucket)
		}
	} else {
		prev, err := t.readBlob(bh.PrevFreeBlob)
		if err != nil {
			return err
		}
		prev.NextFreeBlob = bh.NextFreeBlob
		if err := t.writeBlob(bh.PrevFreeBlob, prev); err != nil {
			return err
		}
	}
	if bh.NextFreeBlob != 0 {
		next, err := t.readBlob(bh.NextFreeBlob)
		if err != nil {
			return err
		}
		next.PrevFreeBlob = bh.PrevFreeBlob
		if err := t.writeBlob(bh.NextFreeBlob, next); err != nil {
			return err
		}
	}
	return nil
}

// linkFree pushes the free blob at page onto the front of its bucket's
// chain (LIFO, spec §3.5).
func (t *Transaction) linkFree(page PageNum, bh *blobHeader) error {
	pages := pagesForPayload(bh.PayloadSize, t.store.pageSize)
	bucket := trunkIndex(pages)
	head := t.header.TrunkFreeTable[bucket]
	bh.IsFree = true
	bh.PrevFreeBlob = 0
	bh.NextFreeBlob = head
	bh.LeafFreeTableRanges = 0
	bh.LeafFreeTable = [LeafFreeTableSlots]PageNum{}
	if err := t.writeBlob(page, *bh); err != nil {
		return err
	}
	if head != 0 {
		oldHead, err := t.readBlob(head)
		if err != nil {
			return err
		}
		oldHead.PrevFreeBlob = page
		if err := t.writeBlob(head, oldHead); err != nil {
			return err
		}
	}
	t.header.TrunkFreeTable[bucket] = page
	setRangeBit(&t.header.TrunkFreeTableRanges, bucket)
	t.buckets.set(bucket)
	return nil
}

// findFit scans buckets from the smallest one that could possibly hold a
// blob of at least requestedPages pages upward, returning the first free
// blob actually large enough.
func (t *Transaction) findFit(requestedPages uint32) (page PageNum, bh blobHeader, bucket int, found bool) {
	start := trunkIndex(requestedPages)
	for b := t.buckets.nextSet(start); b != -1; b = t.buckets.nextSet(b + 1) {
		for p := t.header.TrunkFreeTable[b]; p != 0; {
			cand, err := t.readBlob(p)
			if err != nil {
				return 0, blobHeader{}, 0, false
			}
			if pagesForPayload(cand.PayloadSize, t.store.pageSize) >= requestedPages {
				return p, cand, b, true
			}
			p = cand.NextFreeBlob
		}
	}
	return 0, blobHeader{}, 0, false
}

// Alloc reserves a blob with room for payloadSize bytes and returns the
// page number of its first page. The blob starts uninitialized.
func (t *Transaction) Alloc(payloadSize uint32) (PageNum, error) {
	if err := t.checkOpen(); err != nil {
		return 0, err
	}
	needPages := pagesForPayload(payloadSize, t.store.pageSize)

	if page, bh, bucket, ok := t.findFit(needPages); ok {
		if err := t.unlinkFree(page, bh, bucket); err != nil {
			return 0, err
		}
		totalPages := pagesForPayload(bh.PayloadSize, t.store.pageSize)
		if totalPages-needPages >= minSplitRemainder {
			remainderStart := page + needPages
			remainderPages := totalPages - needPages
			remainderCapacity := remainderPages*t.store.pageSize - BlobHeaderSize
			remBh := blobHeader{PrecedingFreeBlobPages: 0, PayloadSize: remainderCapacity}
			if err := t.linkFree(remainderStart, &remBh); err != nil {
				return 0, err
			}
			if err := t.setPreceding(remainderStart, 0); err != nil {
				return 0, err
			}
			if err := t.setPreceding(remainderStart+remainderPages, remainderPages); err != nil {
				return 0, err
			}
		} else {
			needPages = totalPages
			if err := t.setPreceding(page+needPages, 0); err != nil {
				return 0, err
			}
		}
		allocated := blobHeader{PrecedingFreeBlobPages: bh.PrecedingFreeBlobPages, PayloadSize: payloadSize}
		if err := t.writeBlob(page, allocated); err != nil {
			return 0, err
		}
		return page, nil
	}

	return t.allocNew(needPages, payloadSize)
}

// allocNew extends the store to carve out a brand-new blob, padding out
// to the next segment boundary first if the blob would otherwise
// straddle two segments (spec §3.4).
func (t *Transaction) allocNew(needPages uint32, payloadSize uint32) (PageNum, error) {
	pagesPerSegment := segmentPageCount(t.store.pageSize)
	page := t.header.TotalPageCount
	if wouldCrossSegment(page, needPages, t.store.pageSize) {
		// Pad the rest of this segment with a free blob and start fresh
		// at the next segment's first page.
		segRemaining := pagesPerSegment - page%pagesPerSegment
		if err := t.growTo(page + segRemaining); err != nil {
			return 0, err
		}
		capacity := segRemaining*t.store.pageSize - BlobHeaderSize
		padBh := blobHeader{PayloadSize: capacity}
		if err := t.linkFree(page, &padBh); err != nil {
			return 0, err
		}
		page = t.header.TotalPageCount
	}

	if err := t.growTo(page + needPages); err != nil {
		return 0, err
	}
	bh := blobHeader{PayloadSize: payloadSize}
	if err := t.writeBlob(page, bh); err != nil {
		return 0, err
	}
	return page, nil
}

// exceedsAddressableLimit reports whether a store of newTotal pages at
// pageSize bytes each would exceed the addressable limit (spec §4.B).
func exceedsAddressableLimit(newTotal PageNum, pageSize uint32) bool {
	return uint64(newTotal)*uint64(pageSize) > MaxAddressableBytes
}

// growTo extends the store to hold newTotal pages, rejecting any
// extension that would push the store past the addressable limit (spec
// §4.B).
func (t *Transaction) growTo(newTotal PageNum) error {
	if newTotal <= t.header.TotalPageCount {
		return nil
	}
	if exceedsAddressableLimit(newTotal, t.store.pageSize) {
		return golerr.Wrapf(golerr.StoreFull, t.store.path, "cannot grow to %d pages at %d bytes/page", newTotal, t.store.pageSize)
	}
	if err := t.store.mgr.EnsureSize(uint64(newTotal) * uint64(t.store.pageSize)); err != nil {
		return err
	}
	t.header.TotalPageCount = newTotal
	return nil
}

// Free releases the blob starting at page, coalescing with any
// immediately adjacent free neighbors in the same segment.
func (t *Transaction) Free(page PageNum) error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	bh, err := t.readBlob(page)
	if err != nil {
		return err
	}
	if bh.IsFree {
		t.store.logger.Warn().Uint32("page", page).Msg("free() called on an already-free blob, ignoring")
		return nil
	}

	start := page
	pages := pagesForPayload(bh.PayloadSize, t.store.pageSize)
	preceding := bh.PrecedingFreeBlobPages
	pagesPerSegment := segmentPageCount(t.store.pageSize)

	// Merge backward: the immediate predecessor, if free, is found in
	// O(1) via this blob's own precedingFreeBlobPages field.
	if preceding > 0 && start%pagesPerSegment != 0 {
		predStart := start - preceding
		pred, err := t.readBlob(predStart)
		if err == nil && pred.IsFree {
			predBucket := trunkIndex(pagesForPayload(pred.PayloadSize, t.store.pageSize))
			if err := t.unlinkFree(predStart, pred, predBucket); err != nil {
				return err
			}
			pages = pagesForPayload(pred.PayloadSize, t.store.pageSize) + pages
			start = predStart
			preceding = pred.PrecedingFreeBlobPages
		}
	}

	// Merge forward, possibly repeatedly: each merge may expose a
	// further free neighbor immediately after the new, larger run.
	for {
		nextPage := start + pages
		if nextPage%pagesPerSegment == 0 || nextPage >= t.header.TotalPageCount {
			break
		}
		next, err := t.readBlob(nextPage)
		if err != nil {
			break
		}
		if !next.IsFree {
			break
		}
		nextBucket := trunkIndex(pagesForPayload(next.PayloadSize, t.store.pageSize))
		if err := t.unlinkFree(nextPage, next, nextBucket); err != nil {
			return err
		}
		pages += pagesForPayload(next.PayloadSize, t.store.pageSize)
	}

	capacity := pages*t.store.pageSize - BlobHeaderSize
	merged := blobHeader{PrecedingFreeBlobPages: preceding, PayloadSize: capacity}
	if err := t.linkFree(start, &merged); err != nil {
		return err
	}
	return t.setPreceding(start+pages, pages)
}

// Commit durably applies every Alloc/Free in this transaction: data
// pages are flushed, then the header is rewritten and flushed, then the
// journal is discarded (spec §4.B). After Commit, the Transaction must
// not be reused.
func (t *Transaction) Commit() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if err := t.store.mgr.Force(); err != nil {
		return err
	}
	page0, err := t.store.mgr.DataRange(0, uint64(t.store.pageSize))
	if err != nil {
		return err
	}
	writeHeader(page0, t.header)
	if err := t.store.mgr.Force(); err != nil {
		return err
	}
	if err := t.journal.discard(); err != nil {
		return err
	}
	t.store.mu.Lock()
	t.store.header = t.header
	t.store.buckets = t.buckets
	t.store.writerOut = false
	t.store.mu.Unlock()
	t.done = true
	t.store.logger.Debug().Uint32("totalPages", t.header.TotalPageCount).Msg("transaction committed")
	return nil
}

// Rollback discards every change made by this transaction, restoring
// the pre-images captured since Begin.
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	for offset, preimage := range t.preimages {
		raw, err := t.store.mgr.Data(offset)
		if err != nil {
			return err
		}
		copy(raw, preimage)
	}
	if err := t.journal.discard(); err != nil {
		return err
	}
	t.store.mu.Lock()
	t.store.writerOut = false
	t.store.mu.Unlock()
	t.done = true
	return nil
}
