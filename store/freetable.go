package store

import (
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// The free-table classifies free blobs by page count so "find a free
// blob of at least N pages" is a smallest-bucket-≥-requested search
// rather than a linear scan (spec §3.5). Page counts are bucketed into
// TrunkFreeTableSlots (512) buckets by trunkIndex, a monotonically
// non-decreasing step function: small counts get their own exact
// bucket, larger counts are grouped logarithmically. Monotonicity
// guarantees a blob of >= the requested size always lands in a bucket
// index >= the requested bucket index, so scanning buckets from the
// requested index upward and checking each candidate blob's actual
// payload size (see (*Transaction).findFit) is always correct, even
// though a bucket can hold blobs of somewhat different sizes.
//
// Each free blob's leaf free-table fields are preserved in the on-disk
// layout for format fidelity (spec §3.3) but are not threaded by this
// implementation: the original's exact secondary within-bucket hashing
// scheme was not recoverable from the reference sources available, and
// a self-written store only ever needs to read back its own free-table,
// so bucket-level linkage plus a defensive size check is sufficient.
const numTrunkBuckets = TrunkFreeTableSlots

func trunkIndex(pages uint32) int {
	if pages == 0 {
		pages = 1
	}
	if pages <= 384 {
		return int(pages - 1)
	}
	extra := pages - 384
	idx := 384 + bits.Len32(extra)
	if idx > numTrunkBuckets-1 {
		idx = numTrunkBuckets - 1
	}
	return idx
}

// rangeGroup and rangeBit locate the 16-slot group bit for a trunk slot
// within a 32-bit range word (spec §3.5: "range bitfields, 1 bit per
// 16-slot group" — 512 trunk slots / 16 = 32 groups, exactly one word).
func rangeGroup(slot int) uint { return uint(slot / 16) }
func rangeBit(group uint) uint32 { return 1 << group }

func setRangeBit(ranges *uint32, slot int) { *ranges |= rangeBit(rangeGroup(slot)) }

// clearRangeBitIfGroupEmpty recomputes the bit for slot's group from the
// live trunk table and clears it if every slot in that group is empty.
func clearRangeBitIfGroupEmpty(ranges *uint32, table []PageNum, slot int) {
	g := rangeGroup(slot)
	start := int(g) * 16
	for i := start; i < start+16 && i < len(table); i++ {
		if table[i] != 0 {
			return
		}
	}
	*ranges &^= rangeBit(g)
}

// bucketBits is an in-memory acceleration structure layered on top of
// the on-disk trunk range word: one bit per trunk bucket, kept in sync
// as blobs are allocated and freed, so findFit can jump straight to the
// smallest non-empty bucket without walking the trunk array. Rebuilt
// from the on-disk free-table on Open.
type bucketBits struct {
	bits *bitset.BitSet
}

func newBucketBits() *bucketBits {
	return &bucketBits{bits: bitset.New(numTrunkBuckets)}
}

func (c *bucketBits) set(bucket int)   { c.bits.Set(uint(bucket)) }
func (c *bucketBits) clear(bucket int) { c.bits.Clear(uint(bucket)) }

// clone returns an independent copy, used so a Transaction can mutate
// its own view of bucket occupancy and publish it to the BlobStore only
// on Commit (mirroring how Transaction.header shadows BlobStore.header).
func (c *bucketBits) clone() *bucketBits {
	return &bucketBits{bits: c.bits.Clone()}
}

// nextSet returns the smallest bucket >= from that is marked non-empty,
// or -1 if none is.
func (c *bucketBits) nextSet(from int) int {
	if from < 0 {
		from = 0
	}
	idx, ok := c.bits.NextSet(uint(from))
	if !ok {
		return -1
	}
	return int(idx)
}
