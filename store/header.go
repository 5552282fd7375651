// Package store implements the Blob Store (spec §3): a persistent,
// memory-mapped, page-oriented blob allocator with a two-level free-table
// and crash-safe commit protocol. It is the substrate the tile walker and
// feature reader address by PageNum; it knows nothing about tiles or tags.
package store

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/byjtew/libgeodesk/golerr"
)

// PageNum addresses a page within a store. Page 0 of segment 0 is always
// the header page; PageNum 0 is otherwise never a valid blob address.
type PageNum = uint32

const (
	// Magic identifies a file as a Blob Store (spec §3.2).
	Magic uint32 = 0x7ADA0BB1

	// Version is the on-disk format version this package reads and writes.
	Version uint32 = 1_000_000

	// TrunkFreeTableSlots is the number of size classes resolved directly
	// from the header's trunk free-table (spec §3.5: "top 9 bits of an
	// 11-bit size class select one of 512 trunk slots").
	TrunkFreeTableSlots = 512

	// DefaultPageSize is used by Create when no explicit page size is given.
	DefaultPageSize = 4096

	// MinPageSize and MaxPageSize bound the power-of-two page sizes this
	// package accepts (spec §3.1). The lower bound is set by the header's
	// own footprint (magic through the trailing checksum) rather than the
	// spec's illustrative 256-byte minimum: a page has to be able to hold
	// page 0 in a single page.
	MinPageSize = 4096
	MaxPageSize = 65536

	// MaxAddressableBytes is the ceiling on a store's total size (spec
	// §4.B: "alloc fails with StoreFull if extension would exceed the
	// 4 GiB x 1 GiB = 4 TiB addressable limit"). growTo enforces it on
	// every extension regardless of page size.
	MaxAddressableBytes uint64 = 4 << 40
)

// Header layout within page 0. All fields little-endian. Offsets are
// chosen so every multi-byte field is naturally aligned and the whole
// header, including the trunk free-table, fits comfortably inside even
// the smallest supported page size (256 bytes would not fit; Create
// rejects page sizes too small to hold the header, see validatePageSize).
const (
	offMagic                = 0
	offVersion              = 4
	offCreationTimestamp    = 8
	offTotalPageCount       = 16
	offGUID                 = 20 // 16 bytes
	offPageSizeShift        = 36
	offMetadataSize         = 40
	offPropertiesPointer    = 44
	offIndexPointer         = 48
	offTrunkFreeTableRanges = 52
	offSubtypeData          = 56 // 64 bytes
	offTrunkFreeTable       = 120
	headerFixedSize         = offTrunkFreeTable + TrunkFreeTableSlots*4 // 2168

	// checksumSize is the trailing checksum written at the very end of
	// the header page (spec §4.B: "a header checksum mismatch" detects a
	// torn commit on open). It lives at pageSize-4 so it never collides
	// with the fixed-size fields above regardless of page size.
	checksumSize = 4
)

// Header is an in-memory snapshot of the store's page-0 metadata.
type Header struct {
	CreationTimestamp    uint64
	TotalPageCount       uint32
	GUID                 uuid.UUID
	PageSizeShift        uint8
	MetadataSize         uint32
	PropertiesPointer    PageNum
	IndexPointer         PageNum
	TrunkFreeTableRanges uint32
	SubtypeData          [64]byte
	TrunkFreeTable       [TrunkFreeTableSlots]PageNum
}

func validatePageSize(pageSize uint32) error {
	if pageSize < MinPageSize || pageSize > MaxPageSize {
		return errors.Errorf("store: page size %d out of range [%d,%d]", pageSize, MinPageSize, MaxPageSize)
	}
	if pageSize&(pageSize-1) != 0 {
		return errors.Errorf("store: page size %d is not a power of two", pageSize)
	}
	if int(pageSize) < headerFixedSize+checksumSize {
		return errors.Errorf("store: page size %d too small to hold the header", pageSize)
	}
	return nil
}

func pageSizeShiftFor(pageSize uint32) uint8 {
	shift := uint8(0)
	for v := pageSize; v > 1; v >>= 1 {
		shift++
	}
	return shift
}

// headerStatus reports whether a raw page-0 buffer has a valid trailing
// checksum, after first confirming the magic and version actually
// identify a Blob Store of a format this package reads (those are
// genuine format errors and are returned immediately, not treated as a
// crash-recovery signal). Used by Open to decide whether a journal left
// on disk needs replaying, per spec §7: "detected on open by a header
// checksum mismatch", not by the journal file's mere presence.
func headerStatus(page []byte) (checksumValid bool, err error) {
	if len(page) < headerFixedSize+checksumSize {
		return false, errors.New("store: header page too short")
	}
	magic := binary.LittleEndian.Uint32(page[offMagic:])
	if magic != Magic {
		return false, golerr.Wrap(golerr.InvalidFormat, "", "bad magic")
	}
	version := binary.LittleEndian.Uint32(page[offVersion:])
	if version != Version {
		return false, golerr.Wrapf(golerr.InvalidFormat, "", "unsupported version %d", version)
	}
	return verifyChecksum(page) == nil, nil
}

// readHeader decodes the header from a raw page-0 buffer and verifies its
// magic, version, and trailing checksum.
func readHeader(page []byte) (Header, error) {
	var h Header
	if len(page) < headerFixedSize+checksumSize {
		return h, errors.New("store: header page too short")
	}
	magic := binary.LittleEndian.Uint32(page[offMagic:])
	if magic != Magic {
		return h, golerr.Wrap(golerr.InvalidFormat, "", "bad magic")
	}
	version := binary.LittleEndian.Uint32(page[offVersion:])
	if version != Version {
		return h, golerr.Wrapf(golerr.InvalidFormat, "", "unsupported version %d", version)
	}
	if err := verifyChecksum(page); err != nil {
		return h, err
	}

	h.CreationTimestamp = binary.LittleEndian.Uint64(page[offCreationTimestamp:])
	h.TotalPageCount = binary.LittleEndian.Uint32(page[offTotalPageCount:])
	copy(h.GUID[:], page[offGUID:offGUID+16])
	h.PageSizeShift = page[offPageSizeShift]
	h.MetadataSize = binary.LittleEndian.Uint32(page[offMetadataSize:])
	h.PropertiesPointer = binary.LittleEndian.Uint32(page[offPropertiesPointer:])
	h.IndexPointer = binary.LittleEndian.Uint32(page[offIndexPointer:])
	h.TrunkFreeTableRanges = binary.LittleEndian.Uint32(page[offTrunkFreeTableRanges:])
	copy(h.SubtypeData[:], page[offSubtypeData:offSubtypeData+64])
	for i := 0; i < TrunkFreeTableSlots; i++ {
		h.TrunkFreeTable[i] = binary.LittleEndian.Uint32(page[offTrunkFreeTable+i*4:])
	}
	return h, nil
}

// writeHeader encodes h into page (which must be at least one page long)
// and recomputes the trailing checksum. Callers are responsible for
// fsyncing the page afterward as part of the commit protocol.
func writeHeader(page []byte, h Header) {
	binary.LittleEndian.PutUint32(page[offMagic:], Magic)
	binary.LittleEndian.PutUint32(page[offVersion:], Version)
	binary.LittleEndian.PutUint64(page[offCreationTimestamp:], h.CreationTimestamp)
	binary.LittleEndian.PutUint32(page[offTotalPageCount:], h.TotalPageCount)
	copy(page[offGUID:offGUID+16], h.GUID[:])
	page[offPageSizeShift] = h.PageSizeShift
	binary.LittleEndian.PutUint32(page[offMetadataSize:], h.MetadataSize)
	binary.LittleEndian.PutUint32(page[offPropertiesPointer:], h.PropertiesPointer)
	binary.LittleEndian.PutUint32(page[offIndexPointer:], h.IndexPointer)
	binary.LittleEndian.PutUint32(page[offTrunkFreeTableRanges:], h.TrunkFreeTableRanges)
	copy(page[offSubtypeData:offSubtypeData+64], h.SubtypeData[:])
	for i := 0; i < TrunkFreeTableSlots; i++ {
		binary.LittleEndian.PutUint32(page[offTrunkFreeTable+i*4:], h.TrunkFreeTable[i])
	}
	writeChecksum(page)
}
