package store

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/byjtew/libgeodesk/golerr"
)

// checksumOffset returns the offset of the trailing checksum word within
// a page of the given size (spec §4.B commit protocol; kept out of the
// fixed field layout in header.go so it works for any supported page size).
func checksumOffset(pageSize int) int { return pageSize - checksumSize }

func writeChecksum(page []byte) {
	off := checksumOffset(len(page))
	sum := crc32.ChecksumIEEE(page[:off])
	binary.LittleEndian.PutUint32(page[off:], sum)
}

func verifyChecksum(page []byte) error {
	off := checksumOffset(len(page))
	want := binary.LittleEndian.Uint32(page[off:])
	got := crc32.ChecksumIEEE(page[:off])
	if want != got {
		return golerr.Wrap(golerr.InvalidFormat, "", "header checksum mismatch")
	}
	return nil
}
