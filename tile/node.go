package tile

import (
	"encoding/binary"

	"github.com/byjtew/libgeodesk/golerr"
	"github.com/byjtew/libgeodesk/store"
)

// indexNode is one node of the on-disk quadtree index rooted at
// header.indexPointer (spec §4.C: "each node carries a bitmap of
// occupied children and, for leaves, a pointer to a feature list").
//
// Payload layout (little-endian), a private on-disk format since the
// spec does not pin one down and this store is read-dominant against
// files it wrote itself:
//
//	byte 0:      occupancy bitmap, one bit per quadrant (NW,NE,SW,SE)
//	byte 1:      flags, bit 0 = isLeaf
//	byte 2..:    if isLeaf, a single PageNum (u32) naming the feature list
//	             else, one PageNum (u32) per set occupancy bit, in bit order
const (
	flagLeaf = 1 << 0

	nodeMinSize = 2
)

type indexNode struct {
	Occupancy       uint8
	IsLeaf          bool
	FeatureListPage store.PageNum
	ChildPages      [4]store.PageNum
}

func decodeNode(buf []byte) (indexNode, error) {
	var n indexNode
	if len(buf) < nodeMinSize {
		return n, golerr.Wrap(golerr.InvalidFormat, "", "truncated tile index node")
	}
	n.Occupancy = buf[0]
	n.IsLeaf = buf[1]&flagLeaf != 0
	rest := buf[2:]
	if n.IsLeaf {
		if len(rest) < 4 {
			return n, golerr.Wrap(golerr.InvalidFormat, "", "truncated leaf node")
		}
		n.FeatureListPage = binary.LittleEndian.Uint32(rest)
		return n, nil
	}
	off := 0
	for i := 0; i < 4; i++ {
		if n.Occupancy&(1<<uint(i)) == 0 {
			continue
		}
		if off+4 > len(rest) {
			return n, golerr.Wrap(golerr.InvalidFormat, "", "truncated inner node")
		}
		n.ChildPages[i] = binary.LittleEndian.Uint32(rest[off:])
		off += 4
	}
	return n, nil
}

// EncodeLeaf and EncodeInner build the payload for a maintenance-path
// index writer; the query walker only ever decodes. Exported because
// building a tile index at all (as opposed to just reading one back)
// is legitimately external to this package — an indexer assembling a
// store's quadtree needs them directly.
func EncodeLeaf(featureListPage store.PageNum) []byte {
	buf := make([]byte, 2+4)
	buf[1] = flagLeaf
	binary.LittleEndian.PutUint32(buf[2:], featureListPage)
	return buf
}

func EncodeInner(occupancy uint8, childPages [4]store.PageNum) []byte {
	count := 0
	for i := 0; i < 4; i++ {
		if occupancy&(1<<uint(i)) != 0 {
			count++
		}
	}
	buf := make([]byte, 2+4*count)
	buf[0] = occupancy
	off := 2
	for i := 0; i < 4; i++ {
		if occupancy&(1<<uint(i)) == 0 {
			continue
		}
		binary.LittleEndian.PutUint32(buf[off:], childPages[i])
		off += 4
	}
	return buf
}
