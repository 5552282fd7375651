package feature

import (
	"encoding/binary"
	"math"

	"github.com/byjtew/libgeodesk/golerr"
	"github.com/byjtew/libgeodesk/store"
)

// The on-disk feature-list record format below is this implementation's
// own design, the same way tile/node.go's index-node format is: spec.md
// only describes the conceptual shape of a tile leaf's payload ("a
// pointer to a feature list"), not its byte layout, and this store
// never needs to read a feature list written by anything other than
// itself. Each record is: type (1 byte), ID (zigzag varint), lon/lat
// (2x float64), bbox (4x float64), tag count (varint), then that many
// key/value pairs (each length-prefixed with a varint).
//
// EncodeFeatureList/DecodeFeatureList round-trip a []Ptr through these
// bytes; Ptr.store/Ptr.page are set by the caller (query/) once the
// blob the list came from is known, since a Ptr's identity includes
// where it was read from.

// EncodeFeatureList serializes features into a tile leaf's payload.
func EncodeFeatureList(features []Ptr) []byte {
	buf := make([]byte, 0, 64*len(features)+10)
	var scratch [binary.MaxVarintLen64]byte

	n := binary.PutUvarint(scratch[:], uint64(len(features)))
	buf = append(buf, scratch[:n]...)

	for _, f := range features {
		buf = append(buf, byte(f.Type))

		n = binary.PutVarint(scratch[:], f.ID)
		buf = append(buf, scratch[:n]...)

		buf = appendFloat64(buf, f.Location.Lon)
		buf = appendFloat64(buf, f.Location.Lat)
		buf = appendFloat64(buf, f.BoundsOf.MinLon)
		buf = appendFloat64(buf, f.BoundsOf.MinLat)
		buf = appendFloat64(buf, f.BoundsOf.MaxLon)
		buf = appendFloat64(buf, f.BoundsOf.MaxLat)

		n = binary.PutUvarint(scratch[:], uint64(f.Tags.Len()))
		buf = append(buf, scratch[:n]...)
		for i := 0; i < f.Tags.Len(); i++ {
			tag := f.Tags.At(i)
			buf = appendString(buf, tag.Key)
			buf = appendString(buf, tag.Value)
		}
	}
	return buf
}

func appendFloat64(buf []byte, v float64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return append(buf, b[:]...)
}

func appendString(buf []byte, s string) []byte {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], uint64(len(s)))
	buf = append(buf, scratch[:n]...)
	return append(buf, s...)
}

// DecodeFeatureList parses raw into Ptrs, attaching s/page to each so
// later accessors can resolve back to the blob they came from.
func DecodeFeatureList(raw []byte, s *store.BlobStore, page store.PageNum) ([]Ptr, error) {
	r := &byteReader{buf: raw}

	count, err := r.uvarint()
	if err != nil {
		return nil, golerr.Wrap(golerr.InvalidFormat, "feature-list", "truncated count")
	}
	out := make([]Ptr, 0, count)
	for i := uint64(0); i < count; i++ {
		typ, err := r.byte_()
		if err != nil {
			return nil, golerr.Wrap(golerr.InvalidFormat, "feature-list", "truncated type")
		}
		id, err := r.varint()
		if err != nil {
			return nil, golerr.Wrap(golerr.InvalidFormat, "feature-list", "truncated id")
		}
		lon, err := r.float64()
		if err != nil {
			return nil, err
		}
		lat, err := r.float64()
		if err != nil {
			return nil, err
		}
		minLon, err := r.float64()
		if err != nil {
			return nil, err
		}
		minLat, err := r.float64()
		if err != nil {
			return nil, err
		}
		maxLon, err := r.float64()
		if err != nil {
			return nil, err
		}
		maxLat, err := r.float64()
		if err != nil {
			return nil, err
		}
		tagCount, err := r.uvarint()
		if err != nil {
			return nil, golerr.Wrap(golerr.InvalidFormat, "feature-list", "truncated tag count")
		}
		tags := make([]Tag, 0, tagCount)
		for j := uint64(0); j < tagCount; j++ {
			key, err := r.string_()
			if err != nil {
				return nil, err
			}
			value, err := r.string_()
			if err != nil {
				return nil, err
			}
			tags = append(tags, Tag{Key: key, Value: value})
		}
		out = append(out, New(s, page, Type(typ), id, NewTagTable(tags),
			Point{Lon: lon, Lat: lat},
			BBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}))
	}
	return out, nil
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) uvarint() (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, golerr.Wrap(golerr.InvalidFormat, "feature-list", "bad varint")
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) varint() (int64, error) {
	v, n := binary.Varint(r.buf[r.pos:])
	if n <= 0 {
		return 0, golerr.Wrap(golerr.InvalidFormat, "feature-list", "bad varint")
	}
	r.pos += n
	return v, nil
}

func (r *byteReader) byte_() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, golerr.Wrap(golerr.InvalidFormat, "feature-list", "truncated")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) float64() (float64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, golerr.Wrap(golerr.InvalidFormat, "feature-list", "truncated float")
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *byteReader) string_() (string, error) {
	l, err := r.uvarint()
	if err != nil {
		return "", err
	}
	if r.pos+int(l) > len(r.buf) {
		return "", golerr.Wrap(golerr.InvalidFormat, "feature-list", "truncated string")
	}
	s := string(r.buf[r.pos : r.pos+int(l)])
	r.pos += int(l)
	return s, nil
}
