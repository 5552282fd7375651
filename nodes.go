package geodesk

import "github.com/byjtew/libgeodesk/feature"

// Nodes narrows the receiver to node features only (spec §6's
// type-restricted view). Implemented as a mask-narrowing method rather
// than a distinct type, since Nodes/Ways/Relations differ from Features
// only in their accepted-type mask and Go's structural typing gives
// duplicating the whole method set on three more structs no benefit.
func (f Features) Nodes() Features {
	next := f
	next.types &= feature.Node
	return next
}
