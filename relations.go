package geodesk

import "github.com/byjtew/libgeodesk/feature"

// Relations narrows the receiver to relation features only (spec §6's
// type-restricted view). See Nodes for why this is a narrowing method
// rather than a distinct type.
func (f Features) Relations() Features {
	next := f
	next.types &= feature.Relation
	return next
}
