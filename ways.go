package geodesk

import "github.com/byjtew/libgeodesk/feature"

// Ways narrows the receiver to way features only (spec §6's
// type-restricted view). See Nodes for why this is a narrowing method
// rather than a distinct type.
func (f Features) Ways() Features {
	next := f
	next.types &= feature.Way
	return next
}
