package balloc

import "github.com/vkblock/balloc/driver"

// Region is a sub-allocation inside a block, exposed as a buffer handle bound at an offset, or
// a crop aliasing another region's storage. Callers must treat a *Region as read-only: pass it
// back to the Allocator that produced it rather than mutating its fields, and return it to the
// allocator (via Release, Reclaim, or DestroyCrop) before dropping the last handle to it, or its
// block space leaks until Allocator.Destroy.
type Region struct {
	// blockIndex is the owning block's position in the Allocator's block table. This replaces
	// a raw back-pointer from region to block with the arena+index encoding: owner lookups go
	// through the table instead of following a cyclic pointer.
	blockIndex int

	offset      int
	size        int
	headPadding int
	tailPadding int

	bufferHandle driver.Buffer

	isOwner bool
	// owner is non-nil only for crops: a typed, non-owning reference to the region whose
	// storage this crop aliases, per spec §9's "crop as alias" design note. Owners never set
	// this field.
	owner *Region
	// refcount is meaningful only on owner regions; crops forward retain/release to it.
	refcount int
}

// IsOwner reports whether this region owns its underlying storage (true) or is a crop aliasing
// another region's storage (false).
func (r *Region) IsOwner() bool {
	return r.isOwner
}

// Offset is the region's byte offset within its parent block.
func (r *Region) Offset() int {
	return r.offset
}

// Size is the region's total byte span within its parent block, including any head/tail padding.
func (r *Region) Size() int {
	return r.size
}

// HeadPadding is the number of bytes between Offset and the start of the effective payload.
func (r *Region) HeadPadding() int {
	return r.headPadding
}

// TailPadding is the number of bytes between the end of the effective payload and Offset+Size.
func (r *Region) TailPadding() int {
	return r.tailPadding
}

// BufferHandle is the driver buffer bound at Offset inside the owning block's device memory.
func (r *Region) BufferHandle() driver.Buffer {
	return r.bufferHandle
}

// EffectiveOffset is the start of the region's usable payload, past any head padding.
func (r *Region) EffectiveOffset() int {
	return r.offset + r.headPadding
}

// EffectiveSize is the length of the region's usable payload, short of any head/tail padding.
func (r *Region) EffectiveSize() int {
	return r.size - r.headPadding - r.tailPadding
}

// Refcount returns the current reference count of this region's owner (itself, if it is an
// owner; its owner's, if it is a crop).
func (r *Region) Refcount() int {
	if r.isOwner {
		return r.refcount
	}
	return r.owner.refcount
}

// ownerRegion returns the region whose refcount backs storage for r: r itself if r is an
// owner, or r.owner if r is a crop. This is the internal counterpart of the exported OwnerOf
// operation spec §6 lists in the public API table.
func (r *Region) ownerRegion() *Region {
	if r.isOwner {
		return r
	}
	return r.owner
}
