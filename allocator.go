package balloc

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkblock/balloc/driver"
	"github.com/vkblock/balloc/internal/utils"
	"github.com/vkblock/balloc/memutils"
)

// Allocator is the top-level two-level GPU memory allocator described in spec §4.4: its entry
// points reserve, release, reclaim, retain, map, unmap, crop, destroy_crop, owner_of, collect,
// stats, and destroy. Per spec §5 the core assumes external serialization; mu is an
// OptionalRWMutex left disengaged by default (CreateOptions.Concurrent opts in) rather than a
// mutex an embedder cannot turn off, matching the teacher's own optionally-locked call sites.
// Read-only entry points take the read lock; everything that mutates region/block state takes
// the write lock.
type Allocator struct {
	driver driver.Driver
	logger *slog.Logger
	pool   *blockPool
	stats  memutils.Statistics
	mu     utils.OptionalRWMutex
}

// Reserve returns a freshly allocated region with Refcount()==1, IsOwner()==true, and a buffer
// handle already bound at its offset inside the chosen block's device memory.
func (a *Allocator) Reserve(request MemoryRequest) (*Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if request.Size <= 0 {
		return nil, errors.Wrap(memutils.ErrInvalidArgument, "request size must be positive")
	}

	blockIndex, blk, placement, created, err := a.pool.reserve(request)
	if err != nil {
		return nil, err
	}
	if created {
		a.stats.AddBlock(blk.size)
	}

	buf, _, err := a.driver.CreateBuffer(request.Size, blk.usageFlags)
	if err != nil {
		if freeErr := blk.regionAllocator.Free(placement.Offset, request.Size); freeErr != nil {
			a.logger.Warn("failed to return region to free-list after buffer creation failure", slog.Any("error", freeErr))
		}
		return nil, errors.Wrapf(memutils.ErrDriverBufferCreationFailed, "%v", err)
	}

	if err := a.driver.BindBuffer(buf, blk.deviceMemory, placement.Offset); err != nil {
		if destroyErr := a.driver.DestroyBuffer(buf); destroyErr != nil {
			a.logger.Warn("failed to destroy buffer after bind failure", slog.Any("error", destroyErr))
		}
		if freeErr := blk.regionAllocator.Free(placement.Offset, request.Size); freeErr != nil {
			a.logger.Warn("failed to return region to free-list after bind failure", slog.Any("error", freeErr))
		}
		return nil, errors.Wrapf(memutils.ErrDriverBindFailed, "%v", err)
	}

	blk.liveRegionCount++
	a.stats.AddRegion(request.Size)
	memutils.DebugValidate(blk.regionAllocator)

	// The placement's head/tail gaps went back to the free-list; they are not part of the
	// region, so an owner region starts with zero padding.
	region := &Region{
		blockIndex:   blockIndex,
		offset:       placement.Offset,
		size:         request.Size,
		bufferHandle: buf,
		isOwner:      true,
		refcount:     1,
	}

	a.logger.Debug("reserved region",
		slog.Int("block", blockIndex),
		slog.Int("offset", region.offset),
		slog.Int("size", region.size))

	return region, nil
}

// Release decrements r's refcount, returning its storage to the block's free-list when it
// reaches zero. It does not free the underlying block; call Collect for that. Release requires
// an owner region; crops are returned with DestroyCrop instead.
func (a *Allocator) Release(r *Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !r.isOwner {
		return errors.Wrap(memutils.ErrInvalidArgument, "Release requires an owner region, not a crop; use DestroyCrop")
	}

	if r.refcount <= 0 {
		return errors.Wrapf(memutils.ErrInternalInconsistency, "released a region with refcount %d", r.refcount)
	}

	r.refcount--
	if r.refcount > 0 {
		return nil
	}

	return a.freeOwner(r)
}

// Reclaim forces r's storage back to its block's free-list regardless of refcount, for error
// paths and explicit disposal. It is only valid on owner regions.
func (a *Allocator) Reclaim(r *Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !r.isOwner {
		return errors.Wrap(memutils.ErrInvalidArgument, "Reclaim requires an owner region")
	}
	r.refcount = 0
	return a.freeOwner(r)
}

// freeOwner returns an owner region's storage to its block, destroys its buffer, and updates
// counters. Called once refcount has reached zero via Release or unconditionally via Reclaim.
func (a *Allocator) freeOwner(r *Region) error {
	blk, err := a.pool.at(r.blockIndex)
	if err != nil {
		return err
	}

	if err := a.driver.DestroyBuffer(r.bufferHandle); err != nil {
		a.logger.Warn("failed to destroy buffer while freeing region", slog.Any("error", err))
	}

	if err := blk.regionAllocator.Free(r.offset, r.size); err != nil {
		return err
	}
	memutils.DebugValidate(blk.regionAllocator)
	blk.liveRegionCount--

	if underflowed := a.stats.RemoveRegion(r.size); underflowed {
		a.logger.Warn("region counter underflow", slog.Int("block", r.blockIndex))
	}

	a.logger.Debug("freed region", slog.Int("block", r.blockIndex), slog.Int("offset", r.offset))
	return nil
}

// Retain increments the refcount of r's owner (forwarding, for crops, per spec §4.4).
func (a *Allocator) Retain(r *Region) {
	a.mu.Lock()
	defer a.mu.Unlock()

	r.ownerRegion().refcount++
}

// Map maps r's effective payload range and returns a host-visible slice backed by the owning
// block's device memory. It fails with ErrNotMappable when the block's selected memory type is
// not host-visible.
func (a *Allocator) Map(r *Region) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	blk, err := a.pool.at(r.blockIndex)
	if err != nil {
		return nil, err
	}

	types := a.driver.QueryMemoryTypes()
	if blk.memoryTypeIndex < 0 || blk.memoryTypeIndex >= len(types) ||
		types[blk.memoryTypeIndex].PropertyFlags&driver.MemoryPropertyHostVisible == 0 {
		return nil, errors.Wrap(memutils.ErrNotMappable, "block's memory type is not host-visible")
	}

	effectiveSize := r.EffectiveSize()
	if effectiveSize <= 0 {
		return nil, errors.Wrapf(memutils.ErrInvalidArgument, "effective size %d is not positive", effectiveSize)
	}

	data, err := a.driver.MapMemory(blk.deviceMemory, r.EffectiveOffset(), effectiveSize)
	if err != nil {
		return nil, errors.Wrapf(memutils.ErrDriverMapFailed, "%v", err)
	}
	return data, nil
}

// Unmap unmaps the device memory backing r's owning block.
func (a *Allocator) Unmap(r *Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	blk, err := a.pool.at(r.blockIndex)
	if err != nil {
		return err
	}
	return a.driver.UnmapMemory(blk.deviceMemory)
}

// Crop allocates a new region descriptor aliasing region's owner storage starting offset bytes
// into the owner's effective payload, incrementing the owner's refcount. offset must be less
// than the owner's effective size.
func (a *Allocator) Crop(r *Region, offset int) (*Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	owner := r.ownerRegion()

	if offset < 0 || offset >= owner.EffectiveSize() {
		return nil, errors.Wrapf(memutils.ErrInvalidArgument,
			"crop offset %d is outside owner's effective size %d", offset, owner.EffectiveSize())
	}
	if owner.refcount <= 0 {
		return nil, errors.Wrap(memutils.ErrInvalidArgument, "cannot crop a released region")
	}

	owner.refcount++

	return &Region{
		blockIndex:   owner.blockIndex,
		offset:       owner.offset,
		size:         owner.size,
		headPadding:  owner.headPadding + offset,
		tailPadding:  owner.tailPadding,
		bufferHandle: owner.bufferHandle,
		isOwner:      false,
		owner:        owner,
	}, nil
}

// DestroyCrop decrements the owner's refcount and detaches the crop descriptor. When the
// decremented refcount reaches zero, the owner's storage is returned to the free-list exactly
// as Release would. It is only valid on crops; owners are returned with Release or Reclaim.
func (a *Allocator) DestroyCrop(c *Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c.isOwner {
		return errors.Wrap(memutils.ErrInvalidArgument, "DestroyCrop requires a crop, not an owner region")
	}

	owner := c.owner
	if owner.refcount <= 0 {
		owner.refcount = 0
		c.owner = nil
		return errors.Wrap(memutils.ErrInternalInconsistency, "destroyed a crop whose owner had refcount 0")
	}

	owner.refcount--
	c.owner = nil

	if owner.refcount > 0 {
		return nil
	}

	return a.freeOwner(owner)
}

// OwnerOf returns r if it is an owner region, or the region it aliases if it is a crop.
func (a *Allocator) OwnerOf(r *Region) *Region {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return r.ownerRegion()
}

// Collect destroys every block with zero live regions and a fully-free free-list, reporting
// whether any block was destroyed.
func (a *Allocator) Collect() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	destroyedAny := a.pool.collect()
	if destroyedAny {
		a.rebuildBlockStats()
	}
	return destroyedAny
}

// rebuildBlockStats recomputes the block counters from the pool's live blocks, used after
// Collect destroys one or more blocks.
func (a *Allocator) rebuildBlockStats() {
	blocks, bytes := 0, 0
	for _, b := range a.pool.blocks {
		if b == nil {
			continue
		}
		blocks++
		bytes += b.size
	}
	a.stats.Blocks = blocks
	a.stats.BlockBytes = bytes
}

// Stats returns a snapshot of the allocator's byte and object counters.
func (a *Allocator) Stats() memutils.Statistics {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.stats
}

// StatsJSON serializes Stats as JSON.
func (a *Allocator) StatsJSON() ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.stats.WriteJSON()
}

// Destroy frees every block and resets counters. The Allocator value itself may be discarded
// by the caller afterward.
func (a *Allocator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pool.destroy()
	a.stats.Clear()
	a.logger.Debug("allocator destroyed")
}
