package balloc

import (
	"github.com/cockroachdb/errors"

	"github.com/vkblock/balloc/driver"
	"github.com/vkblock/balloc/memutils"
	"github.com/vkblock/balloc/region"
)

// block is one contiguous device allocation, sub-allocated by its regionAllocator. Regions
// never hold a pointer back to their block; instead the blockPool's blocks slice indexes blocks
// by position and a Region stores its owning index (see region_descriptor.go), per the arena+index
// encoding spec §9 asks for in place of a raw back-pointer.
type block struct {
	deviceMemory driver.DeviceMemory
	size         int
	alignment    uint
	properties   MemoryProperties
	dedicated    bool

	memoryTypeIndex int
	usageFlags      driver.BufferUsageFlags

	regionAllocator *region.Allocator
	liveRegionCount int

	// hostRecord is whatever HostAllocators.Alloc returned for this block's bookkeeping
	// record, passed back verbatim to HostAllocators.Free when the block is destroyed.
	hostRecord any
}

// createBlock allocates one new block sized for the given request: exactly
// round_up(request.Size, alignment) when dedicated, otherwise
// max(minimumBlockSize, round_up(request.Size, alignment)) capped by maximumBlockSize when set.
func createBlock(drv driver.Driver, request MemoryRequest, minimumBlockSize, maximumBlockSize int) (*block, error) {
	need, want := memoryPreferences(request.Properties)

	usageFlags, err := bufferUsageFlags(request.Properties.Usage)
	if err != nil {
		return nil, err
	}

	types := drv.QueryMemoryTypes()
	typeIndex, err := selectMemoryType(types, need, want)
	if err != nil {
		return nil, err
	}

	limits := drv.QueryDeviceLimits()

	// Probe a buffer of the requested usage purely to learn its alignment requirement; the
	// block's alignment must be known before its first real region is carved, and a real
	// buffer of the right usage is the only way the driver can report it.
	probe, probeReqs, err := drv.CreateBuffer(request.Size, usageFlags)
	if err != nil {
		return nil, errors.Wrapf(memutils.ErrDriverBufferCreationFailed, "probing alignment: %v", err)
	}
	if err := drv.DestroyBuffer(probe); err != nil {
		return nil, errors.Wrapf(memutils.ErrDriverBufferCreationFailed, "destroying alignment probe: %v", err)
	}

	alignment := bufferAlignment(probeReqs, limits, usageFlags)
	if request.Alignment > alignment {
		alignment = request.Alignment
	}
	memutils.DebugCheckPow2(alignment, "block alignment")

	size := memutils.AlignUp(request.Size, alignment)
	if !request.Dedicated {
		if size < minimumBlockSize {
			size = minimumBlockSize
		}
		if maximumBlockSize > 0 && size > maximumBlockSize {
			size = maximumBlockSize
		}
	}

	mem, err := drv.AllocateDeviceMemory(size, typeIndex)
	if err != nil {
		return nil, errors.Wrapf(memutils.ErrDriverAllocationFailed, "%v", err)
	}

	return &block{
		deviceMemory:    mem,
		size:            size,
		alignment:       alignment,
		properties:      request.Properties,
		dedicated:       request.Dedicated,
		memoryTypeIndex: typeIndex,
		usageFlags:      usageFlags,
		regionAllocator: region.New(size),
	}, nil
}

// compatible reports whether this block can serve a non-dedicated request with the given
// properties: visibility and usage must match exactly, and the block's own need/want flags must
// include the request's. The block's selected memory type is not re-checked against the
// request, so a request whose flags that type would satisfy is still refused when the block's
// own preferences do not cover them.
func (b *block) compatible(props MemoryProperties) bool {
	if b.dedicated {
		return false
	}
	if b.properties.Visibility != props.Visibility || b.properties.Usage != props.Usage {
		return false
	}

	need, want := memoryPreferences(props)
	// The block was created against its own properties' need/want; a looser caching request
	// is always compatible, a stricter one requires re-checking against what was actually
	// selected. Since selectMemoryType is not re-run here, compatibility is approximated by
	// requiring the block's own preferences to be a superset of the request's.
	blockNeed, blockWant := memoryPreferences(b.properties)
	return blockNeed&need == need && blockWant&want == want
}

func (b *block) destroy(drv driver.Driver) error {
	return drv.FreeDeviceMemory(b.deviceMemory)
}
