package memutils

import "github.com/cockroachdb/errors"

// Sentinel errors for the allocator's error taxonomy. Call sites wrap these with
// errors.Wrapf to attach context; callers distinguish kinds with errors.Is.
var (
	// ErrInvalidArgument is raised for bad properties, zero size, or nil handles.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNoCompatibleMemoryType is raised by the memory type selector when no driver-reported
	// memory type satisfies the requested properties.
	ErrNoCompatibleMemoryType = errors.New("no compatible memory type")
	// ErrBlockLimitReached is raised by the block pool when creating another block would
	// exceed the configured maximum block count.
	ErrBlockLimitReached = errors.New("block limit reached")
	// ErrOutOfBlock is raised by the region allocator when no free range in a block's
	// free-list can satisfy a requested size and alignment.
	ErrOutOfBlock = errors.New("out of block")
	// ErrDriverAllocationFailed wraps a failure from the driver's allocate_device_memory.
	ErrDriverAllocationFailed = errors.New("driver device memory allocation failed")
	// ErrDriverBufferCreationFailed wraps a failure from the driver's create_buffer.
	ErrDriverBufferCreationFailed = errors.New("driver buffer creation failed")
	// ErrDriverBindFailed wraps a failure from the driver's bind_buffer.
	ErrDriverBindFailed = errors.New("driver buffer bind failed")
	// ErrDriverMapFailed wraps a failure from the driver's map_memory.
	ErrDriverMapFailed = errors.New("driver memory map failed")
	// ErrNotMappable is raised when Map is called on a region backed by non-host-visible memory.
	ErrNotMappable = errors.New("region is not mappable")
	// ErrInternalInconsistency marks a bookkeeping inconsistency. Counter underflow is clamped
	// and logged without failing the triggering call; releasing a region whose refcount is
	// already zero, destroying a crop whose owner has refcount zero, and a region whose block
	// index is no longer live are returned as errors wrapping this sentinel.
	ErrInternalInconsistency = errors.New("internal inconsistency")
	// ErrPowerOfTwo is returned by CheckPow2 when a value that must be a power of two is not.
	ErrPowerOfTwo = errors.New("value must be a power of two")
)
