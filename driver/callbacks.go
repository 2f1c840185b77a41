package driver

import "sync/atomic"

// AllocationCallbacks lets an embedder intercept host-side allocation and free calls the
// driver makes on its behalf (the driver-level allocation hooks described in spec §9, distinct
// from the allocator's own block/region bookkeeping). UserData is passed back verbatim.
type AllocationCallbacks struct {
	Allocate func(userData any, size int) any
	Free     func(userData any, ptr any)
	UserData any
}

// customCallbacks holds the process-wide allocation callbacks pointer described in spec §5:
// "the only concurrent path in the spec is the allocation-callbacks registration function,
// protected by a spinlock on a process-wide pair (callbacks_pointer, lock)." Go has no
// primitive spinlock, so this is implemented with atomic.Pointer, which gives the same
// "readers snapshot, writers swap" behavior without blocking; this is the idiom the retrieval
// pack itself reaches for when it needs a lock-free shared pointer (see
// containers-nri-plugins' use of sync/atomic for shared counters).
var customCallbacks atomic.Pointer[AllocationCallbacks]

// SetAllocationCallbacks installs or clears the process-wide allocation callbacks. It is safe
// to call concurrently with GetAllocationCallbacks and with other calls to
// SetAllocationCallbacks. Changing the callbacks mid-run only affects Drivers/Allocators
// created afterward; it does not touch allocator instances already in use.
func SetAllocationCallbacks(callbacks *AllocationCallbacks) {
	customCallbacks.Store(callbacks)
}

// GetAllocationCallbacks returns the currently installed process-wide allocation callbacks,
// or nil if none have been set.
func GetAllocationCallbacks() *AllocationCallbacks {
	return customCallbacks.Load()
}
