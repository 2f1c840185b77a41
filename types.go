// Package balloc implements the two-level GPU memory allocator: it acquires large blocks of
// device memory from a driver.Driver and sub-allocates regions out of those blocks, giving each
// region an ordinary buffer handle bound at a known offset inside its parent block.
//
// The allocator is single-threaded cooperative by default: unless CreateOptions.Concurrent is
// set, it takes no internal lock across its own data structures, and the embedder must
// serialize calls to any one Allocator. The process-wide allocation callbacks registration in
// the driver package is safe for concurrent use regardless.
package balloc

// Visibility constrains which side of the PCIe bus can see a region's memory directly.
type Visibility int

const (
	// HostOnly requests memory the host can read and write; the device need not see it.
	HostOnly Visibility = iota
	// DeviceOnly requests memory only the device can access.
	DeviceOnly
	// DeviceToHost requests memory the device writes and the host reads back (readback).
	DeviceToHost
	// HostToDevice requests memory the host writes and the device reads (upload).
	HostToDevice
)

func (v Visibility) String() string {
	switch v {
	case HostOnly:
		return "HostOnly"
	case DeviceOnly:
		return "DeviceOnly"
	case DeviceToHost:
		return "DeviceToHost"
	case HostToDevice:
		return "HostToDevice"
	default:
		return "Unknown"
	}
}

// Caching is the preferred host-side caching behavior of a region's memory, relevant only
// when the region is host-visible.
type Caching int

const (
	CachingDefault Caching = iota
	Cached
	Uncached
	CachedCoherent
	UncachedCoherent
)

func (c Caching) String() string {
	switch c {
	case CachingDefault:
		return "Default"
	case Cached:
		return "Cached"
	case Uncached:
		return "Uncached"
	case CachedCoherent:
		return "CachedCoherent"
	case UncachedCoherent:
		return "UncachedCoherent"
	default:
		return "Unknown"
	}
}

// Usage describes how a region's buffer will be used, driving buffer usage flag derivation.
type Usage int

const (
	UniformStorage Usage = iota
	StaticStorage
	DynamicStorage
	TransferSrc
	TransferDst
	TransferSrcDst
)

func (u Usage) String() string {
	switch u {
	case UniformStorage:
		return "UniformStorage"
	case StaticStorage:
		return "StaticStorage"
	case DynamicStorage:
		return "DynamicStorage"
	case TransferSrc:
		return "TransferSrc"
	case TransferDst:
		return "TransferDst"
	case TransferSrcDst:
		return "TransferSrcDst"
	default:
		return "Unknown"
	}
}

// MemoryProperties is the triple driving memory-type and buffer-usage-flag selection.
type MemoryProperties struct {
	Visibility Visibility
	Caching    Caching
	Usage      Usage
}

// MemoryRequest is the input to Allocator.Reserve.
type MemoryRequest struct {
	Size       int
	Alignment  uint
	Properties MemoryProperties
	// Dedicated demands a block exactly sized for this request, never shared with later
	// requests.
	Dedicated bool
}
