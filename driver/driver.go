// Package driver defines the boundary between the block/region allocator and the underlying
// GPU driver. Per spec §1, the driver is an external collaborator: this package declares the
// opaque operations the allocator needs (allocate/free device memory, create/destroy/bind
// buffers, map/unmap, and query memory types and device limits) without implementing a real
// GPU backend. Command buffer submission, pipeline creation, and device/queue setup are out
// of scope and do not appear here.
package driver

import "github.com/cockroachdb/errors"

// DeviceMemory is an opaque handle to a single raw device memory allocation, as returned by
// Driver.AllocateDeviceMemory. Callers must not inspect it; it is passed back verbatim to
// FreeDeviceMemory, BindBuffer, MapMemory, and UnmapMemory.
type DeviceMemory any

// Buffer is an opaque handle to a driver buffer object, as returned by Driver.CreateBuffer.
type Buffer any

// MemoryPropertyFlags mirrors the driver-reported property bits used by the memory type
// selector (spec §4.1): whether a memory type is host-visible, device-local, host-cached,
// or host-coherent.
type MemoryPropertyFlags uint32

const (
	MemoryPropertyHostVisible MemoryPropertyFlags = 1 << iota
	MemoryPropertyDeviceLocal
	MemoryPropertyHostCached
	MemoryPropertyHostCoherent
)

var memoryPropertyFlagNames = []struct {
	flag MemoryPropertyFlags
	name string
}{
	{MemoryPropertyHostVisible, "HostVisible"},
	{MemoryPropertyDeviceLocal, "DeviceLocal"},
	{MemoryPropertyHostCached, "HostCached"},
	{MemoryPropertyHostCoherent, "HostCoherent"},
}

func (f MemoryPropertyFlags) String() string {
	if f == 0 {
		return "None"
	}

	out := ""
	for _, entry := range memoryPropertyFlagNames {
		if f&entry.flag == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += entry.name
	}
	return out
}

// BufferUsageFlags mirrors the driver-reported buffer usage bits derived from MemoryUsage
// (spec §4.1's usage table).
type BufferUsageFlags uint32

const (
	BufferUsageUniformBuffer BufferUsageFlags = 1 << iota
	BufferUsageStorageBuffer
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

var bufferUsageFlagNames = []struct {
	flag BufferUsageFlags
	name string
}{
	{BufferUsageUniformBuffer, "UniformBuffer"},
	{BufferUsageStorageBuffer, "StorageBuffer"},
	{BufferUsageTransferSrc, "TransferSrc"},
	{BufferUsageTransferDst, "TransferDst"},
}

func (f BufferUsageFlags) String() string {
	if f == 0 {
		return "None"
	}

	out := ""
	for _, entry := range bufferUsageFlagNames {
		if f&entry.flag == 0 {
			continue
		}
		if out != "" {
			out += "|"
		}
		out += entry.name
	}
	return out
}

// MemoryType is one entry of the driver's reported memory type table (query_memory_types).
type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     int
}

// DeviceLimits is the subset of driver device limits the allocator needs (query_device_limits):
// the minimum required offset alignment for uniform and storage buffers respectively.
type DeviceLimits struct {
	MinUniformBufferOffsetAlignment uint
	MinStorageBufferOffsetAlignment uint
}

// BufferRequirements is what the driver reports back from CreateBuffer about how a buffer of
// a given usage must be aligned and backed, independent of the MemoryType it will eventually
// be bound to.
type BufferRequirements struct {
	Alignment uint
}

// Driver is the external collaborator described in spec §1: the opaque operations the block
// and region allocators need from the underlying GPU driver. A production embedder backs this
// with real driver calls (e.g. a Vulkan or Metal binding); this module ships only the
// interface and a test-only fake (see the faketest subpackage), consistent with spec §1
// scoping device/queue setup and command submission out of this component.
type Driver interface {
	// QueryMemoryTypes returns the driver's reported memory type table, in driver index order.
	QueryMemoryTypes() []MemoryType
	// QueryDeviceLimits returns the subset of device limits this allocator cares about.
	QueryDeviceLimits() DeviceLimits

	// AllocateDeviceMemory performs one raw driver allocation of size bytes from the given
	// memory type index.
	AllocateDeviceMemory(size int, memoryTypeIndex int) (DeviceMemory, error)
	// FreeDeviceMemory releases a raw driver allocation previously returned by
	// AllocateDeviceMemory.
	FreeDeviceMemory(mem DeviceMemory) error

	// CreateBuffer creates a buffer object supporting the given usage flags, without binding
	// it to memory, and reports its alignment requirement.
	CreateBuffer(size int, usage BufferUsageFlags) (Buffer, BufferRequirements, error)
	// DestroyBuffer destroys a buffer object previously returned by CreateBuffer.
	DestroyBuffer(buf Buffer) error
	// BindBuffer binds a buffer to a device memory allocation at the given byte offset.
	BindBuffer(buf Buffer, mem DeviceMemory, offset int) error

	// MapMemory maps size bytes of a host-visible device memory allocation starting at offset,
	// returning a byte slice backed by the mapped region.
	MapMemory(mem DeviceMemory, offset, size int) ([]byte, error)
	// UnmapMemory unmaps a device memory allocation previously mapped with MapMemory.
	UnmapMemory(mem DeviceMemory) error
}

// ErrDriverUnavailable is returned by helpers that require a non-nil Driver when none was
// configured.
var ErrDriverUnavailable = errors.New("no driver configured")
