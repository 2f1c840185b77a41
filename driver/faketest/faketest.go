// Package faketest provides a hand-written Driver implementation for tests. It backs no real
// GPU; allocations are plain Go byte slices and buffer binds are bookkeeping only. This plays
// the role the teacher fills with gomock-generated mocks against a real Vulkan driver surface,
// but since this module's driver surface is small and owned entirely by this repo (not a
// third-party binding with hundreds of methods), a fake is simpler than introducing a
// mock-generation toolchain purely for test doubles.
package faketest

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/vkblock/balloc/driver"
)

type memBlock struct {
	data []byte
}

type bufferBinding struct {
	mem    *memBlock
	offset int
	size   int
}

// Driver is a fake driver.Driver backed by host memory. MemoryTypes and Limits can be
// configured before use; AllocateDeviceMemoryErr and friends let tests force specific calls
// to fail.
type Driver struct {
	mu sync.Mutex

	MemoryTypes []driver.MemoryType
	Limits      driver.DeviceLimits

	// Injected failures, checked at the start of the matching method.
	AllocateDeviceMemoryErr error
	CreateBufferErr         error
	BindBufferErr           error
	MapMemoryErr            error

	buffers map[driver.Buffer]*bufferBinding

	allocCount int
}

// New creates a fake driver reporting the given memory types and limits.
func New(memoryTypes []driver.MemoryType, limits driver.DeviceLimits) *Driver {
	return &Driver{
		MemoryTypes: memoryTypes,
		Limits:      limits,
		buffers:     make(map[driver.Buffer]*bufferBinding),
	}
}

func (d *Driver) QueryMemoryTypes() []driver.MemoryType {
	return d.MemoryTypes
}

func (d *Driver) QueryDeviceLimits() driver.DeviceLimits {
	return d.Limits
}

func (d *Driver) AllocateDeviceMemory(size int, memoryTypeIndex int) (driver.DeviceMemory, error) {
	if d.AllocateDeviceMemoryErr != nil {
		return nil, d.AllocateDeviceMemoryErr
	}
	if memoryTypeIndex < 0 || memoryTypeIndex >= len(d.MemoryTypes) {
		return nil, errors.Newf("invalid memory type index %d", memoryTypeIndex)
	}
	if size <= 0 {
		return nil, errors.New("allocation size must be positive")
	}

	d.mu.Lock()
	d.allocCount++
	d.mu.Unlock()

	return &memBlock{data: make([]byte, size)}, nil
}

func (d *Driver) FreeDeviceMemory(mem driver.DeviceMemory) error {
	if mem == nil {
		return errors.New("attempted to free nil device memory")
	}
	d.mu.Lock()
	d.allocCount--
	d.mu.Unlock()
	return nil
}

func (d *Driver) CreateBuffer(size int, usage driver.BufferUsageFlags) (driver.Buffer, driver.BufferRequirements, error) {
	if d.CreateBufferErr != nil {
		return nil, driver.BufferRequirements{}, d.CreateBufferErr
	}
	if size <= 0 {
		return nil, driver.BufferRequirements{}, errors.New("buffer size must be positive")
	}

	alignment := uint(16)
	if usage&driver.BufferUsageUniformBuffer != 0 {
		alignment = d.Limits.MinUniformBufferOffsetAlignment
	} else if usage&driver.BufferUsageStorageBuffer != 0 {
		alignment = d.Limits.MinStorageBufferOffsetAlignment
	}
	if alignment == 0 {
		alignment = 16
	}

	buf := fmt.Sprintf("buffer-%p", &size)
	handle := driver.Buffer(&struct{ id string }{buf})

	d.mu.Lock()
	d.buffers[handle] = &bufferBinding{size: size}
	d.mu.Unlock()

	return handle, driver.BufferRequirements{Alignment: alignment}, nil
}

func (d *Driver) DestroyBuffer(buf driver.Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.buffers[buf]; !ok {
		return errors.New("attempted to destroy an unknown buffer")
	}
	delete(d.buffers, buf)
	return nil
}

func (d *Driver) BindBuffer(buf driver.Buffer, mem driver.DeviceMemory, offset int) error {
	if d.BindBufferErr != nil {
		return d.BindBufferErr
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	binding, ok := d.buffers[buf]
	if !ok {
		return errors.New("attempted to bind an unknown buffer")
	}

	block, ok := mem.(*memBlock)
	if !ok || block == nil {
		return errors.New("attempted to bind to invalid device memory")
	}
	if offset < 0 || offset+binding.size > len(block.data) {
		return errors.New("buffer bind range exceeds device memory allocation")
	}

	binding.mem = block
	binding.offset = offset
	return nil
}

func (d *Driver) MapMemory(mem driver.DeviceMemory, offset, size int) ([]byte, error) {
	if d.MapMemoryErr != nil {
		return nil, d.MapMemoryErr
	}

	block, ok := mem.(*memBlock)
	if !ok || block == nil {
		return nil, errors.New("attempted to map invalid device memory")
	}
	if offset < 0 || size <= 0 || offset+size > len(block.data) {
		return nil, errors.New("map range exceeds device memory allocation")
	}

	return block.data[offset : offset+size], nil
}

func (d *Driver) UnmapMemory(mem driver.DeviceMemory) error {
	if _, ok := mem.(*memBlock); !ok {
		return errors.New("attempted to unmap invalid device memory")
	}
	return nil
}

// LiveAllocationCount reports the number of outstanding AllocateDeviceMemory calls not yet
// matched by FreeDeviceMemory, for test assertions.
func (d *Driver) LiveAllocationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocCount
}
