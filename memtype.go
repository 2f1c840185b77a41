package balloc

import (
	"github.com/cockroachdb/errors"

	"github.com/vkblock/balloc/driver"
	"github.com/vkblock/balloc/memutils"
)

// memoryPreferences computes the need_flags/want_flags pair spec §4.1 derives from
// MemoryProperties. need_flags are mandatory; want_flags are preferred but not required for a
// memory type to be selected.
//
// This resolves the Open Question spec §9 raises about the source's HostOnly path: here
// HostVisible is placed in need_flags for HostOnly (not merely want_flags), since selecting a
// purely device-local type for a host-only request would make every later Map call fail.
func memoryPreferences(props MemoryProperties) (need, want driver.MemoryPropertyFlags) {
	switch props.Visibility {
	case HostOnly:
		need |= driver.MemoryPropertyHostVisible
	case DeviceOnly:
		need |= driver.MemoryPropertyDeviceLocal
	case DeviceToHost:
		need |= driver.MemoryPropertyHostVisible
		want |= driver.MemoryPropertyDeviceLocal
	case HostToDevice:
		need |= driver.MemoryPropertyHostVisible
	}

	if need&driver.MemoryPropertyHostVisible != 0 {
		switch props.Caching {
		case Cached:
			want |= driver.MemoryPropertyHostCached
		case CachedCoherent:
			want |= driver.MemoryPropertyHostCached
			want |= driver.MemoryPropertyHostCoherent
		case UncachedCoherent:
			want |= driver.MemoryPropertyHostCoherent
		}
	}

	return need, want
}

// bufferUsageFlags derives the driver buffer usage flags for a MemoryProperties.Usage value,
// per the table in spec §4.1.
func bufferUsageFlags(usage Usage) (driver.BufferUsageFlags, error) {
	switch usage {
	case UniformStorage:
		return driver.BufferUsageUniformBuffer, nil
	case StaticStorage, DynamicStorage:
		return driver.BufferUsageStorageBuffer, nil
	case TransferSrc:
		return driver.BufferUsageStorageBuffer | driver.BufferUsageTransferSrc, nil
	case TransferDst:
		return driver.BufferUsageStorageBuffer | driver.BufferUsageTransferDst, nil
	case TransferSrcDst:
		return driver.BufferUsageStorageBuffer | driver.BufferUsageTransferSrc | driver.BufferUsageTransferDst, nil
	default:
		return 0, errors.Wrapf(memutils.ErrInvalidArgument, "unrecognized memory usage %v", usage)
	}
}

// selectMemoryType scans the driver's reported memory types in order and returns the
// lowest-index type satisfying all of need and all of want. Per spec §4.1's stricter reading,
// a type satisfying need but not want is not an acceptable fallback: if no type satisfies both,
// this returns memutils.ErrNoCompatibleMemoryType rather than relaxing want.
func selectMemoryType(types []driver.MemoryType, need, want driver.MemoryPropertyFlags) (int, error) {
	for i, t := range types {
		if t.PropertyFlags&need != need {
			continue
		}
		if t.PropertyFlags&want != want {
			continue
		}
		return i, nil
	}
	return -1, errors.Wrapf(memutils.ErrNoCompatibleMemoryType,
		"no memory type satisfies need=%s want=%s", need, want)
}

// bufferAlignment computes the block alignment described in spec §4.1: the maximum of the
// driver's reported buffer memory-requirement alignment and, when the usage implies a uniform
// or storage buffer, the device's corresponding minimum offset alignment.
func bufferAlignment(reqs driver.BufferRequirements, limits driver.DeviceLimits, usageFlags driver.BufferUsageFlags) uint {
	alignment := reqs.Alignment

	if usageFlags&driver.BufferUsageUniformBuffer != 0 && limits.MinUniformBufferOffsetAlignment > alignment {
		alignment = limits.MinUniformBufferOffsetAlignment
	}
	if usageFlags&driver.BufferUsageStorageBuffer != 0 && limits.MinStorageBufferOffsetAlignment > alignment {
		alignment = limits.MinStorageBufferOffsetAlignment
	}

	return alignment
}
