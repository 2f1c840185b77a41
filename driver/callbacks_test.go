package driver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkblock/balloc/driver"
)

func TestAllocationCallbacksRoundTrip(t *testing.T) {
	defer driver.SetAllocationCallbacks(nil)

	require.Nil(t, driver.GetAllocationCallbacks())

	var allocated, freed int
	callbacks := &driver.AllocationCallbacks{
		Allocate: func(userData any, size int) any { allocated += size; return nil },
		Free:     func(userData any, ptr any) { freed++ },
	}
	driver.SetAllocationCallbacks(callbacks)

	got := driver.GetAllocationCallbacks()
	require.NotNil(t, got)
	got.Allocate(nil, 64)
	got.Free(nil, nil)
	require.Equal(t, 64, allocated)
	require.Equal(t, 1, freed)
}

func TestMemoryPropertyFlagsString(t *testing.T) {
	require.Equal(t, "None", driver.MemoryPropertyFlags(0).String())
	require.Equal(t, "HostVisible|DeviceLocal",
		(driver.MemoryPropertyHostVisible | driver.MemoryPropertyDeviceLocal).String())
}

func TestBufferUsageFlagsString(t *testing.T) {
	require.Equal(t, "None", driver.BufferUsageFlags(0).String())
	require.Equal(t, "StorageBuffer|TransferSrc",
		(driver.BufferUsageStorageBuffer | driver.BufferUsageTransferSrc).String())
}
