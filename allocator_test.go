package balloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/vkblock/balloc"
	"github.com/vkblock/balloc/driver"
	"github.com/vkblock/balloc/driver/faketest"
	"github.com/vkblock/balloc/memutils"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(devNull{}))
}

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func hostVisibleType() driver.MemoryType {
	return driver.MemoryType{PropertyFlags: driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent}
}

func deviceLocalType() driver.MemoryType {
	return driver.MemoryType{PropertyFlags: driver.MemoryPropertyDeviceLocal}
}

func newTestAllocator(t *testing.T, types []driver.MemoryType, config memutils.Config) (*balloc.Allocator, *faketest.Driver) {
	t.Helper()
	fd := faketest.New(types, driver.DeviceLimits{MinUniformBufferOffsetAlignment: 1, MinStorageBufferOffsetAlignment: 1})
	a, err := balloc.Create(balloc.CreateOptions{Driver: fd, Config: config, Logger: discardLogger()})
	require.NoError(t, err)
	return a, fd
}

func hostProps() balloc.MemoryProperties {
	return balloc.MemoryProperties{Visibility: balloc.HostOnly, Caching: balloc.UncachedCoherent, Usage: balloc.DynamicStorage}
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	r, err := a.Reserve(balloc.MemoryRequest{Size: 1 << 20, Alignment: 256, Properties: hostProps()})
	require.NoError(t, err)
	require.True(t, r.IsOwner())
	require.Equal(t, 1, r.Refcount())

	stats := a.Stats()
	require.Equal(t, 1, stats.Blocks)
	require.Equal(t, 1, stats.Regions)

	require.NoError(t, a.Release(r))
	stats = a.Stats()
	require.Equal(t, 0, stats.Regions)

	require.True(t, a.Collect())
	stats = a.Stats()
	require.Equal(t, 0, stats.Blocks)
}

func TestCoalesceScenario(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	req := balloc.MemoryRequest{Size: 1 << 20, Alignment: 256, Properties: hostProps()}
	r1, err := a.Reserve(req)
	require.NoError(t, err)
	r2, err := a.Reserve(req)
	require.NoError(t, err)
	r3, err := a.Reserve(req)
	require.NoError(t, err)

	require.NoError(t, a.Release(r2))
	require.NoError(t, a.Release(r1))
	require.NoError(t, a.Release(r3))

	require.True(t, a.Collect())
	require.Equal(t, 0, a.Stats().Blocks)
}

func TestReserveFallsThroughToNewBlockWhenFragmented(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 3 << 20})

	unit := balloc.MemoryRequest{Size: 1 << 20, Alignment: 1, Properties: hostProps()}
	r1, err := a.Reserve(unit)
	require.NoError(t, err)
	r2, err := a.Reserve(unit)
	require.NoError(t, err)
	r3, err := a.Reserve(unit)
	require.NoError(t, err)
	require.Equal(t, 1, a.Stats().Blocks)

	// Free the first and last thirds, leaving two disjoint 1MB ranges: enough total free
	// bytes for a 1.5MB request, but no single range big enough to place it.
	require.NoError(t, a.Release(r1))
	require.NoError(t, a.Release(r3))

	require.True(t, r2.IsOwner())

	r4, err := a.Reserve(balloc.MemoryRequest{Size: (3 << 20) / 2, Alignment: 1, Properties: hostProps()})
	require.NoError(t, err)
	require.NotNil(t, r4)
	require.Equal(t, 2, a.Stats().Blocks)
}

func TestRetainCropDestroyCropRefcount(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	r, err := a.Reserve(balloc.MemoryRequest{Size: 1024, Alignment: 1, Properties: hostProps()})
	require.NoError(t, err)

	c1, err := a.Crop(r, 256)
	require.NoError(t, err)
	c2, err := a.Crop(r, 512)
	require.NoError(t, err)

	require.Equal(t, 3, r.Refcount())
	require.False(t, c1.IsOwner())
	require.Equal(t, r, a.OwnerOf(c1))

	require.NoError(t, a.Release(r))
	require.Equal(t, 2, r.Refcount())

	require.NoError(t, a.DestroyCrop(c1))
	require.NoError(t, a.DestroyCrop(c2))
	require.Equal(t, 0, r.Refcount())

	require.True(t, a.Collect())
}

func TestCropOffsetOutOfRangeFails(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	r, err := a.Reserve(balloc.MemoryRequest{Size: 128, Alignment: 1, Properties: hostProps()})
	require.NoError(t, err)

	_, err = a.Crop(r, 128)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)
}

func TestMapDeviceOnlyFails(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{deviceLocalType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	r, err := a.Reserve(balloc.MemoryRequest{
		Size:       1024,
		Alignment:  1,
		Properties: balloc.MemoryProperties{Visibility: balloc.DeviceOnly, Usage: balloc.StaticStorage},
	})
	require.NoError(t, err)

	_, err = a.Map(r)
	require.ErrorIs(t, err, memutils.ErrNotMappable)
}

func TestMapHostVisibleRoundTrip(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	r, err := a.Reserve(balloc.MemoryRequest{Size: 64, Alignment: 1, Properties: hostProps()})
	require.NoError(t, err)

	data, err := a.Map(r)
	require.NoError(t, err)
	require.Len(t, data, r.EffectiveSize())

	data[0] = 0xAB
	require.NoError(t, a.Unmap(r))
}

func TestBlockLimitReached(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 1024, MaximumBlockCount: 1})

	_, err := a.Reserve(balloc.MemoryRequest{Size: 1024, Alignment: 1, Properties: hostProps(), Dedicated: true})
	require.NoError(t, err)

	_, err = a.Reserve(balloc.MemoryRequest{Size: 1024, Alignment: 1, Properties: hostProps(), Dedicated: true})
	require.ErrorIs(t, err, memutils.ErrBlockLimitReached)
}

func TestNoCompatibleMemoryTypeCreatesNoBlock(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{deviceLocalType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	_, err := a.Reserve(balloc.MemoryRequest{Size: 1024, Alignment: 1, Properties: hostProps()})
	require.ErrorIs(t, err, memutils.ErrNoCompatibleMemoryType)
	require.Equal(t, 0, a.Stats().Blocks)
}

func TestDedicatedBlockNotReusedByLaterRequests(t *testing.T) {
	a, fd := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	_, err := a.Reserve(balloc.MemoryRequest{Size: 10 << 20, Alignment: 1, Properties: hostProps(), Dedicated: true})
	require.NoError(t, err)
	require.Equal(t, 1, a.Stats().Blocks)

	_, err = a.Reserve(balloc.MemoryRequest{Size: 1024, Alignment: 1, Properties: hostProps()})
	require.NoError(t, err)
	require.Equal(t, 2, a.Stats().Blocks)
	require.Equal(t, 2, fd.LiveAllocationCount())
}

func TestReclaimReturnsOwnerRegardlessOfRefcount(t *testing.T) {
	a, _ := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	r, err := a.Reserve(balloc.MemoryRequest{Size: 256, Alignment: 1, Properties: hostProps()})
	require.NoError(t, err)
	a.Retain(r)
	require.Equal(t, 2, r.Refcount())

	require.NoError(t, a.Reclaim(r))
	require.Equal(t, 0, a.Stats().Regions)
}

func TestDestroyFreesAllBlocksAndResetsCounters(t *testing.T) {
	a, fd := newTestAllocator(t, []driver.MemoryType{hostVisibleType()}, memutils.Config{MinimumBlockSize: 4 << 20})

	_, err := a.Reserve(balloc.MemoryRequest{Size: 1024, Alignment: 1, Properties: hostProps()})
	require.NoError(t, err)

	a.Destroy()
	stats := a.Stats()
	require.Equal(t, 0, stats.Blocks)
	require.Equal(t, 0, stats.Regions)
	require.Equal(t, 0, fd.LiveAllocationCount())
}
