package region_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkblock/balloc/memutils"
	"github.com/vkblock/balloc/region"
)

func TestAllocateFitsFirstAvailableRange(t *testing.T) {
	a := region.New(1024)

	p, err := a.Allocate(128, 1)
	require.NoError(t, err)
	require.Equal(t, 0, p.Offset)
	require.Equal(t, 0, p.HeadPadding)
	require.Equal(t, 1024-128, p.TailPadding)
	require.NoError(t, a.Validate())
	require.Equal(t, 1024-128, a.SumFree())
}

func TestAllocateRespectsAlignment(t *testing.T) {
	a := region.New(1024)

	_, err := a.Allocate(100, 1)
	require.NoError(t, err)

	p, err := a.Allocate(64, 64)
	require.NoError(t, err)
	require.Equal(t, 0, p.Offset%64)
	require.Greater(t, p.HeadPadding, 0)
	require.NoError(t, a.Validate())
}

func TestAllocateOutOfBlock(t *testing.T) {
	a := region.New(128)

	_, err := a.Allocate(128, 1)
	require.NoError(t, err)

	_, err = a.Allocate(1, 1)
	require.ErrorIs(t, err, memutils.ErrOutOfBlock)
}

func TestFreeCoalescesWithBothNeighbors(t *testing.T) {
	a := region.New(300)

	p1, err := a.Allocate(100, 1)
	require.NoError(t, err)
	p2, err := a.Allocate(100, 1)
	require.NoError(t, err)
	p3, err := a.Allocate(100, 1)
	require.NoError(t, err)

	require.NoError(t, a.Free(p1.Offset, 100))
	require.NoError(t, a.Free(p3.Offset, 100))
	require.NoError(t, a.Validate())
	require.Equal(t, 2, a.FreeRangeCount())

	require.NoError(t, a.Free(p2.Offset, 100))
	require.NoError(t, a.Validate())
	require.True(t, a.IsEmpty())
	require.Equal(t, 1, a.FreeRangeCount())
}

func TestFreeRejectsOutOfRange(t *testing.T) {
	a := region.New(64)
	err := a.Free(32, 64)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)
}

func TestAllocateFirstFitReusesLowestFreedRange(t *testing.T) {
	a := region.New(256)

	p1, _ := a.Allocate(128, 1)
	_, _ = a.Allocate(64, 1)
	require.NoError(t, a.Free(p1.Offset, 128))

	p, err := a.Allocate(128, 1)
	require.NoError(t, err)
	require.Equal(t, 0, p.Offset)
	require.NoError(t, a.Validate())
}
