// Package region implements the per-block RegionAllocator described in spec §4.2: an ordered
// set of disjoint (offset, size) free ranges covering the unused portion of one block, serving
// first-fit-lowest-offset allocation with unconditional coalescing on free.
//
// This is deliberately simpler than the teacher's memutils/metadata package, which offers a
// pluggable BlockMetadata interface backed by either a linear allocator or a TLSF
// (two-level segregated fit) allocator, selectable per pool. Spec §4.2 mandates exactly one
// concrete algorithm (first-fit, tie-broken by lowest offset, unconditional coalescing), so
// this package implements that single algorithm directly rather than through a strategy
// interface — there is nothing to make pluggable.
package region

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/vkblock/balloc/memutils"
)

// Range is one free (offset, size) range.
type Range struct {
	Offset int
	Size   int
}

// end returns the exclusive end of the range.
func (r Range) end() int {
	return r.Offset + r.Size
}

// Placement describes where a request landed: the aligned offset it was placed at, plus the
// head and tail gaps of the chosen free range that were returned to the free-list. HeadPadding
// is zero when the range start was already aligned; TailPadding is zero when the placement
// ends exactly at the end of the range.
type Placement struct {
	Offset      int
	HeadPadding int
	TailPadding int
}

// Allocator is the RegionAllocator described in spec §4.2: the free-list tracker for one
// block. The zero value is not usable; construct with New.
type Allocator struct {
	size   int
	ranges []Range // sorted by Offset, disjoint, no two adjacent entries contiguous
}

// New creates a RegionAllocator covering a block of the given size, initially entirely free.
func New(size int) *Allocator {
	if size <= 0 {
		panic("region: block size must be positive")
	}
	return &Allocator{
		size:   size,
		ranges: []Range{{Offset: 0, Size: size}},
	}
}

// Size returns the total size of the block this allocator covers.
func (a *Allocator) Size() int {
	return a.size
}

// SumFree returns the total number of free bytes across all ranges.
func (a *Allocator) SumFree() int {
	total := 0
	for _, r := range a.ranges {
		total += r.Size
	}
	return total
}

// FreeRangeCount returns the number of disjoint free ranges currently tracked.
func (a *Allocator) FreeRangeCount() int {
	return len(a.ranges)
}

// IsEmpty returns true when the free-list covers the entire block (no live allocations).
func (a *Allocator) IsEmpty() bool {
	return len(a.ranges) == 1 && a.ranges[0].Offset == 0 && a.ranges[0].Size == a.size
}

// Allocate scans the free-list first-fit, tie-broken by lowest offset, for a range that can
// hold size bytes at an alignment-satisfying offset. On success it splits the chosen range,
// returning the placed offset and any head/tail padding that was reinserted into the
// free-list. It returns memutils.ErrOutOfBlock if no range fits.
func (a *Allocator) Allocate(size int, align uint) (Placement, error) {
	if size <= 0 {
		return Placement{}, errors.Wrap(memutils.ErrInvalidArgument, "allocation size must be positive")
	}
	if align == 0 {
		align = 1
	}

	for i, r := range a.ranges {
		alignedOffset := memutils.AlignUp(r.Offset, align)
		headPadding := alignedOffset - r.Offset
		end := alignedOffset + size

		if headPadding < 0 || end > r.end() {
			continue
		}

		tailPadding := r.end() - end

		a.ranges = append(a.ranges[:i], a.ranges[i+1:]...)
		if headPadding > 0 {
			a.insert(Range{Offset: r.Offset, Size: headPadding})
		}
		if tailPadding > 0 {
			a.insert(Range{Offset: end, Size: tailPadding})
		}

		return Placement{
			Offset:      alignedOffset,
			HeadPadding: headPadding,
			TailPadding: tailPadding,
		}, nil
	}

	return Placement{}, errors.Wrapf(memutils.ErrOutOfBlock, "no free range fits %d bytes at alignment %d", size, align)
}

// Free returns a previously-allocated [offset, offset+size) range to the free-list and
// coalesces it unconditionally with any contiguous left or right neighbor.
func (a *Allocator) Free(offset, size int) error {
	if size <= 0 {
		return errors.Wrap(memutils.ErrInvalidArgument, "freed range size must be positive")
	}
	if offset < 0 || offset+size > a.size {
		return errors.Wrapf(memutils.ErrInvalidArgument, "freed range [%d,%d) is outside block of size %d", offset, offset+size, a.size)
	}

	a.insert(Range{Offset: offset, Size: size})
	return nil
}

// Validate checks the invariants spec §4.2 and §8 require: free ranges are disjoint, sorted
// by offset, and no two adjacent ranges are contiguous (they would instead be one coalesced
// range).
func (a *Allocator) Validate() error {
	for i := 1; i < len(a.ranges); i++ {
		prev := a.ranges[i-1]
		cur := a.ranges[i]
		if cur.Offset < prev.end() {
			return errors.Newf("free-list ranges overlap or are out of order: [%d,%d) before [%d,%d)",
				prev.Offset, prev.end(), cur.Offset, cur.end())
		}
		if cur.Offset == prev.end() {
			return errors.Newf("adjacent free ranges were not coalesced: [%d,%d) and [%d,%d)",
				prev.Offset, prev.end(), cur.Offset, cur.end())
		}
	}

	if total := a.SumFree(); total > a.size {
		return errors.Newf("free-list sums to %d bytes, more than block size %d", total, a.size)
	}
	return nil
}

// insert adds a range into sorted position and coalesces it with contiguous neighbors. Uses
// x/exp/slices for the sorted search and insert rather than a hand-rolled binary search.
func (a *Allocator) insert(r Range) {
	idx, _ := slices.BinarySearchFunc(a.ranges, r, func(x, y Range) int {
		return x.Offset - y.Offset
	})
	a.ranges = slices.Insert(a.ranges, idx, r)

	// Coalesce with the right neighbor first so the left-neighbor check below sees the merged size.
	if idx+1 < len(a.ranges) {
		if a.ranges[idx].end() == a.ranges[idx+1].Offset {
			a.ranges[idx].Size += a.ranges[idx+1].Size
			a.ranges = slices.Delete(a.ranges, idx+1, idx+2)
		}
	}

	if idx > 0 {
		if a.ranges[idx-1].end() == a.ranges[idx].Offset {
			a.ranges[idx-1].Size += a.ranges[idx].Size
			a.ranges = slices.Delete(a.ranges, idx, idx+1)
		}
	}
}

// Ranges returns a copy of the current free ranges, sorted by offset, for diagnostics and
// tests. Callers must not rely on the backing array's identity.
func (a *Allocator) Ranges() []Range {
	out := make([]Range, len(a.ranges))
	copy(out, a.ranges)
	return out
}
