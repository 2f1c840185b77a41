package memutils

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Statistics tracks the byte and object counters described in spec §4.4: live block count,
// total block bytes, live region count, and total region bytes. Counters are updated in
// lockstep with successful allocations and deallocations by the caller (the Allocator).
type Statistics struct {
	Blocks      int
	BlockBytes  int
	Regions     int
	RegionBytes int
}

func (s *Statistics) Clear() {
	*s = Statistics{}
}

func (s *Statistics) AddBlock(size int) {
	s.Blocks++
	s.BlockBytes += size
}

func (s *Statistics) AddRegion(size int) {
	s.Regions++
	s.RegionBytes += size
}

// RemoveBlock decrements the block counters, clamping at zero. It reports underflow (true)
// when the counters would otherwise have gone negative, so the caller can surface
// ErrInternalInconsistency without aborting the operation in progress.
func (s *Statistics) RemoveBlock(size int) (underflowed bool) {
	if s.Blocks <= 0 {
		s.Blocks = 0
		underflowed = true
	} else {
		s.Blocks--
	}

	if s.BlockBytes < size {
		s.BlockBytes = 0
		underflowed = true
	} else {
		s.BlockBytes -= size
	}
	return underflowed
}

// RemoveRegion decrements the region counters, clamping at zero, mirroring RemoveBlock.
func (s *Statistics) RemoveRegion(size int) (underflowed bool) {
	if s.Regions <= 0 {
		s.Regions = 0
		underflowed = true
	} else {
		s.Regions--
	}

	if s.RegionBytes < size {
		s.RegionBytes = 0
		underflowed = true
	} else {
		s.RegionBytes -= size
	}
	return underflowed
}

// WriteJSON serializes the statistics as a JSON object, for Allocator.StatsJSON.
func (s *Statistics) WriteJSON() ([]byte, error) {
	w := jwriter.NewWriter()
	obj := w.Object()
	obj.Name("Blocks").Int(s.Blocks)
	obj.Name("BlockBytes").Int(s.BlockBytes)
	obj.Name("Regions").Int(s.Regions)
	obj.Name("RegionBytes").Int(s.RegionBytes)
	obj.End()

	return w.Bytes(), w.Error()
}
