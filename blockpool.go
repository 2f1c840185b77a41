package balloc

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkblock/balloc/driver"
	"github.com/vkblock/balloc/memutils"
	"github.com/vkblock/balloc/region"
)

// blockPool owns the ordered collection of blocks an Allocator draws regions from. Blocks are
// kept in a slice indexed by position (the arena in the arena+index encoding spec §9
// describes); a destroyed slot is left nil rather than shifting the slice, so that Regions
// created before a later block's destruction keep valid blockIndex values.
type blockPool struct {
	driver driver.Driver
	config memutils.Config
	logger *slog.Logger

	blocks     []*block
	liveBlocks int

	// hostAllocators backs the host-side bookkeeping allocator pair spec §1 models as an
	// external collaborator. It is invoked when a block record is appended to or cleared from
	// the table, for parity/metrics; see HostAllocators' doc comment for why it is not
	// load-bearing in this Go port.
	hostAllocators HostAllocators
}

func newBlockPool(drv driver.Driver, config memutils.Config, logger *slog.Logger) *blockPool {
	return &blockPool{
		driver: drv,
		config: config,
		logger: logger,
	}
}

// reserve picks an existing compatible block that can actually place the request (size and
// alignment both satisfied by some free range, not merely enough total free bytes) or creates
// a new one. A compatible block with enough free bytes but no range that fits the requested
// alignment yields ErrOutOfBlock from Allocate; per spec §4.3 that falls through to the next
// compatible block and, failing all of them, to creating a fresh one rather than surfacing the
// error. It returns the block's index in p.blocks (stable until that slot is destroyed), the
// block itself, the placement Allocate produced, and whether a new block had to be created.
func (p *blockPool) reserve(request MemoryRequest) (int, *block, region.Placement, bool, error) {
	if !request.Dedicated {
		for i, b := range p.blocks {
			if b == nil || !b.compatible(request.Properties) {
				continue
			}

			align := request.Alignment
			if b.alignment > align {
				align = b.alignment
			}

			placement, err := b.regionAllocator.Allocate(request.Size, align)
			if err != nil {
				if errors.Is(err, memutils.ErrOutOfBlock) {
					continue
				}
				return -1, nil, region.Placement{}, false, err
			}

			return i, b, placement, false, nil
		}
	}

	if p.config.MaximumBlockCount > 0 && p.liveBlocks >= p.config.MaximumBlockCount {
		return -1, nil, region.Placement{}, false, errors.Wrapf(memutils.ErrBlockLimitReached,
			"already at the configured maximum of %d blocks", p.config.MaximumBlockCount)
	}

	newBlock, err := createBlock(p.driver, request, p.config.MinimumBlockSize, p.config.MaximumBlockSize)
	if err != nil {
		return -1, nil, region.Placement{}, false, err
	}

	align := request.Alignment
	if newBlock.alignment > align {
		align = newBlock.alignment
	}

	placement, err := newBlock.regionAllocator.Allocate(request.Size, align)
	if err != nil {
		if destroyErr := newBlock.destroy(p.driver); destroyErr != nil {
			p.logger.Warn("failed to free newly created block after it could not satisfy its own request",
				slog.Any("error", destroyErr))
		}
		return -1, nil, region.Placement{}, false, err
	}

	idx := p.insert(newBlock)
	p.liveBlocks++

	p.logger.Debug("created block",
		slog.Int("index", idx),
		slog.Int("size", newBlock.size),
		slog.Bool("dedicated", newBlock.dedicated))

	return idx, newBlock, placement, true, nil
}

// blockRecordSize is the nominal size passed to HostAllocators.Alloc/Free for one block
// bookkeeping record. It does not reflect the block's device memory size, only the cost of the
// Go-side record tracking it.
const blockRecordSize = 1

// insert places b in the first nil slot, or appends, returning its index.
func (p *blockPool) insert(b *block) int {
	if p.hostAllocators.Alloc != nil {
		b.hostRecord = p.hostAllocators.Alloc(blockRecordSize)
	}

	for i, existing := range p.blocks {
		if existing == nil {
			p.blocks[i] = b
			return i
		}
	}
	p.blocks = append(p.blocks, b)
	return len(p.blocks) - 1
}

func (p *blockPool) at(index int) (*block, error) {
	if index < 0 || index >= len(p.blocks) || p.blocks[index] == nil {
		return nil, errors.Wrapf(memutils.ErrInternalInconsistency, "block index %d is not live", index)
	}
	return p.blocks[index], nil
}

// collect destroys every block with zero live regions and an entirely-free free-list. It
// reports whether any block was destroyed.
func (p *blockPool) collect() bool {
	destroyedAny := false

	for i, b := range p.blocks {
		if b == nil || b.liveRegionCount != 0 || !b.regionAllocator.IsEmpty() {
			continue
		}

		if err := b.destroy(p.driver); err != nil {
			p.logger.Warn("failed to free block during collect", slog.Int("index", i), slog.Any("error", err))
			continue
		}

		p.logger.Debug("destroyed empty block", slog.Int("index", i))
		p.clearSlot(i, b)
		destroyedAny = true
	}

	return destroyedAny
}

// clearSlot releases a block record's slot and notifies the host allocator pair.
func (p *blockPool) clearSlot(index int, b *block) {
	p.blocks[index] = nil
	p.liveBlocks--
	if p.hostAllocators.Free != nil {
		p.hostAllocators.Free(b.hostRecord)
	}
}

// destroy unconditionally frees every block and its resources. Spec §9 resolves the ambiguity
// between the source's release() and destroy() by reserving "tear everything down" for this
// method; collect (called by the Allocator-level Collect) is the one that only retires empty
// blocks while keeping populated ones.
func (p *blockPool) destroy() {
	for i, b := range p.blocks {
		if b == nil {
			continue
		}
		if err := b.destroy(p.driver); err != nil {
			p.logger.Warn("failed to free block during destroy", slog.Int("index", i), slog.Any("error", err))
		}
		p.clearSlot(i, b)
	}
}
