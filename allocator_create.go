package balloc

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkblock/balloc/driver"
	"github.com/vkblock/balloc/memutils"
)

// HostAllocators models the host-side bookkeeping allocator pair spec §1 and §6 list as an
// external collaborator: `(alloc(size), free(ptr))`. This Go port's own bookkeeping structures
// are ordinary GC-managed values and do not depend on it for correctness, so it is accepted and
// invoked for API parity and metrics rather than being load-bearing; Alloc/Free may be left nil.
type HostAllocators struct {
	Alloc func(size int) any
	Free  func(ptr any)
}

// CreateOptions configures Create. Driver is required; everything else has a documented
// default.
type CreateOptions struct {
	Driver driver.Driver
	Config memutils.Config
	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
	// HostAllocators is accepted for parity with the original factory signature; see its
	// doc comment.
	HostAllocators HostAllocators
	// Concurrent opts the returned Allocator into internal locking around every exported
	// method. Left false by default, matching the single-threaded cooperative model; set it
	// when the same Allocator is shared across goroutines.
	Concurrent bool
}

// Create builds a new Allocator bound to opts.Driver. It performs no device allocation itself;
// the first Reserve call creates the first block.
func Create(opts CreateOptions) (*Allocator, error) {
	if opts.Driver == nil {
		return nil, errors.Mark(errors.Wrap(driver.ErrDriverUnavailable, "Create requires a non-nil Driver"),
			memutils.ErrInvalidArgument)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	config := opts.Config
	if config.MinimumBlockSize == 0 {
		config.MinimumBlockSize = memutils.DefaultConfig().MinimumBlockSize
	}

	logger.Debug("created allocator",
		slog.Int("minimum_block_size", config.MinimumBlockSize),
		slog.Int("maximum_block_size", config.MaximumBlockSize),
		slog.Int("maximum_block_count", config.MaximumBlockCount))

	pool := newBlockPool(opts.Driver, config, logger)
	pool.hostAllocators = opts.HostAllocators

	a := &Allocator{
		driver: opts.Driver,
		logger: logger,
		pool:   pool,
	}
	a.mu.UseMutex = opts.Concurrent
	return a, nil
}
