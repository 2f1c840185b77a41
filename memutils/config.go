package memutils

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

const bytesPerMegabyte = 1024 * 1024

// Config holds the three tunables described in spec §6: the minimum size of a shared
// (non-dedicated) block, an optional cap on block size, and an optional cap on the number
// of concurrent blocks. Zero means "unconstrained" for MaximumBlockSize and
// MaximumBlockCount; MinimumBlockSize defaults to 32MB when left at zero.
type Config struct {
	MinimumBlockSize int
	MaximumBlockSize int
	MaximumBlockCount int
}

// DefaultConfig returns the allocator's built-in defaults, matching the original's
// VulkanMemoryConfig: a 32MB minimum block size, and no constraint on maximum block size
// or block count.
func DefaultConfig() Config {
	return Config{
		MinimumBlockSize: 32 * bytesPerMegabyte,
	}
}

// ParseConfig parses the `A:B:C` / `A;B;C` triple described in spec §6 (minimum_block_size,
// maximum_block_size, maximum_block_count, each in megabytes except the block count).
// Missing trailing fields keep DefaultConfig's values; an empty string returns the defaults
// unchanged. This mirrors the env-var parsing Halide performs for HL_VK_ALLOC_CONFIG in
// vulkan_memory.h, reimplemented against Go's standard library since no ecosystem config
// parser in the retrieval pack targets this semicolon-or-colon-delimited triple format.
func ParseConfig(env string) (Config, error) {
	cfg := DefaultConfig()

	env = strings.TrimSpace(env)
	if env == "" {
		return cfg, nil
	}

	delim := ":"
	if strings.Contains(env, ";") {
		delim = ";"
	}

	fields := strings.Split(env, delim)
	for i, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		value, err := strconv.Atoi(field)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing allocator config field %d (%q)", i, field)
		}
		if value < 0 {
			return Config{}, errors.Newf("allocator config field %d (%q) must be non-negative", i, field)
		}

		switch i {
		case 0:
			cfg.MinimumBlockSize = value * bytesPerMegabyte
		case 1:
			cfg.MaximumBlockSize = value * bytesPerMegabyte
		case 2:
			cfg.MaximumBlockCount = value
		default:
			return Config{}, errors.Newf("allocator config has too many fields (%d), expected at most 3", len(fields))
		}
	}

	if cfg.MinimumBlockSize == 0 {
		cfg.MinimumBlockSize = DefaultConfig().MinimumBlockSize
	}

	return cfg, nil
}
