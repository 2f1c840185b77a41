package memutils_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vkblock/balloc/memutils"
)

func TestParseConfigEmptyReturnsDefaults(t *testing.T) {
	cfg, err := memutils.ParseConfig("")
	require.NoError(t, err)
	require.Equal(t, memutils.DefaultConfig(), cfg)
}

func TestParseConfigColonDelimited(t *testing.T) {
	cfg, err := memutils.ParseConfig("16:64:4")
	require.NoError(t, err)
	require.Equal(t, 16*1024*1024, cfg.MinimumBlockSize)
	require.Equal(t, 64*1024*1024, cfg.MaximumBlockSize)
	require.Equal(t, 4, cfg.MaximumBlockCount)
}

func TestParseConfigSemicolonDelimited(t *testing.T) {
	cfg, err := memutils.ParseConfig("8;0;2")
	require.NoError(t, err)
	require.Equal(t, 8*1024*1024, cfg.MinimumBlockSize)
	require.Equal(t, 0, cfg.MaximumBlockSize)
	require.Equal(t, 2, cfg.MaximumBlockCount)
}

func TestParseConfigZeroMinimumRestoresDefault(t *testing.T) {
	cfg, err := memutils.ParseConfig("0:0:0")
	require.NoError(t, err)
	require.Equal(t, memutils.DefaultConfig().MinimumBlockSize, cfg.MinimumBlockSize)
}

func TestParseConfigRejectsNegative(t *testing.T) {
	_, err := memutils.ParseConfig("-1:0:0")
	require.Error(t, err)
}

func TestParseConfigRejectsTooManyFields(t *testing.T) {
	_, err := memutils.ParseConfig("1:2:3:4")
	require.Error(t, err)
}

func TestParseConfigRejectsNonInteger(t *testing.T) {
	_, err := memutils.ParseConfig("abc")
	require.Error(t, err)
}
