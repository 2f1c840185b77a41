package memutils

import (
	"github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint
}

// CheckPow2 returns an error unless number is a power of two. Used to validate
// alignment arguments before they're used in AlignUp/AlignDown bit tricks.
func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return errors.Wrapf(ErrPowerOfTwo, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the nearest multiple of alignment. alignment must be a power of two.
func AlignUp(value int, alignment uint) int {
	if alignment == 0 {
		return value
	}
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

// AlignDown rounds value down to the nearest multiple of alignment. alignment must be a power of two.
func AlignDown(value int, alignment uint) int {
	if alignment == 0 {
		return value
	}
	return value & int(^(alignment - 1))
}
