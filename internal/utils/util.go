package utils

import (
	"github.com/cockroachdb/errors"
)

// PowerOfTwoError is returned from CheckPow2 if the number being tested is not a power of two
var PowerOfTwoError = errors.New("number must be a power of two")

type Number interface {
	~int | ~uint | ~uint32 | ~uint64
}

// CheckPow2 returns a wrapped PowerOfTwoError if number is not zero and not a power of two
func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return errors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// AlignUp rounds value up to the next multiple of alignment, which must be a power of two.
// An alignment of 0 or 1 leaves value unchanged.
func AlignUp[T Number](value T, alignment T) T {
	if alignment <= 1 {
		return value
	}
	return (value + alignment - 1) & ^(alignment - 1)
}
