package memutils

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

type Number interface {
	~int | ~uint | ~uintptr
}

// AlignUp rounds value up to a multiple of alignment, which must be a power of two
func AlignUp(value int, alignment uint) int {
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// IsAligned reports whether value is a multiple of alignment, which must be a power of two
func IsAligned[T Number](value T, alignment T) bool {
	return value&(alignment-1) == 0
}

// CheckedMul multiplies two non-negative geometry values and fails if the product does not fit in
// 32 bits, which is the width of every geometry field the driver accepts
func CheckedMul[T constraints.Integer](a, b T) (T, error) {
	if a < 0 || b < 0 {
		return 0, cerrors.Wrapf(OverflowError, "negative operand in %d * %d", a, b)
	}
	if a != 0 && uint64(b) > math.MaxUint32/uint64(a) {
		return 0, cerrors.Wrapf(OverflowError, "%d * %d", a, b)
	}
	return a * b, nil
}

// CheckedAdd adds two non-negative geometry values and fails if the sum does not fit in 32 bits
func CheckedAdd[T constraints.Integer](a, b T) (T, error) {
	if a < 0 || b < 0 {
		return 0, cerrors.Wrapf(OverflowError, "negative operand in %d + %d", a, b)
	}
	if uint64(a)+uint64(b) > math.MaxUint32 {
		return 0, cerrors.Wrapf(OverflowError, "%d + %d", a, b)
	}
	return a + b, nil
}
