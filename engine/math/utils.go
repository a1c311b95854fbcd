package math

import "golang.org/x/exp/constraints"

func Clamp[T constraints.Ordered](v, low, high T) T {
	return max(low, min(v, high))
}

// Align rounds v up to the next multiple of alignment, which must be a power of two.
func Align[T constraints.Integer](v, alignment T) T {
	return (v + alignment - 1) &^ (alignment - 1)
}
