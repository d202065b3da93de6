package utils

import (
	"golang.org/x/exp/constraints"
)

// Returns an all ones bitmask of n bits of the given unsigned integer type
func AllOnes[T constraints.Unsigned](bits int) T {
	return (T(1) << bits) - T(1)
}

// Implements a read only view over an unsigned integer, for extracting bit fields of encoded words
type BitView[T constraints.Unsigned] struct {
	Bits T
}

// Returns the viewed unsigned int value
func (v BitView[T]) Value() T {
	return v.Bits
}

// Extracts a range of bits given a first bit and a width
func (v BitView[T]) Read(bit int, width int) T {
	mask := AllOnes[T](width)
	return (v.Value() >> bit) & mask
}

// Returns bit n as 0 or 1
func (v BitView[T]) Bit(bit int) T {
	return v.Read(bit, 1)
}

// Creates a bit view out of an unsigned int
func CreateBitView[T constraints.Unsigned](value T) BitView[T] {
	return BitView[T]{
		Bits: value,
	}
}

// Sign extends the lowest n bits of value to a signed 32 bit integer
func SignExtend(value uint32, bits int) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}
