// Package util contains small generic helpers shared by the memory,
// capability and IPC layers. Adapted from biscuit's util package: the
// integer helpers are kept, and alignment helpers used throughout the page
// allocator and VMA code are added.
package util

import "unsafe"

// Int is satisfied by every built-in integer type.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b. b must be a power of
// two; callers that need arbitrary moduli should use plain '%'.
func Rounddown[T Int](v, b T) T {
	return v &^ (b - 1)
}

// Roundup aligns v up to the nearest multiple of b. b must be a power of two.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}

// Aligned reports whether v is a multiple of b. b must be a power of two.
func Aligned[T Int](v, b T) bool {
	return v&(b-1) == 0
}

// Readn reads n bytes from a starting at off and returns the value as an
// int. It panics if the requested region is out of bounds or n is
// unsupported; a type this low-level has no recoverable error path.
func Readn(a []uint8, n int, off int) int {
	if off < 0 || off+n > len(a) {
		panic("Readn out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	switch n {
		case 8:
		return *(*int)(p)
		case 4:
		return int(*(*uint32)(p))
		case 2:
		return int(*(*uint16)(p))
		case 1:
		return int(*(*uint8)(p))
		default:
		panic("unsupported size")
	}
}

// Writen writes val using sz bytes into a starting at off.
func Writen(a []uint8, sz int, off int, val int) {
	if off < 0 || off+sz > len(a) {
		panic("Writen out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	switch sz {
		case 8:
		*(*int)(p) = val
		case 4:
		*(*uint32)(p) = uint32(val)
		case 2:
		*(*uint16)(p) = uint16(val)
		case 1:
		*(*uint8)(p) = uint8(val)
		default:
		panic("unsupported size")
	}
}
