package common

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// Coalesce returns the first argument that is not the zero value of T, or the zero value.
// Settings use it to fall back from an unset field to its default.
//
// Parameters:
//   - values: candidates in priority order
//
// Returns:
//   - T: the first non-zero candidate
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// SliceToBytes views a slice of fixed-size values as bytes for a GPU upload.
// The result aliases data and must not outlive or mutate it.
//
// Parameters:
//   - data: the source slice
//
// Returns:
//   - []byte: a byte view of data, or nil when data is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(unsafe.Sizeof(zero))*len(data))
}

// Float32sFromBytes decodes little-endian float32 values from a GPU readback.
// Trailing bytes that do not form a whole value are ignored.
//
// Parameters:
//   - b: the raw bytes
//
// Returns:
//   - []float32: the decoded values
func Float32sFromBytes(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
