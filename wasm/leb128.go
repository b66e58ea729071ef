package wasm

import (
	"github.com/wippyai/lasr/wasm/internal/binary"
)

// ErrOverflow is returned when a LEB128 value exceeds the maximum bit width.
var ErrOverflow = binary.ErrOverflow

// AppendU32 appends the unsigned LEB128 encoding of v to dst.
func AppendU32(dst []byte, v uint32) []byte {
	return binary.AppendU64(dst, uint64(v))
}

// AppendS32 appends the signed LEB128 encoding of v to dst.
func AppendS32(dst []byte, v int32) []byte {
	return binary.AppendS64(dst, int64(v))
}

// EncodeLEB128u encodes an unsigned 32-bit LEB128 value to bytes.
func EncodeLEB128u(v uint32) []byte {
	return AppendU32(nil, v)
}

// EncodeLEB128s encodes a signed 32-bit LEB128 value to bytes.
func EncodeLEB128s(v int32) []byte {
	return AppendS32(nil, v)
}

// DecodeLEB128u decodes an unsigned 32-bit value from the front of data and
// reports how many bytes it used.
func DecodeLEB128u(data []byte) (uint32, int, error) {
	v, n, err := binary.DecodeU64(data, 32)
	return uint32(v), n, err
}

// DecodeLEB128s decodes a signed 32-bit value from the front of data.
func DecodeLEB128s(data []byte) (int32, int, error) {
	v, n, err := binary.DecodeS64(data, 32)
	return int32(v), n, err
}
