package binary

import "errors"

// ErrOverflow is returned when a LEB128 value exceeds the maximum size.
var ErrOverflow = errors.New("leb128: overflow")

// ErrTruncated is returned when input ends inside a value.
var ErrTruncated = errors.New("leb128: truncated")

// AppendU64 appends the unsigned LEB128 encoding of v.
func AppendU64(dst []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if v == 0 {
			return dst
		}
	}
}

// AppendS64 appends the signed LEB128 encoding of v.
func AppendS64(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}

// DecodeU64 decodes an unsigned value of at most bits width from the front of
// data and returns it with the number of bytes consumed.
func DecodeU64(data []byte, bits uint) (uint64, int, error) {
	var result uint64
	var shift uint
	limit := int((bits + 6) / 7)
	for i, b := range data {
		if i >= limit {
			return 0, 0, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if bits < 64 && result>>bits != 0 {
				return 0, 0, ErrOverflow
			}
			if bits == 64 && i == limit-1 && b > 1 {
				return 0, 0, ErrOverflow
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}

// DecodeS64 decodes a signed value of at most bits width from the front of data.
func DecodeS64(data []byte, bits uint) (int64, int, error) {
	var result int64
	var shift uint
	limit := int((bits + 6) / 7)
	for i, b := range data {
		if i >= limit {
			return 0, 0, ErrOverflow
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= ^int64(0) << shift
			}
			if bits < 64 {
				lo, hi := -(int64(1) << (bits - 1)), int64(1)<<(bits-1)-1
				if result < lo || result > hi {
					return 0, 0, ErrOverflow
				}
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}
