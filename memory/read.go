package memory

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/wippyai/lasr/errors"
)

// Read reads a value of type t at addr. The result is int64 for signed and
// narrow unsigned integers, uint64 for ulong, float64 for float and double,
// bool, string, or []byte for byte arrays. Multi-byte values are
// little-endian.
func Read(r Reader, addr uint64, t Type) (any, error) {
	buf := make([]byte, t.Size())
	if err := r.Read(addr, buf); err != nil {
		return nil, err
	}
	return Decode(t, buf)
}

// Decode interprets raw bytes as a value of type t.
func Decode(t Type, raw []byte) (any, error) {
	if len(raw) < t.Size() {
		return nil, errors.New(errors.PhaseMemory, errors.KindInvalidData).
			Detail("%s needs %d bytes, got %d", t, t.Size(), len(raw)).Build()
	}
	le := binary.LittleEndian
	switch t.Kind {
	case KindSByte:
		return int64(int8(raw[0])), nil
	case KindByte:
		return int64(raw[0]), nil
	case KindShort:
		return int64(int16(le.Uint16(raw))), nil
	case KindUShort:
		return int64(le.Uint16(raw)), nil
	case KindInt:
		return int64(int32(le.Uint32(raw))), nil
	case KindUInt:
		return int64(le.Uint32(raw)), nil
	case KindLong:
		return int64(le.Uint64(raw)), nil
	case KindULong:
		return le.Uint64(raw), nil
	case KindFloat:
		return float64(math.Float32frombits(le.Uint32(raw))), nil
	case KindDouble:
		return math.Float64frombits(le.Uint64(raw)), nil
	case KindBool:
		return raw[0] != 0, nil
	case KindString:
		s := raw[:t.N]
		if i := bytes.IndexByte(s, 0); i >= 0 {
			s = s[:i]
		}
		if !utf8.Valid(s) {
			return nil, errors.New(errors.PhaseMemory, errors.KindInvalidData).
				Detail("%s is not valid UTF-8", t).Build()
		}
		return string(s), nil
	case KindBytes:
		out := make([]byte, t.N)
		copy(out, raw)
		return out, nil
	}
	return nil, errors.New(errors.PhaseMemory, errors.KindInvalidType).Detail("unknown kind %d", t.Kind).Build()
}
