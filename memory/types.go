package memory

import (
	"strconv"
	"strings"

	"github.com/wippyai/lasr/errors"
)

// Kind is the decoded shape of a value.
type Kind int

const (
	KindSByte Kind = iota
	KindByte
	KindShort
	KindUShort
	KindInt
	KindUInt
	KindLong
	KindULong
	KindFloat
	KindDouble
	KindBool
	KindString
	KindBytes
)

var fixedKinds = map[string]Kind{
	"sbyte":  KindSByte,
	"byte":   KindByte,
	"short":  KindShort,
	"ushort": KindUShort,
	"int":    KindInt,
	"uint":   KindUInt,
	"long":   KindLong,
	"ulong":  KindULong,
	"float":  KindFloat,
	"double": KindDouble,
	"bool":   KindBool,
}

// Type is a parsed type tag. N is the element count of string and byte
// array types.
type Type struct {
	Kind Kind
	N    int
}

// ParseType parses a type tag: one of the fixed-size names, "stringN" with
// N >= 2, or "byteN" with N >= 1.
func ParseType(tag string) (Type, error) {
	if k, ok := fixedKinds[tag]; ok {
		return Type{Kind: k}, nil
	}
	if rest, ok := strings.CutPrefix(tag, "string"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 2 {
			return Type{}, invalidSize("string", tag)
		}
		return Type{Kind: KindString, N: n}, nil
	}
	if rest, ok := strings.CutPrefix(tag, "byte"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return Type{}, invalidSize("byte array", tag)
		}
		return Type{Kind: KindBytes, N: n}, nil
	}
	return Type{}, errors.New(errors.PhaseMemory, errors.KindInvalidType).
		Value(tag).Detail("invalid value type: %s", tag).Build()
}

func invalidSize(what, tag string) error {
	return errors.New(errors.PhaseMemory, errors.KindInvalidSize).
		Value(tag).Detail("invalid %s size: %s", what, tag).Build()
}

// SizeOf returns the byte size of a type tag.
func SizeOf(tag string) (int, error) {
	t, err := ParseType(tag)
	if err != nil {
		return 0, err
	}
	return t.Size(), nil
}

// Size returns the number of bytes a value of t occupies.
func (t Type) Size() int {
	switch t.Kind {
	case KindSByte, KindByte, KindBool:
		return 1
	case KindShort, KindUShort:
		return 2
	case KindInt, KindUInt, KindFloat:
		return 4
	case KindLong, KindULong, KindDouble:
		return 8
	}
	return t.N
}

func (t Type) String() string {
	switch t.Kind {
	case KindString:
		return "string" + strconv.Itoa(t.N)
	case KindBytes:
		return "byte" + strconv.Itoa(t.N)
	}
	for name, k := range fixedKinds {
		if k == t.Kind {
			return name
		}
	}
	return "unknown"
}
