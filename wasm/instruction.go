package wasm

import (
	"errors"
	"fmt"

	"github.com/wippyai/lasr/wasm/internal/binary"
)

// ErrUnsupportedOpcode is returned for instructions the walker cannot size.
var ErrUnsupportedOpcode = errors.New("wasm: unsupported opcode")

// Instruction is one decoded instruction. Only the immediates callers need are
// kept; the rest are skipped over.
type Instruction struct {
	// Index is the first index immediate: call target, local or global
	// index, branch depth, type index.
	Index uint32

	// Const is the value of i32.const / i64.const.
	Const int64

	// Sub is the sub-opcode of prefixed instructions.
	Sub uint32

	// Size is the encoded length in bytes.
	Size int

	Opcode byte
}

// DirectCallTarget returns the callee of call and return_call.
func (i Instruction) DirectCallTarget() (uint32, bool) {
	if i.Opcode == OpCall || i.Opcode == OpReturnCall {
		return i.Index, true
	}
	return 0, false
}

// DecodeInstruction decodes the instruction at the front of code.
func DecodeInstruction(code []byte) (Instruction, error) {
	r := binary.NewReader(code)
	op, err := r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	ins := Instruction{Opcode: op}
	if err := decodeImmediates(r, &ins); err != nil {
		return Instruction{}, fmt.Errorf("opcode 0x%02x: %w", op, err)
	}
	ins.Size = r.Position()
	return ins, nil
}

// WalkInstructions decodes code front to back, calling fn for each
// instruction until fn returns false or the stream ends.
func WalkInstructions(code []byte, fn func(Instruction) bool) error {
	for pos := 0; pos < len(code); {
		ins, err := DecodeInstruction(code[pos:])
		if err != nil {
			return fmt.Errorf("at offset %d: %w", pos, err)
		}
		if !fn(ins) {
			return nil
		}
		pos += ins.Size
	}
	return nil
}

func decodeImmediates(r *binary.Reader, ins *Instruction) error {
	var err error
	switch op := ins.Opcode; {
	case op == OpBlock || op == OpLoop || op == OpIf || op == OpTry:
		return skipBlockType(r)

	case op == OpCatch || op == OpThrow || op == OpRethrow || op == OpBr || op == OpBrIf ||
		op == OpCall || op == OpReturnCall || op == OpCallRef || op == OpReturnCallRef ||
		op == OpDelegate || (op >= OpLocalGet && op <= OpTableSet) ||
		op == OpMemorySize || op == OpMemoryGrow || op == OpRefFunc ||
		op == OpBrOnNull || op == OpBrOnNonNull:
		ins.Index, err = r.ReadU32()
		return err

	case op == OpCallIndirect || op == OpReturnCallIndirect:
		if ins.Index, err = r.ReadU32(); err != nil {
			return err
		}
		_, err = r.ReadU32()
		return err

	case op == OpBrTable:
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i <= n; i++ {
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		}
		return nil

	case op == OpSelectType:
		n, err := r.ReadU32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if _, _, err := readValType(r); err != nil {
				return err
			}
		}
		return nil

	case op == OpTryTable:
		return skipTryTable(r)

	case op >= OpI32Load && op <= OpI64Store32:
		return skipMemArg(r)

	case op == OpI32Const:
		v, err := r.ReadS32()
		ins.Const = int64(v)
		return err
	case op == OpI64Const:
		ins.Const, err = r.ReadS64()
		return err
	case op == OpF32Const:
		return r.Skip(4)
	case op == OpF64Const:
		return r.Skip(8)

	case op == OpRefNull:
		_, err = r.ReadS33()
		return err

	case op == OpPrefixMisc:
		if ins.Sub, err = r.ReadU32(); err != nil {
			return err
		}
		return skipMisc(r, ins.Sub)
	case op == OpPrefixSIMD:
		if ins.Sub, err = r.ReadU32(); err != nil {
			return err
		}
		return skipSIMD(r, ins.Sub)
	case op == OpPrefixAtomic:
		if ins.Sub, err = r.ReadU32(); err != nil {
			return err
		}
		if ins.Sub == 0x03 { // atomic.fence
			_, err = r.ReadByte()
			return err
		}
		return skipMemArg(r)
	case op == OpPrefixGC:
		return ErrUnsupportedOpcode

	case op <= OpNop, op == OpElse, op == OpThrowRef, op == OpEnd, op == OpReturn,
		op == OpCatchAll, op == OpDrop, op == OpSelect,
		op >= 0x45 && op <= 0xC4, op == OpRefIsNull, op == OpRefAsNonNull, op == OpRefEq:
		return nil
	}
	return ErrUnsupportedOpcode
}

func skipBlockType(r *binary.Reader) error {
	rest := r.Remaining()
	if len(rest) == 0 {
		return errTruncated
	}
	if ValType(rest[0]) == ValRef || ValType(rest[0]) == ValRefNull {
		_, _, err := readValType(r)
		return err
	}
	// 0x40, a single-byte value type, or a type index.
	_, err := r.ReadS33()
	return err
}

func skipMemArg(r *binary.Reader) error {
	align, err := r.ReadU32()
	if err != nil {
		return err
	}
	if align&0x40 != 0 { // multi-memory index follows
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	_, err = r.ReadU64()
	return err
}

func skipTryTable(r *binary.Reader) error {
	if err := skipBlockType(r); err != nil {
		return err
	}
	n, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind == 0x00 || kind == 0x01 { // catch, catch_ref carry a tag
			if _, err := r.ReadU32(); err != nil {
				return err
			}
		}
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func skipMisc(r *binary.Reader, sub uint32) error {
	var n int
	switch {
	case sub <= 7:
		n = 0
	case sub == 8, sub == 10, sub == 12, sub == 14:
		n = 2
	case sub == 9, sub == 11, sub == 13, sub >= 15 && sub <= 17:
		n = 1
	default:
		return ErrUnsupportedOpcode
	}
	for i := 0; i < n; i++ {
		if _, err := r.ReadU32(); err != nil {
			return err
		}
	}
	return nil
}

func skipSIMD(r *binary.Reader, sub uint32) error {
	switch {
	case sub <= 11, sub == 92, sub == 93:
		return skipMemArg(r)
	case sub == 12, sub == 13: // v128.const, i8x16.shuffle
		return r.Skip(16)
	case sub >= 21 && sub <= 34:
		return r.Skip(1)
	case sub >= 84 && sub <= 91:
		if err := skipMemArg(r); err != nil {
			return err
		}
		return r.Skip(1)
	}
	return nil
}
