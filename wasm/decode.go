package wasm

import (
	"errors"
	"fmt"
	"io"

	"github.com/wippyai/lasr/wasm/internal/binary"
)

// ErrGCTypes is returned by DecodeTypes when the type section uses GC forms
// (rec groups, subtypes, structs, arrays).
var ErrGCTypes = errors.New("wasm: type section uses GC type forms")

var errTruncated = io.ErrUnexpectedEOF

// DecodeTypes decodes a type section holding only function types.
func DecodeTypes(data []byte) ([]FuncType, error) {
	r := binary.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("type", err)
	}
	types := make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError("type", err)
		}
		if form != FuncTypeByte {
			return nil, ErrGCTypes
		}
		params, err := readValTypes(r)
		if err != nil {
			return nil, r.WrapError("type", err)
		}
		results, err := readValTypes(r)
		if err != nil {
			return nil, r.WrapError("type", err)
		}
		types = append(types, FuncType{Params: params, Results: results})
	}
	return types, nil
}

// DecodeImports decodes an import section.
func DecodeImports(data []byte) ([]Import, error) {
	r := binary.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("import", err)
	}
	imports := make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		imp, err := readImport(r)
		if err != nil {
			return nil, r.WrapError("import", err)
		}
		imports = append(imports, imp)
	}
	return imports, nil
}

func readImport(r *binary.Reader) (Import, error) {
	var imp Import
	var err error
	if imp.Module, err = r.ReadName(); err != nil {
		return imp, err
	}
	if imp.Name, err = r.ReadName(); err != nil {
		return imp, err
	}
	if imp.Kind, err = r.ReadByte(); err != nil {
		return imp, err
	}
	switch imp.Kind {
	case KindFunc:
		imp.TypeIdx, err = r.ReadU32()
	case KindTable:
		if _, _, err = readValType(r); err == nil {
			_, err = readLimits(r)
		}
	case KindMemory:
		var lim Limits
		if lim, err = readLimits(r); err == nil {
			imp.Memory = &MemoryType{Limits: lim}
		}
	case KindGlobal:
		if _, _, err = readValType(r); err == nil {
			_, err = r.ReadByte()
		}
	case KindTag:
		if _, err = r.ReadByte(); err == nil {
			_, err = r.ReadU32()
		}
	default:
		err = fmt.Errorf("unknown import kind 0x%02x", imp.Kind)
	}
	return imp, err
}

// DecodeFunctions decodes a function section into type indices.
func DecodeFunctions(data []byte) ([]uint32, error) {
	r := binary.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("function", err)
	}
	funcs := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("function", err)
		}
		funcs = append(funcs, idx)
	}
	return funcs, nil
}

// DecodeMemories decodes a memory section.
func DecodeMemories(data []byte) ([]MemoryType, error) {
	r := binary.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("memory", err)
	}
	mems := make([]MemoryType, 0, count)
	for i := uint32(0); i < count; i++ {
		lim, err := readLimits(r)
		if err != nil {
			return nil, r.WrapError("memory", err)
		}
		mems = append(mems, MemoryType{Limits: lim})
	}
	return mems, nil
}

// DecodeExports decodes an export section.
func DecodeExports(data []byte) ([]Export, error) {
	r := binary.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("export", err)
	}
	exports := make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		var e Export
		if e.Name, err = r.ReadName(); err != nil {
			return nil, r.WrapError("export", err)
		}
		if e.Kind, err = r.ReadByte(); err != nil {
			return nil, r.WrapError("export", err)
		}
		if e.Idx, err = r.ReadU32(); err != nil {
			return nil, r.WrapError("export", err)
		}
		exports = append(exports, e)
	}
	return exports, nil
}

// DecodeCode splits a code section into raw function bodies (without their
// size prefixes). Bodies alias data.
func DecodeCode(data []byte) ([][]byte, error) {
	r := binary.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("code", err)
	}
	bodies := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("code", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("code", err)
		}
		bodies = append(bodies, body)
	}
	return bodies, nil
}

// DecodeBody separates a raw function body into its local declarations and
// instruction stream.
func DecodeBody(body []byte) (FuncBody, error) {
	r := binary.NewReader(body)
	count, err := r.ReadU32()
	if err != nil {
		return FuncBody{}, r.WrapError("code", err)
	}
	var fb FuncBody
	for i := uint32(0); i < count; i++ {
		n, err := r.ReadU32()
		if err != nil {
			return FuncBody{}, r.WrapError("code", err)
		}
		vt, heap, err := readValType(r)
		if err != nil {
			return FuncBody{}, r.WrapError("code", err)
		}
		fb.Locals = append(fb.Locals, LocalEntry{Count: n, ValType: vt, HeapType: heap})
	}
	fb.Code = r.ReadRemaining()
	return fb, nil
}

// DecodeData decodes a data section. Every segment keeps its raw encoding.
func DecodeData(data []byte) ([]DataSegment, error) {
	r := binary.NewReader(data)
	count, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("data", err)
	}
	segs := make([]DataSegment, 0, count)
	for i := uint32(0); i < count; i++ {
		start := r.Position()
		seg, err := readDataSegment(r)
		if err != nil {
			return nil, r.WrapError("data", err)
		}
		seg.Raw = data[start:r.Position():r.Position()]
		segs = append(segs, seg)
	}
	return segs, nil
}

func readDataSegment(r *binary.Reader) (DataSegment, error) {
	var seg DataSegment
	var err error
	if seg.Flags, err = r.ReadU32(); err != nil {
		return seg, err
	}
	switch seg.Flags {
	case DataActive:
		seg.Offset, err = readConstExpr(r)
	case DataPassive:
	case DataActiveExplicit:
		if seg.MemIdx, err = r.ReadU32(); err == nil {
			seg.Offset, err = readConstExpr(r)
		}
	default:
		err = fmt.Errorf("invalid data segment flags %d", seg.Flags)
	}
	if err != nil {
		return seg, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return seg, err
	}
	seg.Init, err = r.ReadBytes(int(n))
	return seg, err
}

// DecodeDataCount decodes a data count section.
func DecodeDataCount(data []byte) (uint32, error) {
	r := binary.NewReader(data)
	n, err := r.ReadU32()
	if err != nil {
		return 0, r.WrapError("datacount", err)
	}
	return n, nil
}

// ConstI32 returns the value of a constant expression of the exact form
// i32.const N; end.
func ConstI32(expr []byte) (int32, bool) {
	ins, err := DecodeInstruction(expr)
	if err != nil || ins.Opcode != OpI32Const {
		return 0, false
	}
	if len(expr) != ins.Size+1 || expr[ins.Size] != OpEnd {
		return 0, false
	}
	return int32(ins.Const), true
}

// readConstExpr returns a constant expression including its end opcode.
func readConstExpr(r *binary.Reader) ([]byte, error) {
	rest := r.Remaining()
	pos := 0
	for {
		ins, err := DecodeInstruction(rest[pos:])
		if err != nil {
			return nil, err
		}
		pos += ins.Size
		if ins.Opcode == OpEnd {
			return r.ReadBytes(pos)
		}
	}
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]ValType, 0, n)
	for i := uint32(0); i < n; i++ {
		vt, _, err := readValType(r)
		if err != nil {
			return nil, err
		}
		out = append(out, vt)
	}
	return out, nil
}

func readValType(r *binary.Reader) (ValType, int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	vt := ValType(b)
	if vt == ValRef || vt == ValRefNull {
		heap, err := r.ReadS33()
		return vt, heap, err
	}
	return vt, 0, nil
}

func readLimits(r *binary.Reader) (Limits, error) {
	var lim Limits
	flags, err := r.ReadByte()
	if err != nil {
		return lim, err
	}
	if flags&^(LimitsHasMax|LimitsShared|LimitsMemory64|LimitsPageSize) != 0 {
		return lim, fmt.Errorf("invalid limits flags 0x%02x", flags)
	}
	lim.Shared = flags&LimitsShared != 0
	lim.Memory64 = flags&LimitsMemory64 != 0

	read := func() (uint64, error) {
		if lim.Memory64 {
			return r.ReadU64()
		}
		v, err := r.ReadU32()
		return uint64(v), err
	}
	if lim.Min, err = read(); err != nil {
		return lim, err
	}
	if flags&LimitsHasMax != 0 {
		hi, err := read()
		if err != nil {
			return lim, err
		}
		if hi < lim.Min {
			return lim, fmt.Errorf("limits max %d below min %d", hi, lim.Min)
		}
		lim.Max = &hi
	}
	if flags&LimitsPageSize != 0 {
		log2, err := r.ReadU32()
		if err != nil {
			return lim, err
		}
		lim.PageSizeLog2 = &log2
	}
	return lim, nil
}
