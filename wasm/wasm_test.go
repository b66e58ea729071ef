package wasm

import (
	"bytes"
	"errors"
	"testing"
)

func u64(v uint64) *uint64 { return &v }

func sampleModule() *Module {
	return &Module{
		Types: []FuncType{
			{Params: []ValType{ValI32}},
			{Results: []ValType{ValI32}},
		},
		Imports: []Import{
			{Module: "env", Name: "log", Kind: KindFunc, TypeIdx: 0},
		},
		Funcs:    []uint32{0, 1},
		Memories: []MemoryType{{Limits: Limits{Min: 1, Max: u64(4)}}},
		Exports: []Export{
			{Name: "memory", Kind: KindMemory, Idx: 0},
			{Name: "run", Kind: KindFunc, Idx: 1},
		},
		Code: []FuncBody{
			{Code: []byte{OpLocalGet, 0x00, OpCall, 0x00, OpEnd}},
			{Locals: []LocalEntry{{Count: 2, ValType: ValI64}}, Code: []byte{OpI32Const, 0x2a, OpEnd}},
		},
		Data: []DataSegment{
			{Flags: DataActive, Offset: I32ConstExpr(16), Init: []byte("hello")},
		},
	}
}

func TestSectionsRoundTrip(t *testing.T) {
	bin := sampleModule().Encode()

	sections, err := ReadSections(bin)
	if err != nil {
		t.Fatalf("ReadSections: %v", err)
	}
	var ids []byte
	for _, s := range sections {
		ids = append(ids, s.ID)
	}
	want := []byte{SectionType, SectionImport, SectionFunction, SectionMemory, SectionExport, SectionCode, SectionData}
	if !bytes.Equal(ids, want) {
		t.Errorf("section ids = %v, want %v", ids, want)
	}

	if out := AssembleSections(sections); !bytes.Equal(out, bin) {
		t.Error("assembled module differs from input")
	}
}

func TestReadSectionsBadHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"wrong magic", []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}},
		{"wrong version", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSections(tt.data); !errors.Is(err, ErrBadHeader) {
				t.Errorf("got %v, want ErrBadHeader", err)
			}
		})
	}
}

func TestReadSectionsTruncated(t *testing.T) {
	bin := sampleModule().Encode()
	if _, err := ReadSections(bin[:len(bin)-3]); err == nil {
		t.Fatal("expected error for truncated section")
	}
}

func TestDecodeSections(t *testing.T) {
	sections, err := ReadSections(sampleModule().Encode())
	if err != nil {
		t.Fatalf("ReadSections: %v", err)
	}
	byID := map[byte][]byte{}
	for _, s := range sections {
		byID[s.ID] = s.Data
	}

	types, err := DecodeTypes(byID[SectionType])
	if err != nil {
		t.Fatalf("DecodeTypes: %v", err)
	}
	if len(types) != 2 || !types[0].Equal(FuncType{Params: []ValType{ValI32}}) {
		t.Errorf("types = %+v", types)
	}

	imports, err := DecodeImports(byID[SectionImport])
	if err != nil {
		t.Fatalf("DecodeImports: %v", err)
	}
	if len(imports) != 1 || imports[0].Kind != KindFunc || imports[0].Name != "log" {
		t.Errorf("imports = %+v", imports)
	}

	mems, err := DecodeMemories(byID[SectionMemory])
	if err != nil {
		t.Fatalf("DecodeMemories: %v", err)
	}
	if len(mems) != 1 || mems[0].Limits.Min != 1 || mems[0].Limits.Max == nil || *mems[0].Limits.Max != 4 {
		t.Errorf("memories = %+v", mems)
	}

	exports, err := DecodeExports(byID[SectionExport])
	if err != nil {
		t.Fatalf("DecodeExports: %v", err)
	}
	if len(exports) != 2 || exports[1].Name != "run" || exports[1].Idx != 1 {
		t.Errorf("exports = %+v", exports)
	}

	bodies, err := DecodeCode(byID[SectionCode])
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	if len(bodies) != 2 {
		t.Fatalf("got %d bodies", len(bodies))
	}
	fb, err := DecodeBody(bodies[1])
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if len(fb.Locals) != 1 || fb.Locals[0].Count != 2 || !bytes.Equal(fb.Code, []byte{OpI32Const, 0x2a, OpEnd}) {
		t.Errorf("body = %+v", fb)
	}

	segs, err := DecodeData(byID[SectionData])
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if len(segs) != 1 || string(segs[0].Init) != "hello" {
		t.Fatalf("segments = %+v", segs)
	}
	off, ok := ConstI32(segs[0].Offset)
	if !ok || off != 16 {
		t.Errorf("offset = %d, %v", off, ok)
	}
	if !bytes.Equal(EncodeDataSegment(segs[0]), segs[0].Raw) {
		t.Error("raw segment not preserved")
	}
}

func TestDecodeTypesGC(t *testing.T) {
	// one rec group containing a struct
	data := []byte{0x01, RecTypeByte, 0x01, StructTypeByte, 0x00}
	if _, err := DecodeTypes(data); !errors.Is(err, ErrGCTypes) {
		t.Errorf("got %v, want ErrGCTypes", err)
	}
}

func TestLimitsFlags(t *testing.T) {
	tests := []struct {
		name string
		lim  Limits
	}{
		{"min only", Limits{Min: 2}},
		{"min max", Limits{Min: 1, Max: u64(3)}},
		{"shared", Limits{Min: 1, Max: u64(1), Shared: true}},
		{"memory64", Limits{Min: 1 << 33, Memory64: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := EncodeMemorySection(MemoryType{Limits: tt.lim})
			mems, err := DecodeMemories(data)
			if err != nil {
				t.Fatalf("DecodeMemories: %v", err)
			}
			got := mems[0].Limits
			if got.Min != tt.lim.Min || got.Shared != tt.lim.Shared || got.Memory64 != tt.lim.Memory64 {
				t.Errorf("got %+v, want %+v", got, tt.lim)
			}
			if (got.Max == nil) != (tt.lim.Max == nil) {
				t.Errorf("max presence mismatch")
			}
		})
	}
}

func TestDecodePassiveSegment(t *testing.T) {
	m := &Module{Data: []DataSegment{{Flags: DataPassive, Init: []byte{1, 2}}}}
	sections, err := ReadSections(m.Encode())
	if err != nil {
		t.Fatalf("ReadSections: %v", err)
	}
	segs, err := DecodeData(sections[0].Data)
	if err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if segs[0].Flags != DataPassive || segs[0].Offset != nil {
		t.Errorf("segment = %+v", segs[0])
	}
}

func TestConstI32(t *testing.T) {
	tests := []struct {
		name string
		expr []byte
		want int32
		ok   bool
	}{
		{"const", I32ConstExpr(1024), 1024, true},
		{"negative", I32ConstExpr(-5), -5, true},
		{"global", []byte{OpGlobalGet, 0x00, OpEnd}, 0, false},
		{"extended", []byte{OpI32Const, 0x01, OpI32Const, 0x02, OpI32Add, OpEnd}, 0, false},
		{"no end", []byte{OpI32Const, 0x01}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ConstI32(tt.expr)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ConstI32 = %d, %v; want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestWalkInstructions(t *testing.T) {
	code := []byte{
		OpBlock, 0x40,
		OpI32Const, 0x80, 0x01, // 128
		OpI32Load, 0x02, 0x08,
		OpBrTable, 0x02, 0x00, 0x01, 0x00,
		OpCallIndirect, 0x01, 0x00,
		OpPrefixMisc, 0x0a, 0x00, 0x00, // memory.copy
		OpPrefixSIMD, 0x0c, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, // v128.const
		OpPrefixAtomic, 0x03, 0x00, // atomic.fence
		OpF64Const, 0, 0, 0, 0, 0, 0, 0, 0,
		OpSelectType, 0x01, byte(ValI32),
		OpEnd,
		OpCall, 0x05,
		OpReturnCall, 0x06,
		OpEnd,
	}
	var ops []byte
	var calls []uint32
	err := WalkInstructions(code, func(ins Instruction) bool {
		ops = append(ops, ins.Opcode)
		if target, ok := ins.DirectCallTarget(); ok {
			calls = append(calls, target)
		}
		return true
	})
	if err != nil {
		t.Fatalf("WalkInstructions: %v", err)
	}
	wantOps := []byte{OpBlock, OpI32Const, OpI32Load, OpBrTable, OpCallIndirect, OpPrefixMisc,
		OpPrefixSIMD, OpPrefixAtomic, OpF64Const, OpSelectType, OpEnd, OpCall, OpReturnCall, OpEnd}
	if !bytes.Equal(ops, wantOps) {
		t.Errorf("opcodes = %x, want %x", ops, wantOps)
	}
	if len(calls) != 2 || calls[0] != 5 || calls[1] != 6 {
		t.Errorf("calls = %v", calls)
	}
}

func TestWalkInstructionsStops(t *testing.T) {
	code := []byte{OpCall, 0x01, OpCall, 0x02, OpEnd}
	n := 0
	if err := WalkInstructions(code, func(Instruction) bool { n++; return false }); err != nil {
		t.Fatalf("WalkInstructions: %v", err)
	}
	if n != 1 {
		t.Errorf("visited %d instructions, want 1", n)
	}
}

func TestDecodeInstructionErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"truncated immediate", []byte{OpCall}},
		{"gc prefix", []byte{OpPrefixGC, 0x00}},
		{"unknown misc", []byte{OpPrefixMisc, 0x40}},
		{"reserved opcode", []byte{0x27}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeInstruction(tt.code); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLEB128(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 63, 64, -64, -65, 1<<31 - 1, -1 << 31} {
		got, n, err := DecodeLEB128s(EncodeLEB128s(v))
		if err != nil || got != v || n != len(EncodeLEB128s(v)) {
			t.Errorf("signed %d: got %d (n=%d, err=%v)", v, got, n, err)
		}
	}
	for _, v := range []uint32{0, 127, 128, 1 << 20, 1<<32 - 1} {
		got, _, err := DecodeLEB128u(EncodeLEB128u(v))
		if err != nil || got != v {
			t.Errorf("unsigned %d: got %d (err=%v)", v, got, err)
		}
	}
}
