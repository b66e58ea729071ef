package wasm

import (
	"github.com/wippyai/lasr/wasm/internal/binary"
)

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	return AssembleSections(m.Sections())
}

// Sections encodes each non-empty part of the module as a raw section in
// canonical order.
func (m *Module) Sections() []Section {
	var out []Section
	add := func(id byte, w *binary.Writer) {
		out = append(out, Section{ID: id, Data: w.Bytes()})
	}

	if len(m.Types) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.Byte(FuncTypeByte)
			writeValTypes(sec, ft.Params)
			writeValTypes(sec, ft.Results)
		}
		add(SectionType, sec)
	}

	if len(m.Imports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.WriteName(imp.Module)
			sec.WriteName(imp.Name)
			sec.Byte(imp.Kind)
			switch imp.Kind {
			case KindFunc:
				sec.WriteU32(imp.TypeIdx)
			case KindMemory:
				writeLimits(sec, imp.Memory.Limits)
			}
		}
		add(SectionImport, sec)
	}

	if len(m.Funcs) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.WriteU32(typeIdx)
		}
		add(SectionFunction, sec)
	}

	if len(m.Memories) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			writeLimits(sec, mem.Limits)
		}
		add(SectionMemory, sec)
	}

	if len(m.Exports) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.WriteName(exp.Name)
			sec.Byte(exp.Kind)
			sec.WriteU32(exp.Idx)
		}
		add(SectionExport, sec)
	}

	if m.DataCount != nil {
		sec := binary.NewWriter()
		sec.WriteU32(*m.DataCount)
		add(SectionDataCount, sec)
	}

	if len(m.Code) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Code)))
		for _, body := range m.Code {
			sec.WriteSized(EncodeBody(body))
		}
		add(SectionCode, sec)
	}

	if len(m.Data) > 0 {
		sec := binary.NewWriter()
		sec.WriteU32(uint32(len(m.Data)))
		for _, seg := range m.Data {
			sec.WriteBytes(EncodeDataSegment(seg))
		}
		add(SectionData, sec)
	}

	return out
}

// EncodeBody encodes a function body without its size prefix.
func EncodeBody(body FuncBody) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(body.Locals)))
	for _, l := range body.Locals {
		w.WriteU32(l.Count)
		w.Byte(byte(l.ValType))
		if l.ValType == ValRef || l.ValType == ValRefNull {
			w.WriteS64(l.HeapType)
		}
	}
	w.WriteBytes(body.Code)
	return w.Bytes()
}

// EncodeDataSegment encodes one data segment. Raw, when set, wins.
func EncodeDataSegment(seg DataSegment) []byte {
	if seg.Raw != nil {
		return seg.Raw
	}
	w := binary.NewWriter()
	w.WriteU32(seg.Flags)
	switch seg.Flags {
	case DataActive:
		w.WriteBytes(seg.Offset)
	case DataActiveExplicit:
		w.WriteU32(seg.MemIdx)
		w.WriteBytes(seg.Offset)
	}
	w.WriteSized(seg.Init)
	return w.Bytes()
}

// EncodeMemorySection encodes a memory section holding the given memories.
func EncodeMemorySection(mems ...MemoryType) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(mems)))
	for _, m := range mems {
		writeLimits(w, m.Limits)
	}
	return w.Bytes()
}

// EncodeExportSection encodes an export section.
func EncodeExportSection(exports []Export) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(exports)))
	for _, e := range exports {
		w.WriteName(e.Name)
		w.Byte(e.Kind)
		w.WriteU32(e.Idx)
	}
	return w.Bytes()
}

// EncodeVector encodes a count-prefixed vector of pre-encoded items. When
// sized is set each item carries its own length prefix (code bodies).
func EncodeVector(items [][]byte, sized bool) []byte {
	w := binary.NewWriter()
	w.WriteU32(uint32(len(items)))
	for _, it := range items {
		if sized {
			w.WriteSized(it)
		} else {
			w.WriteBytes(it)
		}
	}
	return w.Bytes()
}

// I32ConstExpr encodes i32.const v; end.
func I32ConstExpr(v int32) []byte {
	return append(AppendS32([]byte{OpI32Const}, v), OpEnd)
}

func writeValTypes(w *binary.Writer, types []ValType) {
	w.WriteU32(uint32(len(types)))
	for _, t := range types {
		w.Byte(byte(t))
	}
}

func writeLimits(w *binary.Writer, lim Limits) {
	var flags byte
	if lim.Max != nil {
		flags |= LimitsHasMax
	}
	if lim.Shared {
		flags |= LimitsShared
	}
	if lim.Memory64 {
		flags |= LimitsMemory64
	}
	if lim.PageSizeLog2 != nil {
		flags |= LimitsPageSize
	}
	w.Byte(flags)
	if lim.Memory64 {
		w.WriteU64(lim.Min)
		if lim.Max != nil {
			w.WriteU64(*lim.Max)
		}
	} else {
		w.WriteU32(uint32(lim.Min))
		if lim.Max != nil {
			w.WriteU32(uint32(*lim.Max))
		}
	}
	if lim.PageSizeLog2 != nil {
		w.WriteU32(*lim.PageSizeLog2)
	}
}
