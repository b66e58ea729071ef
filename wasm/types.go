package wasm

// Module is the subset of a module the encoder can emit. It is used to build
// shells, sandboxes and fixtures; parsed modules stay as raw sections.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32
	Memories []MemoryType
	Exports  []Export
	Code     []FuncBody
	Data     []DataSegment

	// DataCount, when set, emits a data count section.
	DataCount *uint32
}

// FuncType represents a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Equal reports whether two signatures are identical.
func (f FuncType) Equal(o FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != o.Results[i] {
			return false
		}
	}
	return true
}

// Import is an import entry. Only function and memory imports carry a
// decoded descriptor; other kinds are skipped over.
type Import struct {
	Module  string
	Name    string
	Kind    byte
	TypeIdx uint32      // KindFunc
	Memory  *MemoryType // KindMemory
}

// Limits describes memory size bounds in pages.
type Limits struct {
	Max      *uint64
	Min      uint64
	Shared   bool
	Memory64 bool

	// PageSizeLog2 is set when the custom-page-sizes encoding is used.
	PageSizeLog2 *uint32
}

// MemoryType describes a linear memory.
type MemoryType struct {
	Limits Limits
}

// Export is an export entry.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// LocalEntry declares Count locals of one type.
type LocalEntry struct {
	Count   uint32
	ValType ValType

	// HeapType follows ValRef/ValRefNull.
	HeapType int64
}

// FuncBody is a function body: local declarations followed by the
// instruction stream including the final end.
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte
}

// DataSegment is a data segment. Offset holds the raw constant expression
// including its end opcode; it is empty for passive segments.
type DataSegment struct {
	Offset []byte
	Init   []byte
	Flags  uint32
	MemIdx uint32

	// Raw is the segment's original encoding when decoded from a binary.
	Raw []byte
}
