package artifact

import (
	"github.com/wippyai/lasr/wasm"
)

// DefaultExport is the export name of the designated script entry point.
const DefaultExport = "lasr_script"

// GenericShell returns a minimal shell module. Function 0 is the record
// producer, function 1 is the exported entry point that delegates to it, and
// memory 0 starts at one page with no maximum.
func GenericShell() []byte {
	record := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}
	m := &wasm.Module{
		Types: []wasm.FuncType{record},
		Funcs: []uint32{0, 0},
		Memories: []wasm.MemoryType{
			{Limits: wasm.Limits{Min: 1}},
		},
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: DefaultExport, Kind: wasm.KindFunc, Idx: 1},
		},
		Code: []wasm.FuncBody{
			// local.get 0; i64.const 0; i64.store offset=0
			{Code: []byte{wasm.OpLocalGet, 0x00, wasm.OpI64Const, 0x00, 0x37, 0x03, 0x00, wasm.OpEnd}},
			// local.get 0; call 0
			{Code: []byte{wasm.OpLocalGet, 0x00, wasm.OpCall, 0x00, wasm.OpEnd}},
		},
	}
	return m.Encode()
}
