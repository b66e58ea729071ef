package artifact

import (
	"github.com/wippyai/lasr/wasm"
)

// RecordSize is the size of the {offset, length} record the script function
// writes through its pointer argument.
const RecordSize = 8

// ScriptBody returns the function body that stores the script location into
// the record pointed to by its first parameter:
//
//	local.get 0; i32.const length; i32.store offset=4
//	local.get 0; i32.const offset; i32.store offset=0
//	end
func ScriptBody(offset, length int32) []byte {
	b := []byte{0x00, wasm.OpLocalGet, 0x00, wasm.OpI32Const}
	b = wasm.AppendS32(b, length)
	b = append(b, wasm.OpI32Store, 0x02, 0x04, wasm.OpLocalGet, 0x00, wasm.OpI32Const)
	b = wasm.AppendS32(b, offset)
	return append(b, wasm.OpI32Store, 0x02, 0x00, wasm.OpEnd)
}

// EmptyBody is a body with no locals that returns immediately.
func EmptyBody() []byte {
	return []byte{0x00, wasm.OpEnd}
}

// ParseScriptBody reports whether body has exactly the ScriptBody shape and
// returns the embedded offset and length.
func ParseScriptBody(body []byte) (offset, length int32, ok bool) {
	p := body
	expect := func(seq ...byte) bool {
		if len(p) < len(seq) {
			return false
		}
		for i, b := range seq {
			if p[i] != b {
				return false
			}
		}
		p = p[len(seq):]
		return true
	}
	constant := func() (int32, bool) {
		v, n, err := wasm.DecodeLEB128s(p)
		if err != nil {
			return 0, false
		}
		p = p[n:]
		return v, true
	}

	if !expect(0x00, wasm.OpLocalGet, 0x00, wasm.OpI32Const) {
		return 0, 0, false
	}
	if length, ok = constant(); !ok {
		return 0, 0, false
	}
	if !expect(wasm.OpI32Store, 0x02, 0x04, wasm.OpLocalGet, 0x00, wasm.OpI32Const) {
		return 0, 0, false
	}
	if offset, ok = constant(); !ok {
		return 0, 0, false
	}
	if !expect(wasm.OpI32Store, 0x02, 0x00, wasm.OpEnd) || len(p) != 0 {
		return 0, 0, false
	}
	return offset, length, true
}
