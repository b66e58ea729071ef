package inject

import (
	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/wasm"
)

// resolvePatchTarget returns the function-space index whose body receives
// the script record. The export's body is scanned for the first direct call
// to a defined function; without one the export itself is patched.
//
// A shell whose export calls some other defined function before the record
// producer (a guard, a logger) gets the wrong function patched.
func resolvePatchTarget(s *shell) (uint32, error) {
	body, err := wasm.DecodeBody(s.bodies[s.exportIdx-s.funcImports])
	if err != nil {
		return 0, errors.Malformed("code", err)
	}

	target := s.exportIdx
	defined := uint64(len(s.bodies))
	err = wasm.WalkInstructions(body.Code, func(ins wasm.Instruction) bool {
		callee, ok := ins.DirectCallTarget()
		if !ok || callee < s.funcImports || uint64(callee-s.funcImports) >= defined {
			return true
		}
		target = callee
		return false
	})
	if err != nil {
		return 0, errors.Malformed("code", err)
	}
	return target, nil
}

var recordSig = wasm.FuncType{Params: []wasm.ValType{wasm.ValI32}}

// checkSignatures verifies the patched body and the emptied export body are
// valid for their function types. Skipped when types could not be decoded.
func checkSignatures(s *shell, patch uint32) error {
	if s.types == nil {
		return nil
	}
	typeOf := func(idx uint32) (wasm.FuncType, bool) {
		ti := s.funcTypes[idx-s.funcImports]
		if int(ti) >= len(s.types) {
			return wasm.FuncType{}, false
		}
		return s.types[ti], true
	}

	if ft, ok := typeOf(patch); !ok || !ft.Equal(recordSig) {
		return errors.New(errors.PhaseInject, errors.KindSignature).
			Path("func", uitoa(patch)).
			Detail("patch target must have type (i32) -> ()").Build()
	}
	if patch != s.exportIdx {
		if ft, ok := typeOf(s.exportIdx); !ok || len(ft.Results) != 0 {
			return errors.New(errors.PhaseInject, errors.KindSignature).
				Path("func", uitoa(s.exportIdx)).
				Detail("exported function must not return values").Build()
		}
	}
	return nil
}
