package inject

import (
	"strconv"

	"github.com/wippyai/lasr/artifact"
	"github.com/wippyai/lasr/wasm"
)

func rebuildCode(s *shell, patch uint32, l layout) []byte {
	bodies := make([][]byte, len(s.bodies))
	for i, body := range s.bodies {
		idx := s.funcImports + uint32(i)
		switch {
		case idx == patch:
			bodies[i] = artifact.ScriptBody(int32(l.offset), int32(l.length))
		case idx == s.exportIdx:
			bodies[i] = artifact.EmptyBody()
		default:
			bodies[i] = body
		}
	}
	return wasm.EncodeVector(bodies, true)
}

func rebuildExports(s *shell, export string) []byte {
	kept := make([]wasm.Export, 0, len(s.exports))
	for _, e := range s.exports {
		if e.Name == export && e.Kind == wasm.KindFunc {
			continue
		}
		kept = append(kept, e)
	}
	return wasm.EncodeExportSection(kept)
}

func rebuildMemory(s *shell, l layout) []byte {
	return wasm.EncodeMemorySection(wasm.MemoryType{Limits: wasm.Limits{
		Min: l.newPages,
		Max: s.memory.Max,
	}})
}

func rebuildData(s *shell, script []byte, l layout) []byte {
	segs := make([][]byte, 0, len(s.segments)+1)
	for _, seg := range s.segments {
		segs = append(segs, wasm.EncodeDataSegment(seg))
	}
	segs = append(segs, wasm.EncodeDataSegment(wasm.DataSegment{
		Flags:  wasm.DataActive,
		Offset: wasm.I32ConstExpr(int32(l.offset)),
		Init:   script,
	}))
	return wasm.EncodeVector(segs, false)
}

// assemble substitutes rewritten sections in place. A data section is
// inserted after the code section when the shell has none.
func assemble(s *shell, export string, script []byte, patch uint32, l layout) []byte {
	out := make([]wasm.Section, 0, len(s.sections)+1)
	hasData := false
	for _, sec := range s.sections {
		switch sec.ID {
		case wasm.SectionExport:
			sec.Data = rebuildExports(s, export)
		case wasm.SectionMemory:
			sec.Data = rebuildMemory(s, l)
		case wasm.SectionDataCount:
			sec.Data = wasm.EncodeLEB128u(uint32(len(s.segments) + 1))
		case wasm.SectionCode:
			sec.Data = rebuildCode(s, patch, l)
		case wasm.SectionData:
			sec.Data = rebuildData(s, script, l)
			hasData = true
		}
		out = append(out, sec)
	}
	if !hasData {
		for i, sec := range out {
			if sec.ID == wasm.SectionCode {
				data := wasm.Section{ID: wasm.SectionData, Data: rebuildData(s, script, l)}
				out = append(out[:i+1], append([]wasm.Section{data}, out[i+1:]...)...)
				break
			}
		}
	}
	return wasm.AssembleSections(out)
}

func uitoa(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
