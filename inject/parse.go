package inject

import (
	"strconv"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/wasm"
)

// shell is everything injection needs to know about the input module,
// gathered in one pass over its sections.
type shell struct {
	sections []wasm.Section
	exports  []wasm.Export
	bodies   [][]byte
	segments []wasm.DataSegment

	// types is nil when the type section uses GC forms.
	types     []wasm.FuncType
	funcTypes []uint32

	memory wasm.Limits

	funcImports uint32
	exportIdx   uint32
	hasMemory   bool
	hasCode     bool
}

func parseShell(bin []byte, export string) (*shell, error) {
	sections, err := wasm.ReadSections(bin)
	if err != nil {
		return nil, errors.Malformed("module", err)
	}
	s := &shell{sections: sections}

	memories := 0
	importedMemory := false
	exportFound := false
	gcTypes := false
	for _, sec := range sections {
		switch sec.ID {
		case wasm.SectionType:
			s.types, err = wasm.DecodeTypes(sec.Data)
			if errors.Is(err, wasm.ErrGCTypes) {
				gcTypes, err = true, nil
			}
		case wasm.SectionImport:
			var imps []wasm.Import
			if imps, err = wasm.DecodeImports(sec.Data); err != nil {
				break
			}
			for _, imp := range imps {
				switch imp.Kind {
				case wasm.KindFunc:
					s.funcImports++
				case wasm.KindMemory:
					memories++
					importedMemory = true
				}
			}
		case wasm.SectionFunction:
			s.funcTypes, err = wasm.DecodeFunctions(sec.Data)
		case wasm.SectionMemory:
			var mems []wasm.MemoryType
			if mems, err = wasm.DecodeMemories(sec.Data); err != nil {
				break
			}
			memories += len(mems)
			if len(mems) > 0 {
				s.memory = mems[0].Limits
				s.hasMemory = true
			}
		case wasm.SectionExport:
			if s.exports, err = wasm.DecodeExports(sec.Data); err != nil {
				break
			}
			for _, e := range s.exports {
				if e.Name == export && e.Kind == wasm.KindFunc {
					s.exportIdx = e.Idx
					exportFound = true
				}
			}
		case wasm.SectionCode:
			s.bodies, err = wasm.DecodeCode(sec.Data)
			s.hasCode = true
		case wasm.SectionData:
			s.segments, err = wasm.DecodeData(sec.Data)
		}
		if err != nil {
			return nil, errors.Malformed(wasm.SectionName(sec.ID), err)
		}
	}
	if gcTypes {
		s.types = nil
	}

	switch {
	case !exportFound:
		return nil, errors.New(errors.PhaseInject, errors.KindExportNotFound).
			Path("export").Value(export).
			Detail("no function export named %q", export).Build()
	case s.exportIdx < s.funcImports:
		return nil, errors.New(errors.PhaseInject, errors.KindImportedExport).
			Path("export").Value(export).
			Detail("export %q names imported function %d", export, s.exportIdx).Build()
	case memories == 0:
		return nil, errors.New(errors.PhaseInject, errors.KindMissingMemory).
			Detail("module declares no memory").Build()
	case memories > 1:
		return nil, errors.New(errors.PhaseInject, errors.KindMultipleMemories).
			Value(memories).Detail("module has %d memories, exactly one is supported", memories).Build()
	case importedMemory:
		return nil, errors.New(errors.PhaseInject, errors.KindUnsupportedMemory).
			Detail("imported memory cannot be resized").Build()
	case !s.hasCode:
		return nil, errors.New(errors.PhaseInject, errors.KindMissingCode).
			Detail("module has no code section").Build()
	}

	if err := checkMemory(s.memory); err != nil {
		return nil, err
	}
	if len(s.funcTypes) != len(s.bodies) {
		return nil, errors.Malformed("code", errors.Plain("function and code section counts differ"))
	}
	if uint64(s.exportIdx-s.funcImports) >= uint64(len(s.bodies)) {
		return nil, errors.Malformed("export", errors.Plain("export index out of range"))
	}
	for i, seg := range s.segments {
		if err := checkSegment(i, seg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func checkMemory(lim wasm.Limits) error {
	var reason string
	switch {
	case lim.Shared:
		reason = "shared memory"
	case lim.Memory64:
		reason = "64-bit memory"
	case lim.PageSizeLog2 != nil:
		reason = "custom page size"
	case lim.Min > wasm.MaxPages32, lim.Max != nil && *lim.Max > wasm.MaxPages32:
		reason = "memory limits exceed 32-bit range"
	default:
		return nil
	}
	return errors.New(errors.PhaseInject, errors.KindUnsupportedMemory).Detail("%s", reason).Build()
}

func checkSegment(i int, seg wasm.DataSegment) error {
	var reason string
	switch {
	case seg.Flags == wasm.DataPassive:
		reason = "passive segment"
	case seg.MemIdx != 0:
		reason = "segment targets a memory other than 0"
	default:
		if _, ok := wasm.ConstI32(seg.Offset); ok {
			return nil
		}
		reason = "segment offset is not an i32.const expression"
	}
	return errors.New(errors.PhaseInject, errors.KindUnsupportedSegment).
		Path("data", strconv.Itoa(i)).Detail("%s", reason).Build()
}
