package artifact

import (
	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/wasm"
)

// Info describes where an artifact keeps its script.
type Info struct {
	// MaxPages is nil when memory 0 declares no maximum.
	MaxPages *uint64

	// Body is the record producer's raw function body.
	Body []byte

	// Segments are the artifact's data segments in original order.
	Segments []wasm.DataSegment

	Exports []string

	// FuncIndex is the function-space index of the record producer.
	FuncIndex uint32
	Offset    uint32
	Length    uint32
	Pages     uint64
}

// Locate finds the record producer in an artifact by its instruction
// template and checks that the record points into an active data segment.
func Locate(bin []byte) (*Info, error) {
	sections, err := wasm.ReadSections(bin)
	if err != nil {
		return nil, errors.Load("read sections", err)
	}

	info := &Info{}
	var imports uint32
	var bodies [][]byte
	memories := 0
	for _, s := range sections {
		switch s.ID {
		case wasm.SectionImport:
			imps, err := wasm.DecodeImports(s.Data)
			if err != nil {
				return nil, errors.Load("decode imports", err)
			}
			for _, imp := range imps {
				switch imp.Kind {
				case wasm.KindFunc:
					imports++
				case wasm.KindMemory:
					memories++
					if memories == 1 {
						info.Pages, info.MaxPages = imp.Memory.Limits.Min, imp.Memory.Limits.Max
					}
				}
			}
		case wasm.SectionMemory:
			mems, err := wasm.DecodeMemories(s.Data)
			if err != nil {
				return nil, errors.Load("decode memory", err)
			}
			for _, m := range mems {
				memories++
				if memories == 1 {
					info.Pages, info.MaxPages = m.Limits.Min, m.Limits.Max
				}
			}
		case wasm.SectionExport:
			exps, err := wasm.DecodeExports(s.Data)
			if err != nil {
				return nil, errors.Load("decode exports", err)
			}
			for _, e := range exps {
				info.Exports = append(info.Exports, e.Name)
			}
		case wasm.SectionCode:
			if bodies, err = wasm.DecodeCode(s.Data); err != nil {
				return nil, errors.Load("decode code", err)
			}
		case wasm.SectionData:
			if info.Segments, err = wasm.DecodeData(s.Data); err != nil {
				return nil, errors.Load("decode data", err)
			}
		}
	}
	if memories == 0 {
		return nil, errors.New(errors.PhaseLoad, errors.KindMissingMemory).Detail("artifact has no memory").Build()
	}

	found := 0
	for i, body := range bodies {
		off, n, ok := ParseScriptBody(body)
		if !ok || off < 0 || n < 0 {
			continue
		}
		if !covered(info.Segments, uint32(off), uint32(n)) {
			Logger().Debug("skipping record producer outside data",
				zapFunc(imports+uint32(i)))
			continue
		}
		found++
		info.FuncIndex = imports + uint32(i)
		info.Offset, info.Length = uint32(off), uint32(n)
		info.Body = body
	}
	switch {
	case found == 0:
		return nil, errors.New(errors.PhaseLoad, errors.KindNotFound).Detail("no embedded script").Build()
	case found > 1:
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("%d functions match the script record template", found).Build()
	}
	return info, nil
}

// covered reports whether [off, off+n) lies inside one active memory-0
// segment with a constant offset.
func covered(segs []wasm.DataSegment, off, n uint32) bool {
	for _, seg := range segs {
		if seg.Flags == wasm.DataPassive || seg.MemIdx != 0 {
			continue
		}
		base, ok := wasm.ConstI32(seg.Offset)
		if !ok {
			continue
		}
		start := uint64(uint32(base))
		end := start + uint64(len(seg.Init))
		if uint64(off) >= start && uint64(off)+uint64(n) <= end {
			return true
		}
	}
	return false
}
