package artifact

import (
	"context"
	"encoding/binary"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/wasm"
)

const sandboxExport = "script"

// Extract returns the script embedded in an artifact. The record producer is
// executed inside a sandbox module holding only that body, one memory sized
// for the artifact's data plus a scratch page, and the artifact's data
// segments.
func Extract(ctx context.Context, bin []byte) ([]byte, error) {
	info, err := Locate(bin)
	if err != nil {
		return nil, err
	}
	sandbox, scratch, err := buildSandbox(info)
	if err != nil {
		return nil, err
	}

	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer r.Close(ctx)

	mod, err := r.Instantiate(ctx, sandbox)
	if err != nil {
		return nil, errors.Load("instantiate sandbox", err)
	}
	fn := mod.ExportedFunction(sandboxExport)
	if fn == nil {
		return nil, errors.Load("sandbox export missing", nil)
	}
	if _, err := fn.Call(ctx, uint64(scratch)); err != nil {
		return nil, errors.Load("run record producer", err)
	}

	mem := mod.Memory()
	record, ok := mem.Read(scratch, RecordSize)
	if !ok {
		return nil, errors.Load("read script record", nil)
	}
	off := binary.LittleEndian.Uint32(record[0:4])
	n := binary.LittleEndian.Uint32(record[4:8])
	data, ok := mem.Read(off, n)
	if !ok {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("script record [0x%x, +%d) outside memory", off, n).Build()
	}

	Logger().Debug("extracted script",
		zapFunc(info.FuncIndex),
		zap.Uint32("offset", off),
		zap.Uint32("length", n))

	script := make([]byte, len(data))
	copy(script, data)
	return script, nil
}

func buildSandbox(info *Info) ([]byte, uint32, error) {
	pages := info.Pages + 1
	if pages > wasm.MaxPages32 {
		return nil, 0, errors.New(errors.PhaseLoad, errors.KindCapacity).
			Detail("artifact memory leaves no scratch page").Build()
	}
	body, err := wasm.DecodeBody(info.Body)
	if err != nil {
		return nil, 0, errors.Load("decode record producer", err)
	}
	m := &wasm.Module{
		Types:    []wasm.FuncType{{Params: []wasm.ValType{wasm.ValI32}}},
		Funcs:    []uint32{0},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: pages}}},
		Exports: []wasm.Export{
			{Name: "memory", Kind: wasm.KindMemory, Idx: 0},
			{Name: sandboxExport, Kind: wasm.KindFunc, Idx: 0},
		},
		Code: []wasm.FuncBody{body},
	}
	for _, seg := range info.Segments {
		if seg.Flags == wasm.DataPassive || seg.MemIdx != 0 {
			continue
		}
		m.Data = append(m.Data, seg)
	}
	return m.Encode(), uint32(info.Pages * wasm.PageSize), nil
}

func zapFunc(idx uint32) zap.Field {
	return zap.Uint32("func", idx)
}
