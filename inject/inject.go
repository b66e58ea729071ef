package inject

import (
	"go.uber.org/zap"

	"github.com/wippyai/lasr/artifact"
)

// Options configures Inject.
type Options struct {
	// Export names the designated entry point. Defaults to "lasr_script".
	Export string
}

// Result is an injected module and where the script landed.
type Result struct {
	Module []byte

	// PatchIndex is the function-space index of the record producer.
	PatchIndex uint32
	// ExportIndex is the function-space index the removed export named.
	ExportIndex uint32

	Offset   uint32
	Length   uint32
	OldPages uint64
	NewPages uint64
}

// Inject embeds script into shell.
func Inject(shell, script []byte, opts Options) (*Result, error) {
	export := opts.Export
	if export == "" {
		export = artifact.DefaultExport
	}

	s, err := parseShell(shell, export)
	if err != nil {
		return nil, err
	}
	patch, err := resolvePatchTarget(s)
	if err != nil {
		return nil, err
	}
	if err := checkSignatures(s, patch); err != nil {
		return nil, err
	}
	l, err := planLayout(s.memory, len(script))
	if err != nil {
		return nil, err
	}

	out := assemble(s, export, script, patch, l)

	Logger().Debug("script injected",
		zap.String("export", export),
		zap.Uint32("export_func", s.exportIdx),
		zap.Uint32("patch_func", patch),
		zap.Uint64("offset", l.offset),
		zap.Uint64("length", l.length),
		zap.Uint64("pages", l.newPages))

	return &Result{
		Module:      out,
		PatchIndex:  patch,
		ExportIndex: s.exportIdx,
		Offset:      uint32(l.offset),
		Length:      uint32(l.length),
		OldPages:    l.oldPages,
		NewPages:    l.newPages,
	}, nil
}
