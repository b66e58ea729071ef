// Package wasm provides the WebAssembly binary primitives used for module
// surgery: LEB128 codecs, a raw section stream, per-section decoders for the
// sections that carry indices and memory layout, an instruction walker that
// knows every immediate encoding, and a small module encoder.
//
// The decoders are deliberately shallow. Sections that are not decoded are
// carried as raw bytes so that rewriting one section never perturbs another:
//
//	sections, err := wasm.ReadSections(data)
//	for _, s := range sections {
//	    if s.ID == wasm.SectionExport {
//	        exports, err := wasm.DecodeExports(s.Data)
//	        ...
//	    }
//	}
//	out := wasm.AssembleSections(sections)
//
// The encoder builds small modules from scratch (generic shells, sandboxes,
// test fixtures):
//
//	m := &wasm.Module{...}
//	bin := m.Encode()
package wasm
