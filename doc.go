// Package lasr embeds Lua auto-splitter scripts into WebAssembly shell
// modules and runs them against a live game process.
//
// The toolchain is split into a compile-time side and a run-time side:
//
//	lasr/
//	├── wasm/       Core WASM binary primitives (LEB128, sections, instructions)
//	├── inject/     Script injection into a shell module
//	├── artifact/   Generic shell, record producer template, script extraction
//	├── memory/     Address resolution, typed reads, signature scanning
//	├── process/    Process discovery, memory reads and region listing
//	├── host/       Lua environment, capabilities and the tick loop
//	├── timer/      Timer backends (local, LiveSplit Server) and the run journal
//	├── config/     TOML, environment and flag configuration
//	├── errors/     Structured error types
//	└── cmd/
//	    ├── lasrc/  Compiler: script + shell -> artifact
//	    └── lasr/   Runtime: run, inspect, journal
//
// # Quick Start
//
// Build an artifact and run it:
//
//	lasrc splitter.lua
//	lasr run splitter.wasm -i
//
// Or drive the pieces directly:
//
//	res, err := inject.Inject(artifact.GenericShell(), script, inject.Options{})
//	...
//	src, err := artifact.Extract(ctx, res.Module)
//	loop := host.New(string(src), process.NewAttacher(), timer.NewLocal())
//	err = loop.Run(ctx)
package lasr
