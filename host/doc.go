// Package host runs an embedded auto-splitter script.
//
// A Loop owns one interpreter per cycle. Each cycle executes the script's
// top level, runs its startup hook, then drives the lifecycle hooks once
// per tick while the attached process stays open:
//
//	state, update, gameTime, start, split, isLoading, reset
//
// Boolean hook results become timer actions. When the process exits the
// interpreter is discarded and the cycle starts over with fresh state.
//
// Scripts reach the outside world only through the capabilities the host
// registers: process, readAddress, getBaseAddress, getModuleSize, sizeOf,
// getMaps, sig_scan, setVariable, getPID, print, print_tbl,
// shallow_copy_tbl and the bit library.
package host
