// Package process attaches to running processes by name and reads their
// memory.
package process

import (
	"context"
	"path"
	"strings"

	"github.com/wippyai/lasr/errors"
)

// Region is one contiguous mapping in a process address space.
type Region struct {
	Name  string
	Perms string
	Start uint64
	End   uint64
}

// Size returns the region length in bytes.
func (r Region) Size() uint64 {
	return r.End - r.Start
}

// Readable reports whether the mapping can be read.
func (r Region) Readable() bool {
	return strings.HasPrefix(r.Perms, "r")
}

// Contains reports whether [addr, addr+n) lies inside the region.
func (r Region) Contains(addr, n uint64) bool {
	return addr >= r.Start && addr+n >= addr && addr+n <= r.End
}

// Process is an attached process.
type Process interface {
	PID() int32
	Name() string

	// IsOpen reports whether the process is still running.
	IsOpen() bool

	// Read fills buf from the process memory at addr. Partial reads fail.
	Read(addr uint64, buf []byte) error

	// ModuleAddress returns the load address of a mapped module.
	ModuleAddress(module string) (uint64, error)

	// ModuleSize returns the mapped size of a module.
	ModuleSize(module string) (uint64, error)

	// Regions lists the current memory mappings.
	Regions() ([]Region, error)

	Close() error
}

// Attacher finds a process by name and attaches to it.
type Attacher interface {
	// Attach returns ErrNotFound while no process matches.
	Attach(ctx context.Context, name string, pick Pick) (Process, error)
}

// ErrNotFound is returned by Attach when no process matches.
var ErrNotFound = errors.ErrProcessNotFound

// Pick selects among several processes with the same name.
type Pick int

const (
	// PickFirst selects the oldest process.
	PickFirst Pick = iota
	// PickLast selects the newest process.
	PickLast
)

// ParsePick parses "first" or "last". The empty string is PickFirst.
func ParsePick(s string) (Pick, error) {
	switch s {
	case "", "first":
		return PickFirst, nil
	case "last":
		return PickLast, nil
	}
	return PickFirst, errors.New(errors.PhaseProcess, errors.KindInvalidInput).
		Value(s).Detail("sort must be \"first\" or \"last\", got %q", s).Build()
}

func (p Pick) String() string {
	if p == PickLast {
		return "last"
	}
	return "first"
}

// MatchName reports whether a process matches name by its short name, its
// executable path or its first argument. Linux truncates short names to 15
// bytes, and Wine-hosted programs carry Windows paths in their arguments.
func MatchName(name, short, exe string, args []string) bool {
	if name == "" {
		return false
	}
	if short == name || (len(name) > 15 && short == name[:15]) {
		return true
	}
	if exe != "" && baseName(exe) == name {
		return true
	}
	return len(args) > 0 && strings.EqualFold(baseName(args[0]), name)
}

// baseName strips both slash and backslash separated directories.
func baseName(p string) string {
	if i := strings.LastIndexByte(p, '\\'); i >= 0 {
		p = p[i+1:]
	}
	return path.Base(p)
}

// moduleRange returns the span covered by regions whose backing file is
// module.
func moduleRange(regions []Region, module string) (start, end uint64, ok bool) {
	for _, r := range regions {
		if r.Name == "" || !strings.EqualFold(baseName(r.Name), module) {
			continue
		}
		if !ok || r.Start < start {
			start = r.Start
		}
		if !ok || r.End > end {
			end = r.End
		}
		ok = true
	}
	return start, end, ok
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

func moduleNotFound(module string) error {
	return errors.NotFound(errors.PhaseProcess, "module", module)
}
