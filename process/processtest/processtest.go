// Package processtest provides in-memory processes for tests.
package processtest

import (
	"context"
	"sync"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/process"
)

// Mapping is a region together with its contents.
type Mapping struct {
	process.Region
	Data []byte
}

// Process is an in-memory process.Process.
type Process struct {
	mu       sync.Mutex
	name     string
	pid      int32
	mappings []Mapping
	modules  map[string][2]uint64
	closed   bool
	exited   bool

	// RegionCalls counts Regions invocations.
	RegionCalls int
	// FailRead makes reads in [start, end) fail.
	FailRead [2]uint64
}

// New returns an open process.
func New(name string, pid int32) *Process {
	return &Process{name: name, pid: pid, modules: map[string][2]uint64{}}
}

// Map adds a readable mapping at start holding data.
func (p *Process) Map(start uint64, data []byte, name string) *Process {
	return p.MapPerms(start, data, name, "r--p")
}

// MapPerms adds a mapping with explicit permissions.
func (p *Process) MapPerms(start uint64, data []byte, name, perms string) *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mappings = append(p.mappings, Mapping{
		Region: process.Region{Start: start, End: start + uint64(len(data)), Name: name, Perms: perms},
		Data:   data,
	})
	return p
}

// Module registers a module at base with size.
func (p *Process) Module(name string, base, size uint64) *Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modules[name] = [2]uint64{base, size}
	return p
}

// Exit marks the process as no longer running.
func (p *Process) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exited = true
}

// Closed reports whether Close was called.
func (p *Process) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Process) PID() int32   { return p.pid }
func (p *Process) Name() string { return p.name }

func (p *Process) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exited && !p.closed
}

func (p *Process) Read(addr uint64, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := uint64(len(buf))
	if addr < p.FailRead[1] && addr+n > p.FailRead[0] {
		return errors.ReadFailed(addr, len(buf), nil)
	}
	for _, m := range p.mappings {
		if m.Contains(addr, n) && m.Readable() {
			copy(buf, m.Data[addr-m.Start:])
			return nil
		}
	}
	return errors.ReadFailed(addr, len(buf), nil)
}

func (p *Process) ModuleAddress(module string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.modules[module]; ok {
		return m[0], nil
	}
	return 0, errors.NotFound(errors.PhaseProcess, "module", module)
}

func (p *Process) ModuleSize(module string) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.modules[module]; ok {
		return m[1], nil
	}
	return 0, errors.NotFound(errors.PhaseProcess, "module", module)
}

func (p *Process) Regions() ([]process.Region, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RegionCalls++
	out := make([]process.Region, len(p.mappings))
	for i, m := range p.mappings {
		out[i] = m.Region
	}
	return out, nil
}

func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Attacher hands out registered processes.
type Attacher struct {
	mu     sync.Mutex
	procs  map[string][]*Process
	misses map[string]int

	// Attempts counts Attach calls.
	Attempts int
}

// NewAttacher returns an empty attacher.
func NewAttacher() *Attacher {
	return &Attacher{procs: map[string][]*Process{}, misses: map[string]int{}}
}

// Add registers p under its name. Later additions count as newer processes.
func (a *Attacher) Add(p *Process) *Attacher {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.procs[p.name] = append(a.procs[p.name], p)
	return a
}

// MissFirst makes the next n attach attempts for name report not found.
func (a *Attacher) MissFirst(name string, n int) *Attacher {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.misses[name] = n
	return a
}

// Attach returns the first or last open process registered under name.
func (a *Attacher) Attach(ctx context.Context, name string, pick process.Pick) (process.Process, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Attempts++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.misses[name] > 0 {
		a.misses[name]--
		return nil, process.ErrNotFound
	}
	var open []*Process
	for _, p := range a.procs[name] {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	if len(open) == 0 {
		return nil, process.ErrNotFound
	}
	if pick == process.PickLast {
		return open[len(open)-1], nil
	}
	return open[0], nil
}
