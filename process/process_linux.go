package process

import (
	"context"
	"fmt"
	"os"
	"unsafe"

	gproc "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/wippyai/lasr/errors"
)

type linuxProcess struct {
	proc *gproc.Process
	name string
	pid  int32
}

func open(p *gproc.Process, name string) (Process, error) {
	lp := &linuxProcess{proc: p, name: name, pid: p.Pid}
	// probe read access once so permission problems surface at attach
	if _, err := lp.Regions(); err != nil {
		return nil, err
	}
	return lp, nil
}

func (p *linuxProcess) PID() int32   { return p.pid }
func (p *linuxProcess) Name() string { return p.name }

func (p *linuxProcess) IsOpen() bool {
	running, err := p.proc.IsRunningWithContext(context.Background())
	if err != nil || !running {
		return false
	}
	status, err := p.proc.StatusWithContext(context.Background())
	if err == nil && len(status) > 0 && status[0] == gproc.Zombie {
		return false
	}
	return true
}

func (p *linuxProcess) Read(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: (*byte)(unsafe.Pointer(&buf[0]))}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(int(p.pid), local, remote, 0)
	if err != nil {
		return errors.ReadFailed(addr, len(buf), err)
	}
	if n != len(buf) {
		return errors.ReadFailed(addr, len(buf), fmt.Errorf("short read of %d bytes", n))
	}
	return nil
}

func (p *linuxProcess) Regions() ([]Region, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", p.pid))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseProcess, errors.KindBackend, err, "open memory map")
	}
	defer f.Close()
	return ParseMaps(f)
}

func (p *linuxProcess) ModuleAddress(module string) (uint64, error) {
	regions, err := p.Regions()
	if err != nil {
		return 0, err
	}
	start, _, ok := moduleRange(regions, module)
	if !ok {
		return 0, moduleNotFound(module)
	}
	return start, nil
}

func (p *linuxProcess) ModuleSize(module string) (uint64, error) {
	regions, err := p.Regions()
	if err != nil {
		return 0, err
	}
	start, end, ok := moduleRange(regions, module)
	if !ok {
		return 0, moduleNotFound(module)
	}
	return end - start, nil
}

func (p *linuxProcess) Close() error { return nil }
