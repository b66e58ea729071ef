package process

import (
	"unsafe"

	gproc "github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/windows"

	"github.com/wippyai/lasr/errors"
)

const stillActive = 259

type windowsProcess struct {
	name   string
	handle windows.Handle
	pid    int32
}

func open(p *gproc.Process, name string) (Process, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, uint32(p.Pid))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseProcess, errors.KindBackend, err, "open process")
	}
	return &windowsProcess{name: name, handle: h, pid: p.Pid}, nil
}

func (p *windowsProcess) PID() int32   { return p.pid }
func (p *windowsProcess) Name() string { return p.name }

func (p *windowsProcess) IsOpen() bool {
	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return false
	}
	return code == stillActive
}

func (p *windowsProcess) Read(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	var n uintptr
	err := windows.ReadProcessMemory(p.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err != nil {
		return errors.ReadFailed(addr, len(buf), err)
	}
	if int(n) != len(buf) {
		return errors.ReadFailed(addr, len(buf), nil)
	}
	return nil
}

func (p *windowsProcess) Regions() ([]Region, error) {
	var regions []Region
	var addr uintptr
	for {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQueryEx(p.handle, addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
			break
		}
		if mbi.State == windows.MEM_COMMIT {
			regions = append(regions, Region{
				Start: uint64(mbi.BaseAddress),
				End:   uint64(mbi.BaseAddress + mbi.RegionSize),
				Perms: protectPerms(mbi.Protect),
			})
		}
		next := mbi.BaseAddress + mbi.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}
	return regions, nil
}

func protectPerms(protect uint32) string {
	if protect&(windows.PAGE_NOACCESS|windows.PAGE_GUARD) != 0 {
		return "---p"
	}
	switch protect & 0xff {
	case windows.PAGE_READONLY:
		return "r--p"
	case windows.PAGE_READWRITE, windows.PAGE_WRITECOPY:
		return "rw-p"
	case windows.PAGE_EXECUTE:
		return "--xp"
	case windows.PAGE_EXECUTE_READ:
		return "r-xp"
	case windows.PAGE_EXECUTE_READWRITE, windows.PAGE_EXECUTE_WRITECOPY:
		return "rwxp"
	}
	return "---p"
}

func (p *windowsProcess) module(name string) (windows.ModuleInfo, error) {
	var mods [1024]windows.Handle
	var needed uint32
	size := uint32(len(mods)) * uint32(unsafe.Sizeof(mods[0]))
	if err := windows.EnumProcessModules(p.handle, &mods[0], size, &needed); err != nil {
		return windows.ModuleInfo{}, errors.Wrap(errors.PhaseProcess, errors.KindBackend, err, "enumerate modules")
	}
	count := int(needed / uint32(unsafe.Sizeof(mods[0])))
	if count > len(mods) {
		count = len(mods)
	}
	var buf [windows.MAX_PATH]uint16
	for _, m := range mods[:count] {
		if err := windows.GetModuleBaseName(p.handle, m, &buf[0], uint32(len(buf))); err != nil {
			continue
		}
		if !equalFold(windows.UTF16ToString(buf[:]), name) {
			continue
		}
		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(p.handle, m, &info, uint32(unsafe.Sizeof(info))); err != nil {
			return windows.ModuleInfo{}, errors.Wrap(errors.PhaseProcess, errors.KindBackend, err, "module information")
		}
		return info, nil
	}
	return windows.ModuleInfo{}, moduleNotFound(name)
}

func (p *windowsProcess) ModuleAddress(module string) (uint64, error) {
	info, err := p.module(module)
	if err != nil {
		return 0, err
	}
	return uint64(info.BaseOfDll), nil
}

func (p *windowsProcess) ModuleSize(module string) (uint64, error) {
	info, err := p.module(module)
	if err != nil {
		return 0, err
	}
	return uint64(info.SizeOfImage), nil
}

func (p *windowsProcess) Close() error {
	return windows.CloseHandle(p.handle)
}
