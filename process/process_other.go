//go:build !linux && !windows

package process

import (
	gproc "github.com/shirou/gopsutil/v3/process"

	"github.com/wippyai/lasr/errors"
)

func open(*gproc.Process, string) (Process, error) {
	return nil, errors.Unsupported(errors.PhaseProcess, "process memory access on this platform")
}
