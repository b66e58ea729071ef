package process

import (
	"context"
	"sort"

	gproc "github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/wippyai/lasr/errors"
)

type candidate struct {
	proc    *gproc.Process
	created int64
}

// Find returns the process matching name, choosing by creation time when
// several match.
func Find(ctx context.Context, name string, pick Pick) (*gproc.Process, error) {
	procs, err := gproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseProcess, errors.KindBackend, err, "list processes")
	}

	var found []candidate
	for _, p := range procs {
		short, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		exe, _ := p.ExeWithContext(ctx)
		var args []string
		if short != name {
			args, _ = p.CmdlineSliceWithContext(ctx)
		}
		if !MatchName(name, short, exe, args) {
			continue
		}
		created, _ := p.CreateTimeWithContext(ctx)
		found = append(found, candidate{proc: p, created: created})
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].created != found[j].created {
			return found[i].created < found[j].created
		}
		return found[i].proc.Pid < found[j].proc.Pid
	})
	chosen := found[0]
	if pick == PickLast {
		chosen = found[len(found)-1]
	}
	if len(found) > 1 {
		Logger().Debug("several processes match",
			zap.String("name", name),
			zap.Int("count", len(found)),
			zap.Stringer("pick", pick),
			zap.Int32("pid", chosen.proc.Pid))
	}
	return chosen.proc, nil
}

// SystemAttacher attaches to processes of the running system.
type SystemAttacher struct{}

// NewAttacher returns an attacher for the running system.
func NewAttacher() *SystemAttacher {
	return &SystemAttacher{}
}

// Attach finds name and opens it for reading.
func (a *SystemAttacher) Attach(ctx context.Context, name string, pick Pick) (Process, error) {
	p, err := Find(ctx, name, pick)
	if err != nil {
		return nil, err
	}
	proc, err := open(p, name)
	if err != nil {
		return nil, err
	}
	Logger().Info("attached",
		zap.String("name", name),
		zap.Int32("pid", p.Pid))
	return proc, nil
}
