package host

import "github.com/wippyai/lasr/timer"

// Observer receives loop events. Calls happen on the loop goroutine and
// must not block.
type Observer interface {
	Attached(name string, pid int32)
	Detached(name string)
	Tick(n uint64, state timer.State)
	Action(a timer.Action)
	Print(msg string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) Attached(string, int32) {}
func (NopObserver) Detached(string) {}
func (NopObserver) Tick(uint64, timer.State) {}
func (NopObserver) Action(timer.Action) {}
func (NopObserver) Print(string) {}
