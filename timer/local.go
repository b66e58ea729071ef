package timer

import (
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Snapshot is a point-in-time copy of a Local timer.
type Snapshot struct {
	Variables map[string]string
	Splits    []time.Duration
	State     State
	RealTime  time.Duration
	GameTime  time.Duration
	Loading   bool
}

// Local is an in-process timer. It is safe for concurrent use so a
// dashboard can render it while the host loop drives it.
type Local struct {
	mu       sync.Mutex
	now      func() time.Time
	vars     map[string]string
	splits   []time.Duration
	started  time.Time
	pausedAt time.Time
	paused   time.Duration
	gameTime time.Duration
	segments int
	state    State
	loading  bool
}

// LocalOption configures a Local timer.
type LocalOption func(*Local)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

// WithSegments ends the run after n splits. Zero means the run never ends
// on its own.
func WithSegments(n int) LocalOption {
	return func(l *Local) { l.segments = n }
}

// NewLocal returns a timer in the NotRunning state.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{now: time.Now, vars: map[string]string{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) State() (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, nil
}

func (l *Local) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != NotRunning {
		return nil
	}
	l.state = Running
	l.started = l.now()
	l.paused = 0
	l.gameTime = 0
	l.splits = nil
	Logger().Info("timer started")
	return nil
}

func (l *Local) Split() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Running {
		return nil
	}
	t := l.realTime()
	l.splits = append(l.splits, t)
	Logger().Info("split", zap.Int("segment", len(l.splits)), zap.Duration("real_time", t))
	if l.segments > 0 && len(l.splits) >= l.segments {
		l.state = Ended
		l.pausedAt = l.now()
		Logger().Info("run ended", zap.Duration("real_time", t))
	}
	return nil
}

func (l *Local) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == NotRunning {
		return nil
	}
	l.state = NotRunning
	l.splits = nil
	l.paused = 0
	l.gameTime = 0
	l.loading = false
	Logger().Info("timer reset")
	return nil
}

// Pause stops the real-time clock.
func (l *Local) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Running {
		return nil
	}
	l.state = Paused
	l.pausedAt = l.now()
	return nil
}

// Resume restarts the real-time clock after Pause.
func (l *Local) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Paused {
		return nil
	}
	l.paused += l.now().Sub(l.pausedAt)
	l.state = Running
	return nil
}

func (l *Local) PauseGameTime() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = true
	return nil
}

func (l *Local) ResumeGameTime() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	return nil
}

func (l *Local) SetGameTime(d time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gameTime = d
	return nil
}

func (l *Local) SetVariable(key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.vars[key] = value
	return nil
}

// Snapshot returns the current timer values.
func (l *Local) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		State:     l.state,
		RealTime:  l.realTime(),
		GameTime:  l.gameTime,
		Loading:   l.loading,
		Splits:    slices.Clone(l.splits),
		Variables: maps.Clone(l.vars),
	}
}

func (l *Local) realTime() time.Duration {
	switch l.state {
	case Running:
		return l.now().Sub(l.started) - l.paused
	case Paused, Ended:
		return l.pausedAt.Sub(l.started) - l.paused
	}
	return 0
}
