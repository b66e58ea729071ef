package host

import (
	"context"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/process"
	"github.com/wippyai/lasr/timer"
)

// DefaultChunkName names the script in interpreter error messages.
const DefaultChunkName = "script.lua"

// Loop runs a script against processes found by an Attacher and drives a
// Timer from its hooks.
type Loop struct {
	attacher process.Attacher
	timer    timer.Timer
	ticker   Ticker
	observer Observer
	script   string
	chunk    string
}

// Option configures a Loop.
type Option func(*Loop)

// WithTicker replaces the default wall-clock ticker.
func WithTicker(t Ticker) Option {
	return func(l *Loop) { l.ticker = t }
}

// WithObserver receives loop events.
func WithObserver(o Observer) Option {
	return func(l *Loop) { l.observer = o }
}

// WithChunkName sets the name used in script error messages.
func WithChunkName(name string) Option {
	return func(l *Loop) { l.chunk = name }
}

// New returns a Loop for script.
func New(script string, attacher process.Attacher, t timer.Timer, opts ...Option) *Loop {
	l := &Loop{
		script:   script,
		attacher: attacher,
		timer:    t,
		observer: NopObserver{},
		chunk:    DefaultChunkName,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.ticker == nil {
		l.ticker = NewClock(DefaultTickRate)
	}
	return l
}

// Run executes cycles until ctx is done or a hook fails. It returns
// ctx.Err() on cancellation and the script error otherwise.
func (l *Loop) Run(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		attached, err := l.runCycle(ctx, cycle)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return err
		}
		if !attached {
			if err := l.ticker.Wait(ctx); err != nil {
				return err
			}
		}
	}
}

// runCycle runs one interpreter lifetime and reports whether it ever
// ticked against an attached process.
func (l *Loop) runCycle(ctx context.Context, cycle int) (bool, error) {
	env := newEnv(ctx, l)
	defer env.close()

	log := Logger().With(zap.Int("cycle", cycle))
	log.Debug("starting script cycle")

	fn, err := env.L.Load(strings.NewReader(l.script), l.chunk)
	if err != nil {
		return false, scriptError("load", err)
	}
	env.L.Push(fn)
	if err := env.L.PCall(0, 0, nil); err != nil {
		return false, scriptError("main chunk", err)
	}
	if err := env.call("startup"); err != nil {
		return false, err
	}
	env.readSettings()

	var ticks uint64
	for env.sess.Attached() {
		ticks++
		if err := env.tick(ticks); err != nil {
			return true, err
		}
	}
	if env.sess.proc != nil {
		log.Info("process closed", zap.String("name", env.sess.name), zap.Uint64("ticks", ticks))
		l.observer.Detached(env.sess.name)
	}
	return ticks > 0, nil
}

// env is the interpreter and session of one cycle.
type env struct {
	ctx         context.Context
	loop        *Loop
	L           *lua.LState
	sess        *Session
	useGameTime bool
}

func newEnv(ctx context.Context, l *Loop) *env {
	e := &env{
		ctx:  ctx,
		loop: l,
		L:    lua.NewState(lua.Options{SkipOpenLibs: true}),
		sess: newSession(),
	}
	e.L.SetContext(ctx)
	openLibs(e.L)
	argErrorMeta(e.L)
	e.register()
	return e
}

func openLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.OsLibName, lua.OpenOs},
		{lua.IoLibName, lua.OpenIo},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

func (e *env) close() {
	e.sess.close()
	e.L.Close()
}

// readSettings applies the globals a script may set up during startup.
func (e *env) readSettings() {
	if rate, ok := e.L.GetGlobal("refreshRate").(lua.LNumber); ok {
		if rate > 0 {
			e.loop.ticker.SetRate(float64(rate))
			Logger().Debug("tick rate set", zap.Float64("hz", float64(rate)))
		}
	}
	e.useGameTime = e.L.GetGlobal("useGameTime") == lua.LTrue
	if n, ok := e.L.GetGlobal("mapsCacheCycles").(lua.LNumber); ok {
		e.sess.setCacheTTL(int(max(n, 0)))
	}
}

// hook returns the global function name or nil.
func (e *env) hook(name string) *lua.LFunction {
	fn, _ := e.L.GetGlobal(name).(*lua.LFunction)
	return fn
}

// call runs a hook for its side effects. Undefined hooks are no-ops.
func (e *env) call(name string) error {
	_, err := e.callValue(name)
	return err
}

// callValue runs a hook and returns its first result, or nil when the hook
// is undefined.
func (e *env) callValue(name string) (lua.LValue, error) {
	fn := e.hook(name)
	if fn == nil {
		return lua.LNil, nil
	}
	if err := e.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return lua.LNil, scriptError(name, err)
	}
	ret := e.L.Get(-1)
	e.L.Pop(1)
	return ret, nil
}

// callBool runs a hook and reports its result when it is a boolean.
func (e *env) callBool(name string) (value, ok bool, err error) {
	ret, err := e.callValue(name)
	if err != nil {
		return false, false, err
	}
	b, ok := ret.(lua.LBool)
	return bool(b), ok, nil
}

func (e *env) tick(n uint64) error {
	if err := e.call("state"); err != nil {
		return err
	}
	if err := e.call("update"); err != nil {
		return err
	}

	t := e.loop.timer
	st, stErr := t.State()
	if stErr != nil {
		Logger().Warn("timer state unavailable", zap.Error(stErr))
	}
	active := stErr == nil && (st == timer.Running || st == timer.Paused)

	if e.useGameTime && active {
		ret, err := e.callValue("gameTime")
		if err != nil {
			return err
		}
		if ms, ok := ret.(lua.LNumber); ok {
			e.act(timer.ActionSetGameTime, func() error {
				return t.SetGameTime(time.Duration(float64(ms) * float64(time.Millisecond)))
			})
		}
	}

	if stErr == nil && st == timer.NotRunning {
		if v, ok, err := e.callBool("start"); err != nil {
			return err
		} else if ok && v {
			e.act(timer.ActionStart, t.Start)
		}
	}

	if active {
		if v, ok, err := e.callBool("split"); err != nil {
			return err
		} else if ok && v {
			e.act(timer.ActionSplit, t.Split)
		}
	}

	if v, ok, err := e.callBool("isLoading"); err != nil {
		return err
	} else if ok {
		if v {
			e.act(timer.ActionPauseGameTime, t.PauseGameTime)
		} else {
			e.act(timer.ActionResumeGameTime, t.ResumeGameTime)
		}
	}

	if v, ok, err := e.callBool("reset"); err != nil {
		return err
	} else if ok && v {
		e.act(timer.ActionReset, t.Reset)
	}

	e.sess.endTick()
	e.loop.observer.Tick(n, st)
	return e.loop.ticker.Wait(e.ctx)
}

// act performs a timer action. Backend failures are logged and the loop
// carries on.
func (e *env) act(a timer.Action, fn func() error) {
	if err := fn(); err != nil {
		Logger().Warn("timer action failed", zap.Stringer("action", a), zap.Error(err))
		return
	}
	switch a {
	case timer.ActionSetGameTime, timer.ActionPauseGameTime, timer.ActionResumeGameTime:
		Logger().Debug("timer action", zap.Stringer("action", a))
	default:
		Logger().Info("timer action", zap.Stringer("action", a))
	}
	e.loop.observer.Action(a)
}

// scriptError wraps an interpreter failure in hook.
func scriptError(hook string, err error) error {
	var cause error = err
	if ae, ok := argErrorOf(err); ok {
		cause = ae
	}
	return errors.New(errors.PhaseScript, errors.KindExecution).
		Path(hook).Cause(cause).Detail("%s failed", hook).Build()
}
