package host

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/memory"
	"github.com/wippyai/lasr/process"
)

func (e *env) register() {
	for name, fn := range map[string]lua.LGFunction{
		"process":          e.process,
		"readAddress":      e.readAddress,
		"getBaseAddress":   e.getBaseAddress,
		"getModuleSize":    e.getModuleSize,
		"sizeOf":           e.sizeOf,
		"getMaps":          e.getMaps,
		"sig_scan":         e.sigScan,
		"setVariable":      e.setVariable,
		"getPID":           e.getPID,
		"print":            e.print,
		"print_tbl":        e.printTable,
		"shallow_copy_tbl": e.shallowCopyTable,
	} {
		e.L.SetGlobal(name, e.L.NewFunction(fn))
	}
	e.L.SetGlobal("bit", newBitLib(e.L))
}

// diag reports a recoverable capability problem to the script author.
func (e *env) diag(msg string) {
	Logger().Warn(msg)
	e.loop.observer.Print(msg)
}

// requireProcess raises when no process is attached.
func (e *env) requireProcess(fn string) process.Process {
	if e.sess.proc == nil {
		e.L.RaiseError("%s: no process attached", fn)
		return nil
	}
	return e.sess.proc
}

// process(name[, "first"|"last"]) waits until a process called name is
// running, then attaches to it. It polls once per tick.
func (e *env) process(L *lua.LState) int {
	name := checkString(L, "process", 1)
	pick := process.PickFirst
	if sort := optString(L, "process", 2, ""); sort != "" {
		p, err := process.ParsePick(sort)
		if err != nil {
			e.diag("[process] Invalid sort argument. Use 'first' or 'last'. Falling back to first")
		} else {
			pick = p
		}
	}

	var proc process.Process
	for attempt := 1; ; attempt++ {
		p, err := e.loop.attacher.Attach(e.ctx, name, pick)
		if err == nil {
			proc = p
			break
		}
		if !errors.Is(err, process.ErrNotFound) {
			Logger().Debug("attach failed", zap.String("name", name), zap.Int("attempt", attempt), zap.Error(err))
		}
		if err := e.loop.ticker.Wait(e.ctx); err != nil {
			L.RaiseError("process: %v", err)
			return 0
		}
	}

	base, err := proc.ModuleAddress(name)
	if err != nil {
		proc.Close()
		e.diag("[process] Failed to get process base address")
		Logger().Debug("base module lookup failed", zap.String("name", name), zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}

	e.sess.attach(proc, name, base)
	Logger().Info("attached",
		zap.String("name", name),
		zap.Int32("pid", proc.PID()),
		zap.Uint64("base", base))
	e.loop.observer.Attached(name, proc.PID())
	L.Push(lua.LTrue)
	return 1
}

// readAddress(type, offset, ...hops) reads relative to the main module;
// readAddress(type, module, offset, ...hops) relative to a named module.
// Failures print a diagnostic and return nil.
func (e *env) readAddress(L *lua.LState) int {
	const fn = "readAddress"
	tag := checkString(L, fn, 1)
	proc := e.requireProcess(fn)

	if L.Get(2) == lua.LNil {
		e.diag("[readAddress] The address argument cannot be nil. Check your auto splitter code.")
		L.Push(lua.LNil)
		return 1
	}

	var addr uint64
	first := 3
	if module, ok := L.Get(2).(lua.LString); ok {
		offset := checkInt(L, fn, 3)
		base, err := proc.ModuleAddress(string(module))
		if err != nil {
			e.diag("[readAddress] Module not found: " + string(module))
			L.Push(lua.LNil)
			return 1
		}
		addr = base + uint64(offset)
		first = 4
	} else {
		addr = e.sess.base + uint64(checkInt(L, fn, 2))
	}
	hops := make([]int64, 0, max(L.GetTop()-first+1, 0))
	for i := first; i <= L.GetTop(); i++ {
		hops = append(hops, checkInt(L, fn, i))
	}

	typ, err := memory.ParseType(tag)
	if err != nil {
		e.diag(typeDiag(tag, err))
		L.Push(lua.LNil)
		return 1
	}

	addr, err = memory.Resolve(proc, addr, hops)
	if err != nil {
		e.diag("[readAddress] Failed to read process memory")
		L.Push(lua.LNil)
		return 1
	}
	v, err := memory.Read(proc, addr, typ)
	if err != nil {
		e.diag("[readAddress] Failed to read process memory")
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, v))
	return 1
}

func typeDiag(tag string, err error) string {
	if errors.Is(err, errors.ErrInvalidSize) {
		if strings.HasPrefix(tag, "string") {
			return "[readAddress] Invalid string size, please read documentation"
		}
		return "[readAddress] Invalid byte array size, please read documentation"
	}
	return "[readAddress] Invalid value type: " + tag
}

// toLua converts a decoded memory value. Integers become Lua numbers and
// lose precision above 2^53.
func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case int64:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case []byte:
		t := L.CreateTable(len(v), 0)
		for _, b := range v {
			t.Append(lua.LNumber(b))
		}
		return t
	}
	return lua.LNil
}

// getBaseAddress([module]) returns the main module base or the base of
// module.
func (e *env) getBaseAddress(L *lua.LState) int {
	const fn = "getBaseAddress"
	proc := e.requireProcess(fn)
	module := optString(L, fn, 1, "")
	if module == "" {
		L.Push(lua.LNumber(e.sess.base))
		return 1
	}
	base, err := proc.ModuleAddress(module)
	if err != nil {
		raiseArg(L, &ArgError{Func: fn, Position: 1, Reason: "module not found"})
		return 0
	}
	L.Push(lua.LNumber(base))
	return 1
}

// getModuleSize([module]) returns the size of the main module or module.
func (e *env) getModuleSize(L *lua.LState) int {
	const fn = "getModuleSize"
	proc := e.requireProcess(fn)
	module := optString(L, fn, 1, e.sess.name)
	size, err := proc.ModuleSize(module)
	if err != nil {
		raiseArg(L, &ArgError{Func: fn, Position: 1, Reason: "module not found"})
		return 0
	}
	L.Push(lua.LNumber(size))
	return 1
}

// sizeOf(type) returns the byte size of a type tag.
func (e *env) sizeOf(L *lua.LState) int {
	tag := checkString(L, "sizeOf", 1)
	n, err := memory.SizeOf(tag)
	if err != nil {
		raiseArg(L, &ArgError{Func: "sizeOf", Position: 1, Reason: "unsupported type"})
		return 0
	}
	L.Push(lua.LNumber(n))
	return 1
}

// getMaps() lists the memory regions of the attached process as
// {name, start, end, size} tables. The list is cached for mapsCacheCycles
// ticks. Any argument makes it return nil.
func (e *env) getMaps(L *lua.LState) int {
	if L.GetTop() != 0 {
		L.Push(lua.LNil)
		return 1
	}
	e.requireProcess("getMaps")
	regions, err := e.sess.regions()
	if err != nil {
		e.diag("[getMaps] Failed to query memory ranges")
		Logger().Debug("region listing failed", zap.Error(err))
		L.Push(lua.LNil)
		return 1
	}
	out := L.CreateTable(len(regions), 0)
	for _, r := range regions {
		entry := L.CreateTable(0, 4)
		entry.RawSetString("name", lua.LString(r.Name))
		entry.RawSetString("start", lua.LNumber(r.Start))
		entry.RawSetString("end", lua.LNumber(r.End))
		entry.RawSetString("size", lua.LNumber(r.Size()))
		out.Append(entry)
	}
	L.Push(out)
	return 1
}

// sig_scan(pattern, offset) returns the first match address plus offset,
// relative to the main module base, or nil.
func (e *env) sigScan(L *lua.LState) int {
	const fn = "sig_scan"
	pattern := checkString(L, fn, 1)
	sig, err := memory.ParseSignature(pattern)
	if err != nil {
		var se *errors.Error
		reason := err.Error()
		if errors.As(err, &se) {
			reason = se.Detail
		}
		raiseArg(L, &ArgError{Func: fn, Position: 1, Reason: reason})
		return 0
	}
	offset := checkInt(L, fn, 2)
	proc := e.requireProcess(fn)

	addr, found, err := memory.Scan(e.ctx, proc, sig, e.loop.ticker.Wait)
	if err != nil {
		L.RaiseError("sig_scan: %v", err)
		return 0
	}
	if !found {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(int64(addr) + offset - int64(e.sess.base)))
	return 1
}

// setVariable(key, value) sets a timer custom variable.
func (e *env) setVariable(L *lua.LState) int {
	key := checkString(L, "setVariable", 1)
	value := checkString(L, "setVariable", 2)
	if err := e.loop.timer.SetVariable(key, value); err != nil {
		Logger().Warn("set variable failed", zap.String("key", key), zap.Error(err))
	}
	return 0
}

// getPID() returns the attached process id, or 0.
func (e *env) getPID(L *lua.LState) int {
	var pid int32
	if e.sess.proc != nil {
		pid = e.sess.proc.PID()
	}
	L.Push(lua.LNumber(pid))
	return 1
}

// print(...) joins its arguments with tabs.
func (e *env) print(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	e.emit(strings.Join(parts, "\t"))
	return 0
}

func (e *env) emit(msg string) {
	Logger().Info(msg, zap.String("source", "script"))
	e.loop.observer.Print(msg)
}

// print_tbl(t) prints one "key: value" line per table entry.
func (e *env) printTable(L *lua.LState) int {
	if L.GetTop() == 0 {
		e.diag("[print_tbl] Argument is not a table or no argument passed.")
		return 0
	}
	t, ok := L.Get(1).(*lua.LTable)
	if !ok {
		e.diag("[print_tbl] Argument is not a table or no argument passed.")
		return 0
	}
	if L.GetTop() > 1 {
		e.diag("[print_tbl] Too many arguments passed, only pass a single table")
		return 0
	}
	t.ForEach(func(k, v lua.LValue) {
		e.emit(displayValue(k) + ": " + displayValue(v))
	})
	return 0
}

func displayValue(v lua.LValue) string {
	switch v.Type() {
	case lua.LTString, lua.LTNumber, lua.LTBool, lua.LTNil:
		return v.String()
	}
	return "??"
}

// shallow_copy_tbl(t) returns a new table with the same entries.
func (e *env) shallowCopyTable(L *lua.LState) int {
	src, ok := L.Get(1).(*lua.LTable)
	if !ok || L.GetTop() == 0 {
		e.diag("[shallow_copy_tbl] Argument is not a table or no argument passed.")
		L.Push(lua.LNil)
		return 1
	}
	if L.GetTop() > 1 {
		e.diag("[shallow_copy_tbl] Too many arguments passed, only pass a single table")
		L.Push(lua.LNil)
		return 1
	}
	out := L.NewTable()
	src.ForEach(func(k, v lua.LValue) {
		out.RawSet(k, v)
	})
	L.Push(out)
	return 1
}
