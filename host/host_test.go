package host

import (
	"context"
	"encoding/binary"
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/process/processtest"
	"github.com/wippyai/lasr/timer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualTicker counts waits and lets a test act at each tick boundary.
type manualTicker struct {
	onWait func(n int) error
	rates  []float64
	waits  int
}

func (t *manualTicker) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.waits++
	if t.onWait != nil {
		return t.onWait(t.waits)
	}
	return nil
}

func (t *manualTicker) SetRate(hz float64) {
	t.rates = append(t.rates, hz)
}

// stopAt cancels the loop at the n-th wait.
func stopAt(n int, cancel context.CancelFunc, each func(n int)) func(int) error {
	return func(i int) error {
		if each != nil {
			each(i)
		}
		if i >= n {
			cancel()
			return context.Canceled
		}
		return nil
	}
}

type recorder struct {
	prints   []string
	actions  []timer.Action
	attached []int32
	detached []string
	ticks    []timer.State
}

func (r *recorder) Attached(_ string, pid int32) { r.attached = append(r.attached, pid) }
func (r *recorder) Detached(name string) { r.detached = append(r.detached, name) }
func (r *recorder) Tick(_ uint64, st timer.State) { r.ticks = append(r.ticks, st) }
func (r *recorder) Action(a timer.Action) { r.actions = append(r.actions, a) }
func (r *recorder) Print(msg string) { r.prints = append(r.prints, msg) }

type harness struct {
	att    *processtest.Attacher
	timer  *timer.Local
	ticker *manualTicker
	rec    *recorder
}

func newHarness(procs ...*processtest.Process) *harness {
	att := processtest.NewAttacher()
	for _, p := range procs {
		att.Add(p)
	}
	return &harness{att: att, timer: timer.NewLocal(), ticker: &manualTicker{}, rec: &recorder{}}
}

// run executes script until the stop-th wait.
func (h *harness) run(t *testing.T, script string, stop int, each func(n int)) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.ticker.onWait = stopAt(stop, cancel, each)
	loop := New(script, h.att, h.timer, WithTicker(h.ticker), WithObserver(h.rec))
	return loop.Run(ctx)
}

func gameProcess(pid int32) *processtest.Process {
	return processtest.New("game", pid).Module("game", 0x1000, 0x100)
}

const tracingHooks = `
process("game")
local function trace(name, ret)
	return function()
		print(name)
		return ret
	end
end
state = trace("state")
update = trace("update")
gameTime = trace("gameTime", 1234.5)
start = trace("start", false)
split = trace("split", false)
isLoading = trace("isLoading")
reset = trace("reset", false)
function startup()
	useGameTime = true
end
`

func TestHookOrderNotRunning(t *testing.T) {
	h := newHarness(gameProcess(1))
	if err := h.run(t, tracingHooks, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	want := []string{"state", "update", "start", "isLoading", "reset"}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("hooks = %v, want %v", h.rec.prints, want)
	}
}

func TestHookOrderRunning(t *testing.T) {
	h := newHarness(gameProcess(1))
	h.timer.Start()
	if err := h.run(t, tracingHooks, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{"state", "update", "gameTime", "split", "isLoading", "reset"}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("hooks = %v, want %v", h.rec.prints, want)
	}
	if got := h.timer.Snapshot().GameTime; got != 1234500*time.Microsecond {
		t.Errorf("game time = %v", got)
	}
}

func TestGameTimeNeedsOptIn(t *testing.T) {
	h := newHarness(gameProcess(1))
	h.timer.Start()
	script := strings.Replace(tracingHooks, "useGameTime = true", "useGameTime = 1", 1)
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if slices.Contains(h.rec.prints, "gameTime") {
		t.Error("gameTime called without useGameTime = true")
	}
}

func TestTimerActions(t *testing.T) {
	h := newHarness(gameProcess(1))
	script := `
process("game")
local n = 0
function update() n = n + 1 end
function start() return n == 1 end
function split() return n == 2 end
function isLoading()
	if n == 2 then return true end
	if n == 3 then return false end
	return "maybe"
end
function reset() return n == 3 end
`
	var states []timer.State
	err := h.run(t, script, 3, func(int) {
		st, _ := h.timer.State()
		states = append(states, st)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []timer.Action{
		timer.ActionStart,
		timer.ActionSplit,
		timer.ActionPauseGameTime,
		timer.ActionResumeGameTime,
		timer.ActionReset,
	}
	if !slices.Equal(h.rec.actions, want) {
		t.Errorf("actions = %v, want %v", h.rec.actions, want)
	}
	if !slices.Equal(states, []timer.State{timer.Running, timer.Running, timer.NotRunning}) {
		t.Errorf("states = %v", states)
	}
	if !slices.Equal(h.rec.ticks, []timer.State{timer.NotRunning, timer.Running, timer.Running}) {
		t.Errorf("observed tick states = %v", h.rec.ticks)
	}
}

func TestNonBooleanResultsIgnored(t *testing.T) {
	h := newHarness(gameProcess(1))
	script := `
process("game")
function start() return 1 end
function reset() return "yes" end
`
	if err := h.run(t, script, 2, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if len(h.rec.actions) != 0 {
		t.Errorf("actions = %v", h.rec.actions)
	}
}

func TestRefreshRate(t *testing.T) {
	h := newHarness(gameProcess(1))
	script := `
process("game")
function startup() refreshRate = 60 end
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if !slices.Equal(h.ticker.rates, []float64{60}) {
		t.Errorf("rates = %v", h.ticker.rates)
	}
}

func TestRegionCache(t *testing.T) {
	tests := []struct {
		name    string
		setting string
		ticks   int
		calls   int
	}{
		{"default every tick", "", 3, 3},
		{"zero means every tick", "mapsCacheCycles = 0", 3, 3},
		{"negative clamps", "mapsCacheCycles = -5", 3, 3},
		{"every third tick", "mapsCacheCycles = 3", 7, 3},
		{"long lived", "mapsCacheCycles = 100", 7, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := gameProcess(1).Map(0x1000, make([]byte, 16), "game")
			h := newHarness(proc)
			script := `
process("game")
function startup() ` + tt.setting + ` end
function update() getMaps() end
`
			if err := h.run(t, script, tt.ticks, nil); !errors.Is(err, context.Canceled) {
				t.Fatalf("Run = %v", err)
			}
			if proc.RegionCalls != tt.calls {
				t.Errorf("region listings = %d, want %d", proc.RegionCalls, tt.calls)
			}
		})
	}
}

func TestAttachRetriesEachTick(t *testing.T) {
	h := newHarness(gameProcess(7))
	h.att.MissFirst("game", 2)
	if err := h.run(t, `process("game") print(getPID())`, 3, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if h.att.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", h.att.Attempts)
	}
	if !slices.Equal(h.rec.attached, []int32{7}) || !slices.Equal(h.rec.prints, []string{"7"}) {
		t.Errorf("attached = %v, prints = %v", h.rec.attached, h.rec.prints)
	}
}

func TestRestartAfterExit(t *testing.T) {
	first, second := gameProcess(1), gameProcess(2)
	h := newHarness(first, second)
	script := `
print("loaded")
process("game")
`
	err := h.run(t, script, 3, func(n int) {
		if n == 2 {
			first.Exit()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if !slices.Equal(h.rec.prints, []string{"loaded", "loaded"}) {
		t.Errorf("prints = %v", h.rec.prints)
	}
	if !slices.Equal(h.rec.attached, []int32{1, 2}) {
		t.Errorf("attached = %v", h.rec.attached)
	}
	if !slices.Equal(h.rec.detached, []string{"game"}) {
		t.Errorf("detached = %v", h.rec.detached)
	}
	if !first.Closed() || !second.Closed() {
		t.Error("processes not closed")
	}
}

func TestIdleCycleWaitsOneTick(t *testing.T) {
	h := newHarness()
	if err := h.run(t, `print("loaded")`, 3, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	if len(h.rec.prints) != 3 {
		t.Errorf("cycles = %d, want 3", len(h.rec.prints))
	}
}

func TestProcessPick(t *testing.T) {
	h := newHarness(gameProcess(1), gameProcess(2))
	script := `
process("game", "last")
print(getPID())
process("game", "middle")
print(getPID())
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{
		"2",
		"[process] Invalid sort argument. Use 'first' or 'last'. Falling back to first",
		"1",
	}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints = %q", h.rec.prints)
	}
}

func TestProcessWithoutBaseModule(t *testing.T) {
	proc := processtest.New("game", 1)
	h := newHarness(proc)
	if err := h.run(t, `print(process("game"))`, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{"[process] Failed to get process base address", "nil"}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints = %q", h.rec.prints)
	}
	if !proc.Closed() {
		t.Error("process left open")
	}
}

func memoryProcess() *processtest.Process {
	data := make([]byte, 0x100)
	binary.LittleEndian.PutUint32(data[0x10:], 42)
	binary.LittleEndian.PutUint32(data[0x20:], 0x2000)
	copy(data[0x30:], "Hi\x00there")
	binary.LittleEndian.PutUint32(data[0x40:], math.Float32bits(2.5))
	copy(data[0x80:], []byte{0xAA, 0xBB, 0xCC})

	ptr := make([]byte, 0x10)
	binary.LittleEndian.PutUint32(ptr[0x8:], 7)

	return processtest.New("game", 1).
		Module("game", 0x1000, 0x100).
		Module("engine.so", 0x2000, 0x10).
		Map(0x1000, data, "game").
		Map(0x2000, ptr, "engine.so")
}

func TestReadAddress(t *testing.T) {
	low := make([]byte, 8)
	binary.LittleEndian.PutUint32(low, 99)
	// an unknown module must not fall back to absolute addresses
	h := newHarness(memoryProcess().Map(0x10, low, ""))
	script := `
process("game")
print(readAddress("int", 0x10))
print(readAddress("int", "game", 0x10))
print(readAddress("int", 0x20, 0x8))
print(readAddress("int", "engine.so", 0x8))
print(readAddress("string8", 0x30))
print(readAddress("float", 0x40))
print(readAddress("bool", 0x10))
local t = readAddress("byte2", 0x10)
print(#t, t[1], t[2])
print(readAddress("quad", 0x10))
print(readAddress("string1", 0x10))
print(readAddress("byte0", 0x10))
print(readAddress("int", nil))
print(readAddress("int", 0x4000))
print(readAddress("int", 0x4000, 0))
print(readAddress("int", "missing.so", 0x10))
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{
		"42",
		"42",
		"7",
		"7",
		"Hi",
		"2.5",
		"true",
		"2\t42\t0",
		"[readAddress] Invalid value type: quad",
		"nil",
		"[readAddress] Invalid string size, please read documentation",
		"nil",
		"[readAddress] Invalid byte array size, please read documentation",
		"nil",
		"[readAddress] The address argument cannot be nil. Check your auto splitter code.",
		"nil",
		"[readAddress] Failed to read process memory",
		"nil",
		"[readAddress] Failed to read process memory",
		"nil",
		"[readAddress] Module not found: missing.so",
		"nil",
	}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints:\n%s\nwant:\n%s", strings.Join(h.rec.prints, "\n"), strings.Join(want, "\n"))
	}
}

func TestModuleQueries(t *testing.T) {
	h := newHarness(memoryProcess())
	script := `
process("game")
print(getBaseAddress(), getBaseAddress("engine.so"))
print(getModuleSize(), getModuleSize("engine.so"))
print(sizeOf("double"), sizeOf("string16"), sizeOf("byte3"))
local ok, err = pcall(getBaseAddress, "missing.so")
print(ok, tostring(err))
ok, err = pcall(sizeOf, "quad")
print(ok, tostring(err))
ok, err = pcall(getModuleSize, "missing.so")
print(ok, tostring(err))
local maps = getMaps()
print(#maps, maps[2].name, maps[2].start, maps[2]["end"], maps[2].size)
print(getMaps(1))
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{
		"4096\t8192",
		"256\t16",
		"8\t16\t3",
		"false\tbad argument #1 to 'getBaseAddress' (module not found)",
		"false\tbad argument #1 to 'sizeOf' (unsupported type)",
		"false\tbad argument #1 to 'getModuleSize' (module not found)",
		"2\tengine.so\t8192\t8208\t16",
		"nil",
	}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints:\n%s\nwant:\n%s", strings.Join(h.rec.prints, "\n"), strings.Join(want, "\n"))
	}
}

func TestSigScan(t *testing.T) {
	h := newHarness(memoryProcess())
	script := `
process("game")
print(sig_scan("BB CC", 2))
print(sig_scan("AA ?? CC", 0))
print(sig_scan("DE AD BE EF", 0))
local ok, err = pcall(sig_scan, "XYZ", 0)
print(ok, tostring(err))
ok, err = pcall(sig_scan, "", 0)
print(ok, tostring(err))
ok, err = pcall(sig_scan, "AA", nil)
print(ok, tostring(err))
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{
		"131",
		"128",
		"nil",
		"false\tbad argument #1 to 'sig_scan' (signature token must be 2 hex chars or '?' wildcards)",
		"false\tbad argument #1 to 'sig_scan' (signature is empty)",
		"false\tbad argument #2 to 'sig_scan' (number expected, got nil)",
	}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints:\n%s\nwant:\n%s", strings.Join(h.rec.prints, "\n"), strings.Join(want, "\n"))
	}
}

func TestCapabilitiesNeedProcess(t *testing.T) {
	h := newHarness()
	script := `
local calls = {
	{"readAddress", function() return readAddress("int", 0) end},
	{"getBaseAddress", function() return getBaseAddress() end},
	{"getModuleSize", function() return getModuleSize() end},
	{"getMaps", function() return getMaps() end},
	{"sig_scan", function() return sig_scan("AA", 0) end},
}
for _, c in ipairs(calls) do
	local ok, err = pcall(c[2])
	print(c[1], ok, string.find(tostring(err), "no process attached", 1, true) ~= nil)
end
print(getPID())
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{
		"readAddress\tfalse\ttrue",
		"getBaseAddress\tfalse\ttrue",
		"getModuleSize\tfalse\ttrue",
		"getMaps\tfalse\ttrue",
		"sig_scan\tfalse\ttrue",
		"0",
	}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints = %q", h.rec.prints)
	}
}

func TestSetVariableAndPrint(t *testing.T) {
	h := newHarness(gameProcess(1))
	script := `
process("game")
setVariable("area", "Forest")
setVariable("deaths", 3)
print()
print("a", 1, true, nil)
print_tbl({answer = 42})
print_tbl(5)
local copy = shallow_copy_tbl({1, 2, x = "y"})
print(#copy, copy.x)
print(shallow_copy_tbl({}, {}))
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	vars := h.timer.Snapshot().Variables
	if vars["area"] != "Forest" || vars["deaths"] != "3" {
		t.Errorf("variables = %v", vars)
	}
	want := []string{
		"",
		"a\t1\ttrue\tnil",
		"answer: 42",
		"[print_tbl] Argument is not a table or no argument passed.",
		"2\ty",
		"[shallow_copy_tbl] Too many arguments passed, only pass a single table",
		"nil",
	}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints = %q", h.rec.prints)
	}
}

func TestBitLib(t *testing.T) {
	h := newHarness()
	script := `
print(bit.band(0xFF, 0x0F), bit.bor(1, 2, 4), bit.bxor(5, 1))
print(bit.tobit(0xFFFFFFFF), bit.bnot(0))
print(bit.lshift(1, 31), bit.rshift(-1, 28), bit.arshift(-16, 2))
print(bit.rol(0x80000001, 1), bit.ror(1, 1))
print(bit.tohex(255), bit.tohex(255, -2), bit.tohex(-1, 3))
print(bit.bswap(0x01020304))
`
	if err := h.run(t, script, 1, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v", err)
	}
	want := []string{
		"15\t7\t4",
		"-1\t-1",
		"-2147483648\t15\t-4",
		"3\t-2147483648",
		"000000ff\tFF\tfff",
		"67305985",
	}
	if !slices.Equal(h.rec.prints, want) {
		t.Errorf("prints = %q", h.rec.prints)
	}
}

func TestHookErrorEndsRun(t *testing.T) {
	h := newHarness(gameProcess(1))
	script := `
process("game")
function update() error("boom") end
`
	err := h.run(t, script, 5, nil)
	if !errors.Is(err, errors.ErrScript) {
		t.Fatalf("Run = %v, want script error", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error %q does not carry the script message", err)
	}
	if h.ticker.waits != 0 {
		t.Errorf("ticked %d times after the failure", h.ticker.waits)
	}
}

func TestUncaughtArgError(t *testing.T) {
	h := newHarness(gameProcess(1))
	script := `
process("game")
function state() sizeOf(nil) end
`
	err := h.run(t, script, 5, nil)
	var argErr *ArgError
	if !errors.As(err, &argErr) {
		t.Fatalf("Run = %v, want *ArgError", err)
	}
	if argErr.Func != "sizeOf" || argErr.Position != 1 || argErr.Expected != "string" || argErr.Got != "nil" {
		t.Errorf("ArgError = %+v", argErr)
	}
}

func TestSyntaxError(t *testing.T) {
	h := newHarness()
	err := h.run(t, "function (", 1, nil)
	if !errors.Is(err, errors.ErrScript) {
		t.Fatalf("Run = %v", err)
	}
}

func TestClock(t *testing.T) {
	c := NewClock(0)
	if c.Rate() != DefaultTickRate {
		t.Errorf("default rate = %v", c.Rate())
	}
	c.SetRate(math.NaN())
	c.SetRate(-1)
	c.SetRate(math.Inf(1))
	if c.Rate() != DefaultTickRate {
		t.Errorf("invalid rates applied: %v", c.Rate())
	}
	c.SetRate(1000)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.Wait(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Errorf("three ticks at 1 kHz took %v", elapsed)
	}

	c.SetRate(0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on canceled context = %v", err)
	}
}
