package host

import (
	"fmt"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/lasr/errors"
)

// ArgError is raised into the script when a capability receives an
// argument it cannot use. Scripts can catch it with pcall; tostring gives
// the message.
type ArgError struct {
	Func     string
	Expected string
	Got      string
	Reason   string
	Position int
}

func (e *ArgError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("bad argument #%d to '%s' (%s)", e.Position, e.Func, e.Reason)
	}
	return fmt.Sprintf("bad argument #%d to '%s' (%s expected, got %s)", e.Position, e.Func, e.Expected, e.Got)
}

const argErrorType = "lasr.ArgError"

func argErrorMeta(L *lua.LState) *lua.LTable {
	mt := L.NewTypeMetatable(argErrorType)
	mt.RawSetString("__tostring", L.NewFunction(func(L *lua.LState) int {
		ud := L.CheckUserData(1)
		if e, ok := ud.Value.(*ArgError); ok {
			L.Push(lua.LString(e.Error()))
			return 1
		}
		L.Push(lua.LString(argErrorType))
		return 1
	}))
	return mt
}

// raiseArg aborts the running capability with e.
func raiseArg(L *lua.LState, e *ArgError) {
	ud := L.NewUserData()
	ud.Value = e
	L.SetMetatable(ud, L.GetTypeMetatable(argErrorType))
	L.Error(ud, 1)
}

func typeMismatch(L *lua.LState, fn string, pos int, expected string) {
	raiseArg(L, &ArgError{Func: fn, Position: pos, Expected: expected, Got: L.Get(pos).Type().String()})
}

// checkString accepts strings and numbers, as Lua's own coercion does.
func checkString(L *lua.LState, fn string, pos int) string {
	switch v := L.Get(pos).(type) {
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return v.String()
	}
	typeMismatch(L, fn, pos, "string")
	return ""
}

// optString returns def when the argument is absent or nil.
func optString(L *lua.LState, fn string, pos int, def string) string {
	if L.Get(pos) == lua.LNil {
		return def
	}
	return checkString(L, fn, pos)
}

// checkInt accepts numbers and numeric strings and truncates toward zero.
func checkInt(L *lua.LState, fn string, pos int) int64 {
	switch v := L.Get(pos).(type) {
	case lua.LNumber:
		return int64(v)
	case lua.LString:
		s := strings.TrimSpace(string(v))
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
	}
	typeMismatch(L, fn, pos, "number")
	return 0
}

// argErrorOf extracts an ArgError raised by raiseArg from an error
// returned by a protected call.
func argErrorOf(err error) (*ArgError, bool) {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	ud, ok := apiErr.Object.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	e, ok := ud.Value.(*ArgError)
	return e, ok
}
