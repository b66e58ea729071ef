package host

import (
	"math/bits"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// newBitLib returns a LuaJIT-compatible bit library. Operands are
// truncated to 32 bits and results are signed 32-bit numbers.
func newBitLib(L *lua.LState) *lua.LTable {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"tobit": func(L *lua.LState) int {
			return pushBit(L, uint32(bitArg(L, 1)))
		},
		"band": foldBits(0xFFFFFFFF, func(a, b uint32) uint32 { return a & b }),
		"bor":  foldBits(0, func(a, b uint32) uint32 { return a | b }),
		"bxor": foldBits(0, func(a, b uint32) uint32 { return a ^ b }),
		"bnot": func(L *lua.LState) int {
			return pushBit(L, ^uint32(bitArg(L, 1)))
		},
		"lshift": shiftBits(func(x uint32, n uint) uint32 { return x << n }),
		"rshift": shiftBits(func(x uint32, n uint) uint32 { return x >> n }),
		"arshift": shiftBits(func(x uint32, n uint) uint32 {
			return uint32(int32(x) >> n)
		}),
		"rol": shiftBits(func(x uint32, n uint) uint32 { return bits.RotateLeft32(x, int(n)) }),
		"ror": shiftBits(func(x uint32, n uint) uint32 { return bits.RotateLeft32(x, -int(n)) }),
		"bswap": func(L *lua.LState) int {
			return pushBit(L, bits.ReverseBytes32(uint32(bitArg(L, 1))))
		},
		"tohex": bitToHex,
	})
}

func bitArg(L *lua.LState, pos int) int32 {
	return int32(checkInt(L, "bit", pos))
}

func pushBit(L *lua.LState, v uint32) int {
	L.Push(lua.LNumber(int32(v)))
	return 1
}

func foldBits(init uint32, op func(a, b uint32) uint32) lua.LGFunction {
	return func(L *lua.LState) int {
		acc := init
		for i := 1; i <= L.GetTop(); i++ {
			acc = op(acc, uint32(bitArg(L, i)))
		}
		return pushBit(L, acc)
	}
}

func shiftBits(op func(x uint32, n uint) uint32) lua.LGFunction {
	return func(L *lua.LState) int {
		x := uint32(bitArg(L, 1))
		n := uint(uint32(bitArg(L, 2)) & 31)
		return pushBit(L, op(x, n))
	}
}

// tohex(x[, n]) formats the low |n| nibbles of x, upper case when n is
// negative. n defaults to 8.
func bitToHex(L *lua.LState) int {
	x := uint32(bitArg(L, 1))
	digits := int64(8)
	if L.Get(2) != lua.LNil {
		digits = checkInt(L, "bit", 2)
	}
	const lower = "0123456789abcdef"
	upper := digits < 0
	width := int(min(max(abs(digits), 1), 8))

	var b strings.Builder
	for shift := (width - 1) * 4; shift >= 0; shift -= 4 {
		c := lower[(x>>uint(shift))&0xF]
		if upper && c >= 'a' {
			c -= 'a' - 'A'
		}
		b.WriteByte(c)
	}
	L.Push(lua.LString(b.String()))
	return 1
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
