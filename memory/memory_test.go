package memory

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/wippyai/lasr/errors"
	"github.com/wippyai/lasr/process/processtest"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		tag     string
		want    Type
		size    int
		wantErr error
	}{
		{"sbyte", Type{Kind: KindSByte}, 1, nil},
		{"byte", Type{Kind: KindByte}, 1, nil},
		{"short", Type{Kind: KindShort}, 2, nil},
		{"ushort", Type{Kind: KindUShort}, 2, nil},
		{"int", Type{Kind: KindInt}, 4, nil},
		{"uint", Type{Kind: KindUInt}, 4, nil},
		{"long", Type{Kind: KindLong}, 8, nil},
		{"ulong", Type{Kind: KindULong}, 8, nil},
		{"float", Type{Kind: KindFloat}, 4, nil},
		{"double", Type{Kind: KindDouble}, 8, nil},
		{"bool", Type{Kind: KindBool}, 1, nil},
		{"string32", Type{Kind: KindString, N: 32}, 32, nil},
		{"string2", Type{Kind: KindString, N: 2}, 2, nil},
		{"byte16", Type{Kind: KindBytes, N: 16}, 16, nil},
		{"byte1", Type{Kind: KindBytes, N: 1}, 1, nil},
		{"string1", Type{}, 0, errors.ErrInvalidSize},
		{"string", Type{}, 0, errors.ErrInvalidSize},
		{"stringx", Type{}, 0, errors.ErrInvalidSize},
		{"byte0", Type{}, 0, errors.ErrInvalidSize},
		{"byte-1", Type{}, 0, errors.ErrInvalidSize},
		{"int64", Type{}, 0, errors.ErrInvalidType},
		{"", Type{}, 0, errors.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseType(tt.tag)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if got.Size() != tt.size {
				t.Errorf("size = %d, want %d", got.Size(), tt.size)
			}
			if got.String() != tt.tag {
				t.Errorf("String() = %q, want %q", got.String(), tt.tag)
			}
		})
	}
}

func TestSizeOf(t *testing.T) {
	if n, err := SizeOf("double"); err != nil || n != 8 {
		t.Errorf("SizeOf(double) = %d, %v", n, err)
	}
	if _, err := SizeOf("quad"); !errors.Is(err, errors.ErrInvalidType) {
		t.Errorf("SizeOf(quad) error = %v", err)
	}
}

func TestRead(t *testing.T) {
	data := make([]byte, 64)
	binary.LittleEndian.PutUint16(data[0:], 0xfffe)
	binary.LittleEndian.PutUint32(data[4:], 0xfffffffd)
	binary.LittleEndian.PutUint64(data[8:], math.MaxUint64)
	binary.LittleEndian.PutUint32(data[16:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint64(data[24:], math.Float64bits(-2.25))
	copy(data[32:], "Forsaken\x00junk")
	data[48] = 0x80
	data[49] = 0x02

	proc := processtest.New("game", 1).Map(0x1000, data, "game")

	tests := []struct {
		tag  string
		addr uint64
		want any
	}{
		{"short", 0x1000, int64(-2)},
		{"ushort", 0x1000, int64(0xfffe)},
		{"int", 0x1004, int64(-3)},
		{"uint", 0x1004, int64(0xfffffffd)},
		{"long", 0x1008, int64(-1)},
		{"ulong", 0x1008, uint64(math.MaxUint64)},
		{"float", 0x1010, 1.5},
		{"double", 0x1018, -2.25},
		{"string16", 0x1020, "Forsaken"},
		{"string4", 0x1020, "Fors"},
		{"sbyte", 0x1030, int64(-128)},
		{"byte", 0x1030, int64(128)},
		{"bool", 0x1031, true},
		{"bool", 0x1034, false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			typ, err := ParseType(tt.tag)
			if err != nil {
				t.Fatalf("ParseType error: %v", err)
			}
			got, err := Read(proc, tt.addr, typ)
			if err != nil {
				t.Fatalf("Read error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}

	typ, _ := ParseType("byte3")
	got, err := Read(proc, 0x1030, typ)
	if err != nil {
		t.Fatalf("Read byte3 error: %v", err)
	}
	if b := got.([]byte); len(b) != 3 || b[0] != 0x80 || b[1] != 0x02 || b[2] != 0 {
		t.Errorf("byte3 = %v", b)
	}
}

func TestReadErrors(t *testing.T) {
	proc := processtest.New("game", 1).Map(0x1000, []byte{0xff, 0xfe, 0, 0}, "game")

	if _, err := Read(proc, 0x2000, Type{Kind: KindInt}); !errors.Is(err, errors.ErrReadFailed) {
		t.Errorf("unmapped read: %v", err)
	}
	if _, err := Read(proc, 0x1002, Type{Kind: KindInt}); !errors.Is(err, errors.ErrReadFailed) {
		t.Errorf("read past mapping end: %v", err)
	}
	if _, err := Read(proc, 0x1000, Type{Kind: KindString, N: 4}); err == nil {
		t.Error("invalid UTF-8 string decoded")
	}
}

func TestResolve(t *testing.T) {
	low := make([]byte, 0x100)
	binary.LittleEndian.PutUint32(low[0x10:], 0x2000)

	hop := make([]byte, 0x100)
	binary.LittleEndian.PutUint32(hop[0x08:], 0x1234)

	high := make([]byte, 0x100)
	binary.LittleEndian.PutUint64(high[0x40:], 0x1_0000_0000+0x80)

	proc := processtest.New("game", 1).
		Map(0x1000, low, "game").
		Map(0x2000, hop, "").
		Map(0x1_0000_0000, high, "")

	tests := []struct {
		name    string
		base    uint64
		hops    []int64
		want    uint64
		wantErr bool
	}{
		{"no hops", 0x1010, nil, 0x1010, false},
		{"one hop", 0x1010, []int64{0x08}, 0x2008, false},
		{"two hops", 0x1010, []int64{0x08, 4}, 0x1238, false},
		{"negative offset", 0x1010, []int64{-0x10}, 0x1ff0, false},
		{"64-bit pointer", 0x1_0000_0040, []int64{0x10}, 0x1_0000_0090, false},
		{"unmapped", 0x5000, []int64{0}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(proc, tt.base, tt.hops)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrReadFailed) {
					t.Fatalf("got %v, want ErrReadFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got 0x%x, want 0x%x", got, tt.want)
			}
		})
	}
}

func TestParseSignature(t *testing.T) {
	tests := []struct {
		pattern string
		want    Signature
		wantErr bool
	}{
		{"DE AD", Signature{{0xDE, 0xFF}, {0xAD, 0xFF}}, false},
		{"de ?? be", Signature{{0xDE, 0xFF}, {0, 0}, {0xBE, 0xFF}}, false},
		{"?", Signature{{0, 0}}, false},
		{"?F F?", Signature{{0x0F, 0x0F}, {0xF0, 0xF0}}, false},
		{"  48\t8b\n", Signature{{0x48, 0xFF}, {0x8B, 0xFF}}, false},
		{"", nil, true},
		{"   ", nil, true},
		{"DEAD", nil, true},
		{"D", nil, true},
		{"GG", nil, true},
		{"?X", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := ParseSignature(tt.pattern)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrInvalidPattern) {
					t.Fatalf("got %v, want ErrInvalidPattern", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSignature error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d bytes, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("byte %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSignatureString(t *testing.T) {
	sig, err := ParseSignature("de ?? ?f B?")
	if err != nil {
		t.Fatalf("ParseSignature error: %v", err)
	}
	if s := sig.String(); s != "DE ?? ?F B?" {
		t.Errorf("String() = %q", s)
	}
}

func mustSig(t *testing.T, pattern string) Signature {
	t.Helper()
	sig, err := ParseSignature(pattern)
	if err != nil {
		t.Fatalf("ParseSignature(%q): %v", pattern, err)
	}
	return sig
}

func TestScanChunkBoundary(t *testing.T) {
	data := make([]byte, 2*ChunkSize)
	copy(data[ChunkSize-2:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	proc := processtest.New("game", 1).Map(0x10000, data, "game")

	addr, ok, err := Scan(context.Background(), proc, mustSig(t, "DE AD BE EF"), nil)
	if err != nil || !ok {
		t.Fatalf("Scan = %v, %v", ok, err)
	}
	if want := uint64(0x10000 + ChunkSize - 2); addr != want {
		t.Errorf("addr = 0x%x, want 0x%x", addr, want)
	}
}

func TestScanWildcards(t *testing.T) {
	data := []byte{0x00, 0xDE, 0x11, 0xBE, 0xEF, 0x00}
	proc := processtest.New("game", 1).Map(0x4000, data, "game")

	tests := []struct {
		pattern string
		want    uint64
		found   bool
	}{
		{"DE ?? BE EF", 0x4001, true},
		{"DE ? BE EF", 0x4001, true},
		{"?? DE", 0x4000, true},
		{"D? 1? ?E", 0x4001, true},
		{"??", 0x4000, true},
		{"DE 12 BE", 0, false},
		{"EF 00 00", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			addr, ok, err := Scan(context.Background(), proc, mustSig(t, tt.pattern), nil)
			if err != nil {
				t.Fatalf("Scan error: %v", err)
			}
			if ok != tt.found || addr != tt.want {
				t.Errorf("Scan = 0x%x, %v; want 0x%x, %v", addr, ok, tt.want, tt.found)
			}
		})
	}
}

func TestScanOverlappingWildcardPrefix(t *testing.T) {
	// a failure table built from the pattern alone skips the match at 1
	proc := processtest.New("game", 1).Map(0x100, []byte{0x01, 0x01, 0x01, 0x02}, "")
	addr, ok, err := Scan(context.Background(), proc, mustSig(t, "01 ?? 02"), nil)
	if err != nil || !ok || addr != 0x101 {
		t.Errorf("Scan = 0x%x, %v, %v; want 0x101", addr, ok, err)
	}
}

func TestScanLongSignature(t *testing.T) {
	pattern := make([]byte, 100)
	for i := range pattern {
		pattern[i] = byte(i*7 + 3)
	}
	data := make([]byte, 4096)
	copy(data[1000:], pattern)
	// near miss that differs only in the last byte
	copy(data[200:], pattern[:99])

	var tokens []byte
	for i, b := range pattern {
		if i > 0 {
			tokens = append(tokens, ' ')
		}
		if i == 70 {
			tokens = append(tokens, '?', '?')
			continue
		}
		tokens = append(tokens, "0123456789ABCDEF"[b>>4], "0123456789ABCDEF"[b&0xF])
	}
	proc := processtest.New("game", 1).Map(0, data, "")
	addr, ok, err := Scan(context.Background(), proc, mustSig(t, string(tokens)), nil)
	if err != nil || !ok || addr != 1000 {
		t.Errorf("Scan = %d, %v, %v; want 1000", addr, ok, err)
	}
}

func TestScanRegionState(t *testing.T) {
	// adjacent regions: a match may not span two regions
	proc := processtest.New("game", 1).
		Map(0x1000, []byte{0x00, 0xAA}, "").
		Map(0x1002, []byte{0xBB, 0x00}, "")
	if _, ok, _ := Scan(context.Background(), proc, mustSig(t, "AA BB"), nil); ok {
		t.Error("match spanning two regions")
	}
}

func TestScanSkipsUnreadable(t *testing.T) {
	proc := processtest.New("game", 1).
		MapPerms(0x1000, []byte{0xAA, 0xBB}, "", "---p").
		Map(0x2000, []byte{0x00, 0xAA, 0xBB}, "")
	proc.FailRead = [2]uint64{0x3000, 0x3010}
	proc.Map(0x3000, []byte{0xAA, 0xBB}, "")

	addr, ok, err := Scan(context.Background(), proc, mustSig(t, "AA BB"), nil)
	if err != nil || !ok || addr != 0x2001 {
		t.Errorf("Scan = 0x%x, %v, %v; want 0x2001", addr, ok, err)
	}
}

func TestScanReadFailureEndsRegion(t *testing.T) {
	data := make([]byte, 3*ChunkSize)
	copy(data[2*ChunkSize+5:], []byte{0xCA, 0xFE})
	proc := processtest.New("game", 1).Map(0, data, "")
	proc.FailRead = [2]uint64{ChunkSize, ChunkSize + 1}

	if _, ok, err := Scan(context.Background(), proc, mustSig(t, "CA FE"), nil); ok || err != nil {
		t.Errorf("Scan found a match after a failed read: %v, %v", ok, err)
	}
}

func TestScanYields(t *testing.T) {
	data := make([]byte, (2*YieldEvery+1)*ChunkSize)
	proc := processtest.New("game", 1).Map(0, data, "")

	yields := 0
	_, ok, err := Scan(context.Background(), proc, mustSig(t, "01 02 03"), func(context.Context) error {
		yields++
		return nil
	})
	if err != nil || ok {
		t.Fatalf("Scan = %v, %v", ok, err)
	}
	if yields != 2 {
		t.Errorf("yielded %d times, want 2", yields)
	}
}

func TestScanYieldAborts(t *testing.T) {
	data := make([]byte, 2*YieldEvery*ChunkSize)
	proc := processtest.New("game", 1).Map(0, data, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Scan(ctx, proc, mustSig(t, "01"), func(ctx context.Context) error {
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

// naiveScan slides the signature over data one offset at a time.
func naiveScan(data []byte, sig Signature) (int, bool) {
	for i := range data {
		if sig.Match(data[i:]) {
			return i, true
		}
	}
	return 0, false
}

func TestScanAgreesWithNaiveMatch(t *testing.T) {
	// a two-symbol alphabet keeps partial matches overlapping everywhere
	data := make([]byte, 3*ChunkSize+17)
	x := uint32(1)
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		data[i] = byte(x&1) + 0x41
	}
	proc := processtest.New("game", 1).Map(0x10000, data, "")

	for _, pattern := range []string{
		"41 42 41 42 42",
		"42 ?? 42 ?? 42 ?? 41",
		"41 41 41 41 41 41 41 41 41 42",
		"4? 42 ?1 42 41 41 ?? 42 42 42 42",
		"42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42 42",
		"43",
	} {
		t.Run(pattern, func(t *testing.T) {
			sig := mustSig(t, pattern)
			wantOff, wantOK := naiveScan(data, sig)
			addr, ok, err := Scan(context.Background(), proc, sig, nil)
			if err != nil {
				t.Fatalf("Scan error: %v", err)
			}
			if ok != wantOK || (ok && addr != 0x10000+uint64(wantOff)) {
				t.Errorf("Scan = 0x%x, %v; naive match at 0x%x, %v", addr, ok, 0x10000+wantOff, wantOK)
			}
		})
	}
}

func TestSignatureMatch(t *testing.T) {
	sig := mustSig(t, "DE ?? B?")
	tests := []struct {
		data []byte
		want bool
	}{
		{[]byte{0xDE, 0x00, 0xB1}, true},
		{[]byte{0xDE, 0xFF, 0xBF, 0x99}, true},
		{[]byte{0xDE, 0x00, 0xC1}, false},
		{[]byte{0xDE, 0x00}, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := sig.Match(tt.data); got != tt.want {
			t.Errorf("Match(% x) = %v, want %v", tt.data, got, tt.want)
		}
	}
}

func TestInvalidPatternKeepsDetail(t *testing.T) {
	var e *errors.Error
	if !errors.As(invalidPattern("100% wildcard"), &e) {
		t.Fatal("not a structured error")
	}
	if e.Detail != "100% wildcard" {
		t.Errorf("detail = %q", e.Detail)
	}
}
