package memory

import (
	"context"

	"github.com/wippyai/lasr/process"
)

const (
	// ChunkSize is the number of bytes read per request.
	ChunkSize = 64 << 10
	// YieldEvery is the number of chunks between suspension points.
	YieldEvery = 64
)

// Yield suspends the scan so the caller's scheduler can run. A non-nil
// error aborts the scan.
type Yield func(ctx context.Context) error

// matcher is a streaming automaton for a Signature. Bit j of the state is
// set when the last j+1 bytes seen match the first j+1 positions. The state
// survives between chunks so matches spanning a chunk boundary are found.
type matcher struct {
	accept [256][]uint64
	state  []uint64
	last   uint64
	lastW  int
	length int
}

func newMatcher(sig Signature) *matcher {
	words := (len(sig) + 63) / 64
	m := &matcher{
		state:  make([]uint64, words),
		length: len(sig),
		lastW:  (len(sig) - 1) / 64,
		last:   1 << uint((len(sig)-1)%64),
	}
	for b := 0; b < 256; b++ {
		row := make([]uint64, words)
		for j, sb := range sig {
			if sb.Matches(byte(b)) {
				row[j/64] |= 1 << uint(j%64)
			}
		}
		m.accept[b] = row
	}
	return m
}

func (m *matcher) reset() {
	clear(m.state)
}

// step consumes b and reports whether a full match ends at it.
func (m *matcher) step(b byte) bool {
	row := m.accept[b]
	carry := uint64(1)
	for i, w := range m.state {
		next := w >> 63
		m.state[i] = (w<<1 | carry) & row[i]
		carry = next
	}
	return m.state[m.lastW]&m.last != 0
}

// Scan searches every readable region for sig and returns the address of
// the first match. Regions are read in ChunkSize pieces; a failed read ends
// the current region. yield, when set, runs after every YieldEvery chunks.
func Scan(ctx context.Context, r RegionReader, sig Signature, yield Yield) (uint64, bool, error) {
	if len(sig) == 0 {
		return 0, false, invalidPattern("signature is empty")
	}
	regions, err := r.Regions()
	if err != nil {
		return 0, false, err
	}

	m := newMatcher(sig)
	buf := make([]byte, ChunkSize)
	chunks := 0
	for _, reg := range regions {
		if !reg.Readable() {
			continue
		}
		m.reset()
		if addr, ok, err := scanRegion(ctx, r, reg, m, buf, &chunks, yield); ok || err != nil {
			return addr, ok, err
		}
	}
	return 0, false, nil
}

func scanRegion(ctx context.Context, r Reader, reg process.Region, m *matcher, buf []byte, chunks *int, yield Yield) (uint64, bool, error) {
	for off := reg.Start; off < reg.End; {
		n := min(uint64(len(buf)), reg.End-off)
		if err := r.Read(off, buf[:n]); err != nil {
			return 0, false, nil
		}
		for i, b := range buf[:n] {
			if m.step(b) {
				return off + uint64(i) + 1 - uint64(m.length), true, nil
			}
		}
		off += n

		*chunks++
		if *chunks%YieldEvery == 0 {
			if yield != nil {
				if err := yield(ctx); err != nil {
					return 0, false, err
				}
			} else if err := ctx.Err(); err != nil {
				return 0, false, err
			}
		}
	}
	return 0, false, nil
}
