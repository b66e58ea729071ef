package memory

import (
	"fmt"
	"strings"

	"github.com/wippyai/lasr/errors"
)

// SigByte is one signature position. A byte b matches when b&Mask == Value.
// Value never has bits outside Mask.
type SigByte struct {
	Value byte
	Mask  byte
}

// Matches reports whether b satisfies the position.
func (s SigByte) Matches(b byte) bool {
	return b&s.Mask == s.Value
}

// Signature is a byte pattern with per-nibble wildcards.
type Signature []SigByte

// ParseSignature parses whitespace separated tokens. A token is two
// characters, each a hex digit or '?', or a lone "?" for a whole wildcard
// byte: "48 8B ?? ?5 0?".
func ParseSignature(pattern string) (Signature, error) {
	tokens := strings.Fields(pattern)
	if len(tokens) == 0 {
		return nil, invalidPattern("signature is empty")
	}
	sig := make(Signature, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "?" {
			sig = append(sig, SigByte{})
			continue
		}
		if len(tok) != 2 {
			return nil, invalidPattern("signature token must be 2 hex chars or '?' wildcards")
		}
		hi, hiMask, ok1 := nibble(tok[0])
		lo, loMask, ok2 := nibble(tok[1])
		if !ok1 || !ok2 {
			return nil, invalidPattern("signature contains non-hex characters")
		}
		sig = append(sig, SigByte{Value: hi<<4 | lo, Mask: hiMask<<4 | loMask})
	}
	return sig, nil
}

func nibble(c byte) (value, mask byte, ok bool) {
	switch {
	case c == '?':
		return 0, 0, true
	case c >= '0' && c <= '9':
		return c - '0', 0xF, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, 0xF, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, 0xF, true
	}
	return 0, 0, false
}

func invalidPattern(detail string) error {
	return errors.New(errors.PhaseScan, errors.KindInvalidPattern).Detail("%s", detail).Build()
}

// Match reports whether data starts with the signature.
func (s Signature) Match(data []byte) bool {
	if len(data) < len(s) {
		return false
	}
	for i, sb := range s {
		if !sb.Matches(data[i]) {
			return false
		}
	}
	return true
}

func (s Signature) String() string {
	var b strings.Builder
	for i, sb := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		for shift := 4; shift >= 0; shift -= 4 {
			if (sb.Mask>>shift)&0xF == 0 {
				b.WriteByte('?')
			} else {
				fmt.Fprintf(&b, "%X", (sb.Value>>shift)&0xF)
			}
		}
	}
	return b.String()
}
