package agent

import (
	"strings"
	"unicode/utf8"
)

// textDecoder decodes UTF-8 incrementally. Bytes of a character split
// across chunks are held back until the rest of the character arrives.
type textDecoder struct {
	pending []byte
	out     strings.Builder
}

func (d *textDecoder) Write(p []byte) {
	buf := append(d.pending, p...)
	cut := incompleteSuffix(buf)
	d.out.WriteString(strings.ToValidUTF8(string(buf[:cut]), string(utf8.RuneError)))
	d.pending = append([]byte(nil), buf[cut:]...)
}

// String flushes any held-back bytes and returns the decoded text.
func (d *textDecoder) String() string {
	if len(d.pending) > 0 {
		d.out.WriteString(strings.ToValidUTF8(string(d.pending), string(utf8.RuneError)))
		d.pending = nil
	}
	return d.out.String()
}

// incompleteSuffix returns the index where a trailing incomplete UTF-8
// sequence starts, or len(b) when b ends on a character boundary.
func incompleteSuffix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
