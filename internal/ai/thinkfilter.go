package ai

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// thinkFilter removes <think>...</think> reasoning segments from a fragment
// stream. Markers can be split across fragments, so a possible partial marker at
// the end of a fragment is carried over to the next call.
type thinkFilter struct {
	inThink bool
	carry   string
}

// Feed returns the visible portion of chunk. It may return "" while a reasoning
// segment or a partial marker is being consumed.
func (f *thinkFilter) Feed(chunk string) string {
	s := f.carry + chunk
	f.carry = ""

	var out strings.Builder
	for s != "" {
		if f.inThink {
			if i := strings.Index(s, thinkClose); i >= 0 {
				s = s[i+len(thinkClose):]
				f.inThink = false
				continue
			}
			f.carry = trailingPartial(s, thinkClose)
			return out.String()
		}
		if i := strings.Index(s, thinkOpen); i >= 0 {
			out.WriteString(s[:i])
			s = s[i+len(thinkOpen):]
			f.inThink = true
			continue
		}
		p := trailingPartial(s, thinkOpen)
		out.WriteString(s[:len(s)-len(p)])
		f.carry = p
		return out.String()
	}
	return out.String()
}

// Flush releases any held-back partial marker once the stream is known to be done.
func (f *thinkFilter) Flush() string {
	if f.inThink {
		f.carry = ""
		return ""
	}
	p := f.carry
	f.carry = ""
	return p
}

// trailingPartial returns the longest proper prefix of marker that is a suffix of s.
func trailingPartial(s, marker string) string {
	max := len(marker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(s, marker[:n]) {
			return marker[:n]
		}
	}
	return ""
}
