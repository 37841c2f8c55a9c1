package relay

import (
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Pacer re-buffers generation fragments so the transport sees a bounded frame
// rate instead of one tiny frame per token. It flushes on whichever fires
// first: the interval ticker or the size threshold. Flushes are serialized
// under the mutex, so chunk events preserve arrival order.
type Pacer struct {
	mu       sync.Mutex
	buf      strings.Builder
	flushFn  func(text string)
	maxChars int
	ticker   *time.Ticker
	done     chan struct{}
	stopped  bool
}

func NewPacer(interval time.Duration, maxChars int, flushFn func(text string)) *Pacer {
	if interval <= 0 {
		interval = 60 * time.Millisecond
	}
	if maxChars <= 0 {
		maxChars = 800
	}
	p := &Pacer{
		flushFn:  flushFn,
		maxChars: maxChars,
		ticker:   time.NewTicker(interval),
		done:     make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Pacer) loop() {
	for {
		select {
		case <-p.ticker.C:
			p.mu.Lock()
			p.flushLocked()
			p.mu.Unlock()
		case <-p.done:
			return
		}
	}
}

// Add appends text; a flush fires immediately once the buffer crosses the
// size threshold.
func (p *Pacer) Add(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.buf.WriteString(text)
	if p.buf.Len() >= p.maxChars {
		p.flushLocked()
	}
}

// Finish forces a final flush of any remaining text and stops the ticker.
// Used on clean stream completion.
func (p *Pacer) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.flushLocked()
	p.stopLocked()
}

// Stop discards buffered text and prevents any further flush, including a
// pending timer tick. Used on cancellation.
func (p *Pacer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.buf.Reset()
	p.stopLocked()
}

func (p *Pacer) flushLocked() {
	if p.stopped || p.buf.Len() == 0 {
		return
	}
	text := p.buf.String()
	p.buf.Reset()
	p.flushFn(text)
}

func (p *Pacer) stopLocked() {
	p.stopped = true
	p.ticker.Stop()
	close(p.done)
}

// needsSpace reports whether a corrective space belongs between the previous
// emitted rune and the next fragment. Upstream tokenizers occasionally glue
// words together across fragment boundaries; this repairs only the
// unambiguous case of alphanumeric-meets-alphanumeric.
func needsSpace(last rune, next string) bool {
	if last == 0 || next == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(next)
	switch first {
	case ' ', '\n', '\t':
		return false
	}
	if strings.ContainsRune(".,;:!?)", first) {
		return false
	}
	switch last {
	case '(', '\n', '\t', ' ':
		return false
	}
	return isAlphaNum(last) && isAlphaNum(first)
}

func isAlphaNum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}
