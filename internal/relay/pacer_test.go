package relay

import (
	"strings"
	"sync"
	"testing"
	"time"
)

type flushRecorder struct {
	mu      sync.Mutex
	flushes []string
}

func (f *flushRecorder) record(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes = append(f.flushes, text)
}

func (f *flushRecorder) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.flushes...)
}

func TestPacer_SizeThresholdFlushesImmediately(t *testing.T) {
	rec := &flushRecorder{}
	p := NewPacer(time.Hour, 10, rec.record)
	defer p.Stop()

	p.Add("0123456789extra")

	flushes := rec.all()
	if len(flushes) != 1 || flushes[0] != "0123456789extra" {
		t.Fatalf("expected immediate size flush, got %v", flushes)
	}
}

func TestPacer_IntervalFlush(t *testing.T) {
	rec := &flushRecorder{}
	p := NewPacer(10*time.Millisecond, 1000, rec.record)
	defer p.Stop()

	p.Add("tick")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(rec.all()) > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	flushes := rec.all()
	if len(flushes) != 1 || flushes[0] != "tick" {
		t.Fatalf("expected one interval flush, got %v", flushes)
	}
}

func TestPacer_FinishFlushesRemainder(t *testing.T) {
	rec := &flushRecorder{}
	p := NewPacer(time.Hour, 1000, rec.record)

	p.Add("tail")
	p.Finish()

	flushes := rec.all()
	if len(flushes) != 1 || flushes[0] != "tail" {
		t.Fatalf("expected final flush of remainder, got %v", flushes)
	}

	// stopped pacer ignores further input
	p.Add("late")
	p.Finish()
	if got := rec.all(); len(got) != 1 {
		t.Fatalf("no flushes after Finish, got %v", got)
	}
}

func TestPacer_StopDiscardsBuffer(t *testing.T) {
	rec := &flushRecorder{}
	p := NewPacer(time.Hour, 1000, rec.record)

	p.Add("discarded")
	p.Stop()

	if got := rec.all(); len(got) != 0 {
		t.Fatalf("Stop must not flush, got %v", got)
	}
}

func TestPacer_ConcatenationPreserved(t *testing.T) {
	rec := &flushRecorder{}
	p := NewPacer(time.Millisecond, 8, rec.record)

	parts := []string{"The ", "quick ", "brown ", "fox ", "jumps"}
	for _, s := range parts {
		p.Add(s)
		time.Sleep(2 * time.Millisecond)
	}
	p.Finish()

	if got := strings.Join(rec.all(), ""); got != "The quick brown fox jumps" {
		t.Fatalf("flushes lost or reordered content: %q", got)
	}
}

func TestNeedsSpace(t *testing.T) {
	cases := []struct {
		last rune
		next string
		want bool
	}{
		{0, "hello", false},
		{'o', "world", true},
		{'o', " world", false},
		{'o', ".", false},
		{'o', ",next", false},
		{' ', "world", false},
		{'(', "note", false},
		{'o', ")", false},
		{'9', "th", true},
		{'.', "Next", false},
	}
	for _, c := range cases {
		if got := needsSpace(c.last, c.next); got != c.want {
			t.Errorf("needsSpace(%q, %q) = %v, want %v", c.last, c.next, got, c.want)
		}
	}
}
