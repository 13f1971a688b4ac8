package profile

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeClock advances by step on every call.
func fakeClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestRecorderNestedRegions(t *testing.T) {
	r := NewRecorder(nil)
	r.now = fakeClock(time.Millisecond)

	outer := r.Begin("generate")
	inner := r.Begin("path")
	inner.End()
	outer.End()

	timings := r.Timings()
	if len(timings) != 2 {
		t.Fatalf("expected 2 timings, got %d", len(timings))
	}

	if timings[0].Name != "path" || timings[0].Path != "generate/path" || timings[0].Depth != 1 {
		t.Errorf("unexpected inner timing: %+v", timings[0])
	}
	if timings[1].Name != "generate" || timings[1].Path != "generate" || timings[1].Depth != 0 {
		t.Errorf("unexpected outer timing: %+v", timings[1])
	}
	if timings[0].Duration != time.Millisecond {
		t.Errorf("inner duration = %v, want 1ms", timings[0].Duration)
	}
	if timings[1].Duration != 3*time.Millisecond {
		t.Errorf("outer duration = %v, want 3ms", timings[1].Duration)
	}
	if r.Open() != 0 {
		t.Errorf("expected no open regions, got %d", r.Open())
	}
}

func TestRegionEndIdempotent(t *testing.T) {
	r := NewRecorder(nil)
	g := r.Begin("sample")
	g.End()
	g.End()

	if n := len(r.Timings()); n != 1 {
		t.Errorf("expected 1 timing after double End, got %d", n)
	}
}

func TestOuterEndClosesInner(t *testing.T) {
	r := NewRecorder(nil)
	outer := r.Begin("a")
	r.Begin("b") // never ended
	outer.End()

	if r.Open() != 0 {
		t.Errorf("ending the outer region should unwind the stack, %d still open", r.Open())
	}

	next := r.Begin("c")
	next.End()
	timings := r.Timings()
	if last := timings[len(timings)-1]; last.Path != "c" {
		t.Errorf("expected fresh top-level region, got path %q", last.Path)
	}
}

func TestRecorderTotal(t *testing.T) {
	r := NewRecorder(nil)
	r.now = fakeClock(2 * time.Millisecond)

	for range 3 {
		r.Begin("triangulate").End()
	}
	r.Begin("other").End()

	if got := r.Total("triangulate"); got != 6*time.Millisecond {
		t.Errorf("Total(triangulate) = %v, want 6ms", got)
	}
	if got := r.Total("missing"); got != 0 {
		t.Errorf("Total(missing) = %v, want 0", got)
	}
}

func TestRecorderLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRecorder(zap.New(core))

	r.Begin("path").End()
	r.Log("nodes placed", zap.Int("count", 10))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].Message != "region" || entries[0].ContextMap()["region"] != "path" {
		t.Errorf("unexpected region entry: %+v", entries[0])
	}
	if entries[1].Message != "nodes placed" || entries[1].ContextMap()["count"] != int64(10) {
		t.Errorf("unexpected log entry: %+v", entries[1])
	}
	if entries[0].LoggerName != "profile" {
		t.Errorf("expected logger name 'profile', got %q", entries[0].LoggerName)
	}
}

func TestNop(t *testing.T) {
	p := Nop()
	g := p.Begin("anything")
	g.End()
	g.End()
	p.Log("ignored")
}
