package asr

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tiroq/recap/internal/diaglog"
)

func sampleTranscript(text string) *Transcript {
	return &Transcript{
		Segments: []Segment{{Start: 0, End: time.Second, Text: text, Score: 0.9}},
		Language: "en",
		Duration: time.Second,
	}
}

func TestRegistry_FirstRegisteredIsPrimary(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewStaticBackend("a", sampleTranscript("first")))
	r.Register("b", NewStaticBackend("b", sampleTranscript("second")))

	got, err := r.TranscribeWithFallback("/tmp/x.wav", TranscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Backend != "a" {
		t.Errorf("expected primary backend %q, got %q", "a", got.Backend)
	}
}

func TestRegistry_SetPrimary(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NewStaticBackend("a", sampleTranscript("first")))
	r.Register("b", NewStaticBackend("b", sampleTranscript("second")))
	r.SetPrimary("b")

	got, err := r.TranscribeWithFallback("/tmp/x.wav", TranscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Backend != "b" {
		t.Errorf("expected backend %q, got %q", "b", got.Backend)
	}
}

func TestRegistry_FallbackOnPrimaryError(t *testing.T) {
	r := NewRegistry()
	failing := &StaticBackend{BackendName: "broken", Err: errors.New("engine exploded")}
	r.Register("broken", failing)
	r.Register("spare", NewStaticBackend("spare", sampleTranscript("rescued")))
	r.SetFallback("spare")

	got, err := r.TranscribeWithFallback("/tmp/x.wav", TranscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Backend != "spare" {
		t.Errorf("expected fallback backend %q, got %q", "spare", got.Backend)
	}
	if got.Text() != "rescued" {
		t.Errorf("expected text %q, got %q", "rescued", got.Text())
	}
}

func TestRegistry_FallbackLogsTransition(t *testing.T) {
	t.Setenv("RECAP_DEBUG", "true")
	logPath := filepath.Join(t.TempDir(), "debug.ndjson")
	dlog, err := diaglog.New(logPath)
	if err != nil {
		t.Fatalf("failed to open debug log: %v", err)
	}

	r := NewRegistry()
	r.SetLogger(dlog)
	r.Register("broken", &StaticBackend{BackendName: "broken", Err: errors.New("engine exploded")})
	r.Register("spare", NewStaticBackend("spare", sampleTranscript("rescued")))
	r.SetFallback("spare")

	if _, err := r.TranscribeWithFallback("/tmp/x.wav", TranscribeOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := dlog.Close(); err != nil {
		t.Fatalf("failed to close debug log: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read debug log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, diaglog.EventTranscribeFallback) {
		t.Errorf("expected a %s event, got: %s", diaglog.EventTranscribeFallback, line)
	}
	if !strings.Contains(line, "broken") || !strings.Contains(line, "spare") {
		t.Errorf("expected backend names in the event payload, got: %s", line)
	}
}

func TestRegistry_BothFail(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", &StaticBackend{BackendName: "broken", Err: errors.New("primary down")})
	r.Register("also-broken", &StaticBackend{BackendName: "also-broken", Err: errors.New("fallback down")})
	r.SetFallback("also-broken")

	_, err := r.TranscribeWithFallback("/tmp/x.wav", TranscribeOptions{})
	if err == nil {
		t.Fatal("expected error when both backends fail")
	}
	if !strings.Contains(err.Error(), "also failed") {
		t.Errorf("expected combined failure message, got: %v", err)
	}
}

func TestRegistry_NoPrimary(t *testing.T) {
	r := NewRegistry()
	_, err := r.TranscribeWithFallback("/tmp/x.wav", TranscribeOptions{})
	if err == nil {
		t.Fatal("expected error for empty registry")
	}
}

func TestRegistry_NoFallbackConfigured(t *testing.T) {
	r := NewRegistry()
	r.Register("broken", &StaticBackend{BackendName: "broken", Err: errors.New("down")})

	_, err := r.TranscribeWithFallback("/tmp/x.wav", TranscribeOptions{})
	if err == nil {
		t.Fatal("expected error when primary fails with no fallback")
	}
	if !strings.Contains(err.Error(), `primary backend "broken" failed`) {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestTranscript_Text(t *testing.T) {
	tr := &Transcript{Segments: []Segment{
		{Text: " Hello world. "},
		{Text: " Second segment."},
		{Text: ""},
	}}
	want := "Hello world. Second segment."
	if got := tr.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestStaticBackend_DeterministicOutput(t *testing.T) {
	b := NewStaticBackend("stub", sampleTranscript("always the same"))
	first, err := b.TranscribeFile("/a.wav", TranscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := b.TranscribeFile("/b.wav", TranscribeOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Text() != second.Text() {
		t.Errorf("static backend output differs: %q vs %q", first.Text(), second.Text())
	}
}
