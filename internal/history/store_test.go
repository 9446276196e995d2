package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		run := Run{
			SessionID:  fmt.Sprintf("session-%d", i),
			RecordedAt: base.Add(time.Duration(i) * time.Minute),
			WAVPath:    fmt.Sprintf("recordings/recording_2026011514%02d00.wav", i),
			DurationMs: 60000,
			SampleRate: 16000,
			Model:      "base",
			Backend:    "local_whisper",
			Language:   "en",
			Transcript: fmt.Sprintf("transcript %d", i),
		}
		if err := s.Append(ctx, run); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	got, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(got))
	}
	// Newest first.
	if got[0].SessionID != "session-4" {
		t.Errorf("first run = %q, want session-4", got[0].SessionID)
	}
	if got[2].SessionID != "session-2" {
		t.Errorf("third run = %q, want session-2", got[2].SessionID)
	}
	if got[0].Transcript != "transcript 4" {
		t.Errorf("transcript = %q", got[0].Transcript)
	}
	if got[0].SampleRate != 16000 {
		t.Errorf("sample rate = %d", got[0].SampleRate)
	}
}

func TestRecent_EmptyStore(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no runs, got %d", len(got))
	}
}

func TestRecent_ZeroLimit(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for zero limit, got %v", got)
	}
}

func TestAppend_InterruptedRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := Run{
		SessionID:   "partial",
		RecordedAt:  time.Now().UTC(),
		WAVPath:     "recordings/recording_20260831_090503.wav",
		DurationMs:  12500,
		SampleRate:  44100,
		Interrupted: true,
	}
	if err := s.Append(ctx, run); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 run, got %d", len(got))
	}
	if !got[0].Interrupted {
		t.Error("interrupted flag lost on round trip")
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
}
