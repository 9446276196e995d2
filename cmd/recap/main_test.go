package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tiroq/recap/internal/asr"
	"github.com/tiroq/recap/internal/audio"
	"github.com/tiroq/recap/internal/config"
	"github.com/tiroq/recap/internal/diaglog"
	"github.com/tiroq/recap/internal/fileutil"
	"github.com/tiroq/recap/internal/history"
)

// toneSource streams a constant tone in 10ms chunks, standing in for the
// microphone.
type toneSource struct {
	rate int

	mu   sync.Mutex
	stop chan struct{}
}

func (s *toneSource) Start(onSamples func([]float32)) error {
	s.mu.Lock()
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	chunk := make([]float32, s.rate/100)
	for i := range chunk {
		chunk[i] = 0.25
	}
	go func() {
		tick := time.NewTicker(10 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				onSamples(chunk)
			}
		}
	}()
	return nil
}

func (s *toneSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}

func (s *toneSource) Close() error { return nil }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Recording.DurationSeconds = 1
	cfg.Recording.SampleRate = 8000
	cfg.Recording.OutputDir = filepath.Join(dir, "recordings")
	cfg.History.Path = filepath.Join(dir, "history.db")
	return cfg
}

func staticRegistry(result *asr.Transcript) *asr.Registry {
	reg := asr.NewRegistry()
	reg.Register("static", asr.NewStaticBackend("static", result))
	return reg
}

func TestRunRecord_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	stub := &asr.Transcript{
		Segments: []asr.Segment{
			{Start: 0, End: time.Second, Text: "hello from the stub"},
		},
		Language: "en",
		Model:    "base",
	}
	reg := staticRegistry(stub)
	src := &toneSource{rate: cfg.Recording.SampleRate}

	err := runRecord(context.Background(), cfg, reg, src, false, diaglog.NewNoOp())
	if err != nil {
		t.Fatalf("runRecord: %v", err)
	}

	entries, err := os.ReadDir(cfg.Recording.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	var wavPath string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wav") {
			wavPath = filepath.Join(cfg.Recording.OutputDir, e.Name())
		}
	}
	if wavPath == "" {
		t.Fatal("no wav file written")
	}

	// Filename parses back to a recent time.
	stamp, err := fileutil.ParseRecordingTime(wavPath)
	if err != nil {
		t.Fatalf("ParseRecordingTime: %v", err)
	}
	if d := time.Since(stamp); d < 0 || d > time.Minute {
		t.Errorf("implausible recording timestamp %v", stamp)
	}

	// WAV header checks: mono 16-bit at the configured rate, duration close
	// to the requested one second.
	info, err := audio.Probe(wavPath)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.SampleRate != cfg.Recording.SampleRate {
		t.Errorf("sample rate = %d, want %d", info.SampleRate, cfg.Recording.SampleRate)
	}
	if info.NumChannels != 1 || info.BitDepth != 16 {
		t.Errorf("format = %d ch / %d bit, want mono 16-bit", info.NumChannels, info.BitDepth)
	}
	if info.Duration < 500*time.Millisecond || info.Duration > 2*time.Second {
		t.Errorf("duration = %v, want about 1s", info.Duration)
	}

	// Transcript txt is written next to the recording.
	txtPath := strings.TrimSuffix(wavPath, ".wav") + ".txt"
	data, err := os.ReadFile(txtPath)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(data), "hello from the stub") {
		t.Errorf("transcript missing stub text: %s", data)
	}

	// Metadata sidecar records the successful transcription.
	meta, err := fileutil.ReadMetadata(wavPath)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.ASR == nil || !meta.ASR.Success {
		t.Errorf("metadata ASR = %+v, want success", meta.ASR)
	}
	if meta.SessionID == "" {
		t.Error("metadata missing session id")
	}

	// History row appended.
	hs, err := history.Open(context.Background(), cfg.History.Path)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	defer hs.Close()
	runs, err := hs.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 history run, got %d", len(runs))
	}
	if runs[0].Transcript != "hello from the stub" {
		t.Errorf("history transcript = %q", runs[0].Transcript)
	}
}

func TestRunRecord_InterruptKeepsPartial(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.DurationSeconds = 30

	reg := staticRegistry(&asr.Transcript{
		Segments: []asr.Segment{{Text: "partial run"}},
	})
	src := &toneSource{rate: cfg.Recording.SampleRate}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if err := runRecord(ctx, cfg, reg, src, false, diaglog.NewNoOp()); err != nil {
		t.Fatalf("runRecord: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("interrupt did not shorten the run, took %v", elapsed)
	}

	entries, err := os.ReadDir(cfg.Recording.OutputDir)
	if err != nil {
		t.Fatalf("read output dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wav") {
			found = true
			meta, err := fileutil.ReadMetadata(filepath.Join(cfg.Recording.OutputDir, e.Name()))
			if err != nil {
				t.Fatalf("ReadMetadata: %v", err)
			}
			if !meta.Interrupted {
				t.Error("metadata should record the interrupt")
			}
		}
	}
	if !found {
		t.Fatal("partial wav was not kept")
	}
}

// failingBackend is healthy but always fails to transcribe.
type failingBackend struct{}

func (failingBackend) Name() string { return "failing" }

func (failingBackend) TranscribeFile(string, asr.TranscribeOptions) (*asr.Transcript, error) {
	return nil, os.ErrDeadlineExceeded
}

func (failingBackend) HealthCheck() (*asr.HealthStatus, error) {
	return &asr.HealthStatus{OK: true, Backend: "failing", Message: "healthy"}, nil
}

func TestRunRecord_TranscriptionFailureKeepsAudio(t *testing.T) {
	cfg := testConfig(t)
	reg := asr.NewRegistry()
	reg.Register("failing", failingBackend{})

	src := &toneSource{rate: cfg.Recording.SampleRate}
	err := runRecord(context.Background(), cfg, reg, src, false, diaglog.NewNoOp())
	if err == nil {
		t.Fatal("expected error when transcription fails")
	}

	entries, _ := os.ReadDir(cfg.Recording.OutputDir)
	var wavPath string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".wav") {
			wavPath = filepath.Join(cfg.Recording.OutputDir, e.Name())
		}
	}
	if wavPath == "" {
		t.Fatal("audio file should survive a transcription failure")
	}
	meta, err := fileutil.ReadMetadata(wavPath)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.ASR == nil || meta.ASR.Success {
		t.Errorf("metadata should record the failure, got %+v", meta.ASR)
	}
}

func TestSplitFormats(t *testing.T) {
	got := splitFormats("txt, srt,,vtt ")
	want := []string{"txt", "srt", "vtt"}
	if len(got) != len(want) {
		t.Fatalf("splitFormats = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitFormats[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if out := splitFormats(""); out != nil {
		t.Errorf("splitFormats(\"\") = %v, want nil", out)
	}
}
