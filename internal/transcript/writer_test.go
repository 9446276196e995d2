package transcript

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tiroq/recap/internal/asr"
)

func sampleTranscript() *asr.Transcript {
	return &asr.Transcript{
		Segments: []asr.Segment{
			{Start: 0, End: 5*time.Second + 230*time.Millisecond, Text: "Hello, thanks for calling."},
			{Start: 5*time.Second + 500*time.Millisecond, End: 10*time.Second + 100*time.Millisecond, Text: "How can I help you today?"},
		},
		Language: "en",
		Duration: 10*time.Second + 100*time.Millisecond,
		Model:    "base",
		Backend:  "local_whisper",
	}
}

func tmpPath(t *testing.T, ext string) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "transcript"+ext)
}

func TestPrint_MatchesSegmentsExactly(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, sampleTranscript())

	banner := strings.Repeat("=", 50)
	want := "\n" + banner + "\n" +
		"TRANSCRIPTION RESULT:\n" +
		banner + "\n" +
		"Hello, thanks for calling. How can I help you today?\n" +
		banner + "\n"
	if got := buf.String(); got != want {
		t.Errorf("Print output mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestPrintSegments(t *testing.T) {
	var buf bytes.Buffer
	PrintSegments(&buf, sampleTranscript())

	want := "[00:00:00 -> 00:00:05] Hello, thanks for calling.\n" +
		"[00:00:05 -> 00:00:10] How can I help you today?\n"
	if got := buf.String(); got != want {
		t.Errorf("PrintSegments output mismatch:\ngot:\n%q\nwant:\n%q", got, want)
	}
}

func TestWriteText(t *testing.T) {
	path := tmpPath(t, ".txt")
	tr := sampleTranscript()

	if err := WriteText(path, tr); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)

	if !strings.Contains(got, "[00:00:00] Hello, thanks for calling.") {
		t.Errorf("missing first segment; got:\n%s", got)
	}
	if !strings.Contains(got, "[00:00:05] How can I help you today?") {
		t.Errorf("missing second segment; got:\n%s", got)
	}

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}
}

func TestWriteSRT(t *testing.T) {
	path := tmpPath(t, ".srt")
	tr := sampleTranscript()

	if err := WriteSRT(path, tr); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)

	if !strings.HasPrefix(got, "1\n") {
		t.Errorf("SRT should start with segment number 1; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:00,000 --> 00:00:05,230") {
		t.Errorf("missing first SRT timestamp; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:05,500 --> 00:00:10,100") {
		t.Errorf("missing second SRT timestamp; got:\n%s", got)
	}
	if !strings.Contains(got, "\n2\n") {
		t.Errorf("missing segment number 2; got:\n%s", got)
	}
}

func TestWriteVTT(t *testing.T) {
	path := tmpPath(t, ".vtt")
	tr := sampleTranscript()

	if err := WriteVTT(path, tr); err != nil {
		t.Fatalf("WriteVTT: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)

	if !strings.HasPrefix(got, "WEBVTT\n") {
		t.Errorf("VTT should start with WEBVTT header; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:00.000 --> 00:00:05.230") {
		t.Errorf("missing first VTT timestamp; got:\n%s", got)
	}
	if !strings.Contains(got, "00:00:05.500 --> 00:00:10.100") {
		t.Errorf("missing second VTT timestamp; got:\n%s", got)
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "recording_20260115_143052")

	if err := WriteAll(base, sampleTranscript(), []string{"txt", "srt", "vtt"}); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	for _, ext := range []string{".txt", ".srt", ".vtt"} {
		if _, err := os.Stat(base + ext); err != nil {
			t.Errorf("missing %s output: %v", ext, err)
		}
	}
}

func TestWriteAll_DefaultsToText(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "out")

	if err := WriteAll(base, sampleTranscript(), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if _, err := os.Stat(base + ".txt"); err != nil {
		t.Errorf("expected default txt output: %v", err)
	}
	if _, err := os.Stat(base + ".srt"); err == nil {
		t.Error("srt should not be written by default")
	}
}

func TestWriteAll_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "out")

	err := WriteAll(base, sampleTranscript(), []string{"txt", "pdf"})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
	if !strings.Contains(err.Error(), `unknown format "pdf"`) {
		t.Errorf("unexpected error: %v", err)
	}
	// Known formats are still written.
	if _, err := os.Stat(base + ".txt"); err != nil {
		t.Errorf("txt should still be written: %v", err)
	}
}

func TestWriteText_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := WriteText(path, sampleTranscript()); err != nil {
		t.Fatalf("WriteText: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
