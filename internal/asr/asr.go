// Package asr defines the transcription backend boundary. Inference itself
// (beam search, VAD, quantized kernels) lives entirely inside the invoked
// engine; this package only carries audio paths in and segments out.
package asr

import (
	"strings"
	"time"
)

// Segment represents a single transcribed segment with timing.
type Segment struct {
	Start    time.Duration
	End      time.Duration
	Text     string
	Language string
	Score    float64 // confidence 0.0–1.0
}

// Transcript represents a complete transcription result.
type Transcript struct {
	Segments []Segment
	Language string
	Duration time.Duration
	Model    string
	Backend  string
}

// Text joins all segment texts into a single line, trimming the padding
// whisper emits around each segment.
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if s := strings.TrimSpace(seg.Text); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// TranscribeOptions configures a transcription request.
type TranscribeOptions struct {
	Language   string // "" = auto-detect
	Model      string // backend-specific model name
	Timestamps bool
}

// HealthStatus reports backend health.
type HealthStatus struct {
	OK      bool
	Backend string
	Message string
	Latency time.Duration
}

// Backend is the interface that transcription backends must implement.
type Backend interface {
	Name() string
	TranscribeFile(filePath string, opts TranscribeOptions) (*Transcript, error)
	HealthCheck() (*HealthStatus, error)
}
