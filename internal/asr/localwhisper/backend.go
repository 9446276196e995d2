// Package localwhisper shells out to a whisper CLI binary for fully local
// transcription. The engine owns beam search, VAD and device dispatch; this
// backend only builds arguments, enforces a timeout and parses JSON output.
package localwhisper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/tiroq/recap/internal/asr"
)

// Config configures the local whisper CLI backend.
type Config struct {
	BinaryPath     string // path to whisper-cpp or faster-whisper CLI
	Command        string // full command override, parsed shell-style; takes precedence over BinaryPath
	ModelPath      string // path to .bin model file
	Model          string // model name (e.g. "small", "base")
	Threads        int    // CPU threads (0 = auto)
	TimeoutSeconds int    // default 300 (5 minutes for long recordings)
}

// Backend invokes a whisper CLI subprocess per file.
type Backend struct {
	cfg     Config
	argv    []string // resolved binary + leading args
	confErr error
}

// NewBackend creates a new local whisper backend with the given config.
func NewBackend(cfg Config) *Backend {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	b := &Backend{cfg: cfg}
	if cfg.Command != "" {
		args, err := shellwords.NewParser().Parse(cfg.Command)
		if err != nil {
			b.confErr = fmt.Errorf("localwhisper: parse command %q: %w", cfg.Command, err)
		} else if len(args) == 0 {
			b.confErr = fmt.Errorf("localwhisper: command is empty")
		} else {
			b.argv = args
		}
	} else {
		b.argv = []string{cfg.BinaryPath}
	}
	return b
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return "local_whisper"
}

// resolveBinary locates the configured binary. Bare command names are looked
// up on $PATH; names containing a path separator are checked directly.
func (b *Backend) resolveBinary() (string, error) {
	name := b.argv[0]
	if !strings.ContainsRune(name, filepath.Separator) {
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("binary %q not found on PATH: %w", name, err)
		}
		return path, nil
	}
	info, err := os.Stat(name)
	if err != nil {
		return "", fmt.Errorf("binary not found at %q: %w", name, err)
	}
	if info.Mode()&0111 == 0 {
		return "", fmt.Errorf("binary at %q is not executable", name)
	}
	return name, nil
}

// whisperSegment represents a single segment in whisper CLI JSON output.
type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// whisperOutput represents the JSON output from whisper CLI.
type whisperOutput struct {
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

// TranscribeFile invokes the whisper CLI subprocess to transcribe an audio file.
func (b *Backend) TranscribeFile(filePath string, opts asr.TranscribeOptions) (*asr.Transcript, error) {
	if b.confErr != nil {
		return nil, b.confErr
	}
	bin, err := b.resolveBinary()
	if err != nil {
		return nil, fmt.Errorf("localwhisper: %w", err)
	}

	args := b.buildArgs(filePath, opts)
	cmd := exec.Command(bin, args...)

	// Use process group so we can kill the entire tree on timeout
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("localwhisper: failed to start subprocess: %w", err)
	}

	var mu sync.Mutex
	var killed bool
	timer := time.AfterFunc(time.Duration(b.cfg.TimeoutSeconds)*time.Second, func() {
		mu.Lock()
		killed = true
		mu.Unlock()
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	})

	err = cmd.Wait()
	timer.Stop()

	if err != nil {
		mu.Lock()
		wasKilled := killed
		mu.Unlock()
		if wasKilled {
			return nil, fmt.Errorf("localwhisper: transcription timed out after %d seconds", b.cfg.TimeoutSeconds)
		}
		return nil, fmt.Errorf("localwhisper: subprocess failed: %w", err)
	}

	var output whisperOutput
	if err := json.Unmarshal(stdout.Bytes(), &output); err != nil {
		return nil, fmt.Errorf("localwhisper: failed to parse JSON output: %w", err)
	}

	transcript := &asr.Transcript{
		Language: output.Language,
		Model:    b.resolveModel(opts),
		Backend:  b.Name(),
	}

	for _, seg := range output.Segments {
		transcript.Segments = append(transcript.Segments, asr.Segment{
			Start: floatToDuration(seg.Start),
			End:   floatToDuration(seg.End),
			Text:  seg.Text,
			Score: seg.Score,
		})
	}

	// Total duration is the last segment's end.
	if len(transcript.Segments) > 0 {
		transcript.Duration = transcript.Segments[len(transcript.Segments)-1].End
	}

	return transcript, nil
}

// HealthCheck verifies the whisper binary exists, is executable, and responds.
// A failing check never returns an error; the status message explains why.
func (b *Backend) HealthCheck() (*asr.HealthStatus, error) {
	status := &asr.HealthStatus{
		Backend: b.Name(),
	}
	if b.confErr != nil {
		status.Message = b.confErr.Error()
		return status, nil
	}

	bin, err := b.resolveBinary()
	if err != nil {
		status.Message = err.Error()
		return status, nil
	}

	if b.cfg.ModelPath != "" {
		if _, err := os.Stat(b.cfg.ModelPath); err != nil {
			status.Message = fmt.Sprintf("model not found at %q: %v", b.cfg.ModelPath, err)
			return status, nil
		}
	}

	// Run binary with --help to verify it executes at all.
	start := time.Now()
	cmd := exec.Command(bin, "--help")
	err = cmd.Run()
	status.Latency = time.Since(start)

	// --help may exit non-zero on some binaries; we just need it to execute
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			status.Message = fmt.Sprintf("binary failed to execute: %v", err)
			return status, nil
		}
	}

	status.OK = true
	status.Message = "binary is available and executable"
	return status, nil
}

// buildArgs constructs the CLI arguments for the whisper binary.
func (b *Backend) buildArgs(filePath string, opts asr.TranscribeOptions) []string {
	args := append([]string{}, b.argv[1:]...)

	if b.cfg.ModelPath != "" {
		args = append(args, "--model", b.cfg.ModelPath)
	}

	args = append(args, "--output-json")

	if opts.Language != "" {
		args = append(args, "--language", opts.Language)
	}

	if b.cfg.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(b.cfg.Threads))
	}

	args = append(args, filePath)
	return args
}

// resolveModel returns the model name, preferring opts over config.
func (b *Backend) resolveModel(opts asr.TranscribeOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return b.cfg.Model
}

// floatToDuration converts seconds (float64) to time.Duration.
func floatToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
