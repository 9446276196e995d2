// Command recap records microphone audio for a fixed duration, saves it as a
// timestamped 16-bit PCM mono WAV file, and transcribes it with a Whisper
// backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tiroq/recap/internal/asr"
	"github.com/tiroq/recap/internal/asr/localwhisper"
	"github.com/tiroq/recap/internal/asr/remotewhisper"
	"github.com/tiroq/recap/internal/audio"
	"github.com/tiroq/recap/internal/capture"
	"github.com/tiroq/recap/internal/config"
	"github.com/tiroq/recap/internal/diaglog"
	"github.com/tiroq/recap/internal/fileutil"
	"github.com/tiroq/recap/internal/history"
	"github.com/tiroq/recap/internal/modelstore"
	"github.com/tiroq/recap/internal/transcript"
	"github.com/tiroq/recap/internal/watch"
)

const logPrefix = "[recap]"

var (
	// Version is set at build time via -ldflags "-X main.Version=..."
	Version = "dev"

	outLog = log.New(os.Stdout, logPrefix+" ", log.LstdFlags)
	errLog = log.New(os.Stderr, logPrefix+" ", log.LstdFlags)
)

func main() {
	var (
		configPath     = flag.String("config", "", "path to YAML config file")
		duration       = flag.Int("duration", 60, "recording duration in seconds")
		model          = flag.String("model", "base", "whisper model size (tiny, base, small, medium, large)")
		sampleRate     = flag.Int("sample-rate", 16000, "capture sample rate in Hz (8000, 16000, 22050, 44100, 48000)")
		downloadLatest = flag.Bool("download-latest", false, "check the model host and refresh the cached model before use")
		language       = flag.String("language", "", "transcription language hint (e.g. en); empty means auto-detect")
		formats        = flag.String("formats", "", "comma-separated transcript file formats (txt, srt, vtt)")
		timestamps     = flag.Bool("timestamps", false, "also print per-segment timestamps")
		outputDir      = flag.String("output-dir", "", "directory for recordings (default: recordings)")
		historyN       = flag.Int("history", 0, "print the N most recent runs and exit")
		watchDir       = flag.String("watch", "", "watch a directory and transcribe new WAV files instead of recording")
		showVersion    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("recap %s\n", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		errLog.Fatalf("Config error: %v", err)
	}
	applyFlags(map[string]func(){
		"duration":    func() { cfg.Recording.DurationSeconds = *duration },
		"sample-rate": func() { cfg.Recording.SampleRate = *sampleRate },
		"model":       func() { cfg.ASR.Model = *model },
		"language":    func() { cfg.ASR.Language = *language },
		"formats":     func() { cfg.ASR.Formats = splitFormats(*formats) },
		"output-dir":  func() { cfg.Recording.OutputDir = *outputDir },
	})
	if err := config.Validate(cfg); err != nil {
		errLog.Fatalf("Config error: %v", err)
	}

	// Model validation happens before any device or file is touched.
	modelSize, err := modelstore.Validate(cfg.ASR.Model)
	if err != nil {
		errLog.Fatalf("Model error: %v", err)
	}

	dlog, err := diaglog.New(debugLogPath())
	if err != nil {
		errLog.Printf("Warning: diagnostic logging unavailable: %v", err)
		dlog = diaglog.NewNoOp()
	}
	defer dlog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *historyN > 0 {
		if err := runHistory(ctx, cfg, *historyN); err != nil {
			errLog.Fatalf("History error: %v", err)
		}
		return
	}

	reg, err := buildRegistry(cfg, modelSize, *downloadLatest, dlog)
	if err != nil {
		errLog.Fatalf("Backend error: %v", err)
	}

	if *watchDir != "" {
		if err := runWatch(ctx, cfg, reg, *watchDir, *timestamps, dlog); err != nil && err != context.Canceled {
			errLog.Fatalf("Watch error: %v", err)
		}
		return
	}

	src, err := capture.NewMalgoSource(cfg.Recording.SampleRate)
	if err != nil {
		errLog.Fatalf("Microphone error: %v", err)
	}
	defer src.Close()

	if err := runRecord(ctx, cfg, reg, src, *timestamps, dlog); err != nil {
		errLog.Fatalf("Error: %v", err)
	}
}

// applyFlags runs the override for every flag the user set explicitly, so
// flag values beat config file and environment values.
func applyFlags(overrides map[string]func()) {
	flag.Visit(func(f *flag.Flag) {
		if apply, ok := overrides[f.Name]; ok {
			apply()
		}
	})
}

func splitFormats(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if f := strings.TrimSpace(p); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func debugLogPath() string {
	return filepath.Join(os.TempDir(), "recap-debug.ndjson")
}

// buildRegistry wires the configured primary backend plus a fallback when
// the other backend is also configured.
func buildRegistry(cfg config.Config, modelSize modelstore.ModelSize, downloadLatest bool, dlog *diaglog.Logger) (*asr.Registry, error) {
	reg := asr.NewRegistry()
	reg.SetLogger(dlog)

	var local *localwhisper.Backend
	var remote *remotewhisper.Client

	needLocal := cfg.ASR.Backend == "local" || cfg.ASR.Local.BinaryPath != ""
	if needLocal {
		modelPath := cfg.ASR.Local.ModelPath
		if modelPath == "" {
			store, err := openModelStore(cfg, dlog)
			if err != nil {
				return nil, err
			}
			if downloadLatest {
				fmt.Printf("Checking for latest %s model and downloading if needed...\n", modelSize)
				path, refreshed, err := store.DownloadLatest(modelSize)
				if err != nil {
					return nil, fmt.Errorf("refresh model %s: %w", modelSize, err)
				}
				if refreshed {
					fmt.Println("Latest model downloaded.")
				} else {
					fmt.Println("Model already up to date.")
				}
				modelPath = path
			} else {
				path, err := store.Ensure(modelSize)
				if err != nil {
					return nil, fmt.Errorf("fetch model %s: %w", modelSize, err)
				}
				modelPath = path
			}
		}
		local = localwhisper.NewBackend(localwhisper.Config{
			BinaryPath:     cfg.ASR.Local.BinaryPath,
			Command:        cfg.ASR.Local.Command,
			ModelPath:      modelPath,
			Model:          cfg.ASR.Model,
			Threads:        cfg.ASR.Local.Threads,
			TimeoutSeconds: cfg.ASR.Local.TimeoutSeconds,
		})
	}

	if cfg.ASR.Remote.BaseURL != "" {
		remote = remotewhisper.NewClient(remotewhisper.Config{
			BaseURL:        cfg.ASR.Remote.BaseURL,
			Token:          cfg.ASR.Remote.Token,
			TimeoutSeconds: cfg.ASR.Remote.TimeoutSeconds,
			Retries:        cfg.ASR.Remote.Retries,
			Model:          cfg.ASR.Model,
		})
		remote.SetLogger(dlog)
	}

	switch cfg.ASR.Backend {
	case "remote":
		reg.Register(remote.Name(), remote)
		if local != nil {
			reg.Register(local.Name(), local)
			reg.SetFallback(local.Name())
		}
	default:
		reg.Register(local.Name(), local)
		if remote != nil {
			reg.Register(remote.Name(), remote)
			reg.SetFallback(remote.Name())
		}
	}
	return reg, nil
}

func openModelStore(cfg config.Config, dlog *diaglog.Logger) (*modelstore.Store, error) {
	dir := cfg.Models.Dir
	if dir == "" {
		d, err := modelstore.DefaultDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	store := modelstore.NewStore(dir, cfg.Models.BaseURL)
	store.SetLogger(dlog)
	return store, nil
}

// runHistory prints the most recent runs and exits.
func runHistory(ctx context.Context, cfg config.Config, n int) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in config")
	}
	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx, n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs yet.")
		return nil
	}
	for _, r := range runs {
		status := ""
		if r.Interrupted {
			status = " (interrupted)"
		}
		fmt.Printf("%s  %-9s %6.1fs  %s%s\n",
			r.RecordedAt.Local().Format("2006-01-02 15:04:05"),
			r.Model,
			float64(r.DurationMs)/1000,
			r.WAVPath, status)
		if r.Transcript != "" {
			fmt.Printf("    %s\n", r.Transcript)
		}
	}
	return nil
}

// runWatch transcribes every new WAV file appearing in dir until interrupted.
func runWatch(ctx context.Context, cfg config.Config, reg *asr.Registry, dir string, timestamps bool, dlog *diaglog.Logger) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}

	opts := asr.TranscribeOptions{
		Language:   cfg.ASR.Language,
		Model:      cfg.ASR.Model,
		Timestamps: true,
	}
	w := watch.New(dir, func(path string) {
		outLog.Printf("New recording detected: %s", path)
		t, err := reg.TranscribeWithFallback(path, opts)
		if err != nil {
			errLog.Printf("Transcription failed for %s: %v", path, err)
			return
		}
		transcript.Print(os.Stdout, t)
		if timestamps {
			transcript.PrintSegments(os.Stdout, t)
		}
		base := strings.TrimSuffix(path, filepath.Ext(path))
		if err := transcript.WriteAll(base, t, cfg.ASR.Formats); err != nil {
			errLog.Printf("Transcript write failed for %s: %v", path, err)
		}
	})
	w.SetLogger(dlog)

	outLog.Printf("Watching %s for new WAV files (Ctrl-C to stop)", dir)
	return w.Run(ctx)
}

// runRecord performs one record -> save -> transcribe cycle.
func runRecord(ctx context.Context, cfg config.Config, reg *asr.Registry, src capture.Source, timestamps bool, dlog *diaglog.Logger) error {
	sessionID := uuid.NewString()
	recordSeconds := cfg.Recording.DurationSeconds
	rate := cfg.Recording.SampleRate

	// Surface backend problems before touching the microphone.
	if status, err := reg.Primary().HealthCheck(); err != nil || !status.OK {
		msg := "unknown"
		if status != nil {
			msg = status.Message
		}
		dlog.Log(diaglog.LogEntry{
			Component: diaglog.ComponentRecapCLI,
			Event:     diaglog.EventHealthCheck,
			SessionID: sessionID,
			Reason:    msg,
		})
		if reg.Fallback() == nil {
			return fmt.Errorf("backend %s unavailable: %s", reg.Primary().Name(), msg)
		}
		errLog.Printf("Warning: primary backend %s unavailable (%s), will rely on fallback", reg.Primary().Name(), msg)
	}

	fmt.Printf("Recording audio for %d seconds...\n", recordSeconds)
	fmt.Println("Speak now...")

	start := time.Now()
	dlog.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCapture,
		Event:     diaglog.EventCaptureStart,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"duration_s": recordSeconds, "sample_rate": rate},
	})

	res, err := capture.Record(ctx, src, time.Duration(recordSeconds)*time.Second, capture.Options{
		SampleRate: rate,
		Progress: func(elapsed, total time.Duration) {
			remaining := int((total - elapsed).Round(time.Second).Seconds())
			if remaining < 0 {
				remaining = 0
			}
			fmt.Printf("\rRecording... %ds remaining ", remaining)
		},
	})
	if err != nil {
		return err
	}
	fmt.Println()
	if res.Interrupted {
		dlog.Log(diaglog.LogEntry{
			Component: diaglog.ComponentCapture,
			Event:     diaglog.EventCaptureInterrupted,
			SessionID: sessionID,
		})
		fmt.Println("Recording interrupted, keeping partial audio.")
	} else {
		fmt.Println("Recording complete.")
	}
	dlog.Log(diaglog.LogEntry{
		Component: diaglog.ComponentCapture,
		Event:     diaglog.EventCaptureStop,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"samples": len(res.Samples), "elapsed_ms": res.Elapsed.Milliseconds()},
	})

	if len(res.Samples) == 0 {
		return fmt.Errorf("no audio captured")
	}

	if err := fileutil.EnsureDir(cfg.Recording.OutputDir); err != nil {
		return err
	}
	wavPath := fileutil.UniqueRecordingPath(cfg.Recording.OutputDir, start)
	pcm := audio.Float32ToInt16(res.Samples)
	if err := audio.WriteWAV(wavPath, pcm, rate); err != nil {
		return err
	}
	fmt.Printf("Audio saved to: %s\n", wavPath)

	fmt.Println("Transcribing audio...")
	dlog.Log(diaglog.LogEntry{
		Component: diaglog.ComponentRecapCLI,
		Event:     diaglog.EventTranscribeStart,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"file": wavPath, "model": cfg.ASR.Model},
	})
	transcribeStart := time.Now()
	t, terr := reg.TranscribeWithFallback(wavPath, asr.TranscribeOptions{
		Language:   cfg.ASR.Language,
		Model:      cfg.ASR.Model,
		Timestamps: true,
	})

	meta := &fileutil.RecordingMetadata{
		Version:     "1",
		SessionID:   sessionID,
		StartedAt:   start,
		StoppedAt:   start.Add(res.Elapsed),
		Duration:    res.Elapsed.Round(time.Millisecond).String(),
		DurationMs:  res.Elapsed.Milliseconds(),
		SampleRate:  rate,
		Interrupted: res.Interrupted,
		OutputFile:  wavPath,
	}

	if terr != nil {
		meta.ASR = &fileutil.ASRMeta{
			Model:   cfg.ASR.Model,
			Success: false,
			Error:   terr.Error(),
		}
		if err := fileutil.WriteMetadata(wavPath, meta); err != nil {
			errLog.Printf("Warning: metadata write failed: %v", err)
		}
		return fmt.Errorf("transcription failed: %w", terr)
	}

	fmt.Printf("Transcription completed in %.2f seconds.\n", time.Since(transcribeStart).Seconds())
	dlog.Log(diaglog.LogEntry{
		Component: diaglog.ComponentRecapCLI,
		Event:     diaglog.EventTranscribeDone,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"segments": len(t.Segments), "backend": t.Backend},
	})

	transcript.Print(os.Stdout, t)
	if timestamps {
		transcript.PrintSegments(os.Stdout, t)
	}

	base := strings.TrimSuffix(wavPath, filepath.Ext(wavPath))
	if err := transcript.WriteAll(base, t, cfg.ASR.Formats); err != nil {
		errLog.Printf("Warning: transcript write failed: %v", err)
	}

	meta.ASR = &fileutil.ASRMeta{
		Backend:       t.Backend,
		Model:         cfg.ASR.Model,
		Language:      t.Language,
		Formats:       cfg.ASR.Formats,
		Success:       true,
		TranscribedAt: time.Now().UTC(),
	}
	if err := fileutil.WriteMetadata(wavPath, meta); err != nil {
		errLog.Printf("Warning: metadata write failed: %v", err)
	}

	if cfg.History.Enabled {
		if err := appendHistory(cfg, sessionID, start, wavPath, res, t, dlog); err != nil {
			errLog.Printf("Warning: history write failed: %v", err)
		}
	}
	return nil
}

func appendHistory(cfg config.Config, sessionID string, start time.Time, wavPath string, res *capture.Result, t *asr.Transcript, dlog *diaglog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	dlog.Log(diaglog.LogEntry{
		Component: diaglog.ComponentHistory,
		Event:     diaglog.EventHistoryAppend,
		SessionID: sessionID,
		Payload:   map[string]interface{}{"file": wavPath},
	})
	return store.Append(ctx, history.Run{
		SessionID:   sessionID,
		RecordedAt:  start,
		WAVPath:     wavPath,
		DurationMs:  res.Elapsed.Milliseconds(),
		SampleRate:  res.SampleRate,
		Model:       cfg.ASR.Model,
		Backend:     t.Backend,
		Language:    t.Language,
		Transcript:  t.Text(),
		Interrupted: res.Interrupted,
	})
}
