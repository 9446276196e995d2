// Package config loads recap settings from YAML with RECAP_* environment
// overrides. Precedence is flags > environment > file > defaults; the flag
// layer is applied by the CLI after Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SupportedSampleRates are the capture rates the CLI accepts.
var SupportedSampleRates = []int{8000, 16000, 22050, 44100, 48000}

type RecordingConfig struct {
	DurationSeconds int    `yaml:"duration_seconds"`
	SampleRate      int    `yaml:"sample_rate"`
	OutputDir       string `yaml:"output_dir"`
}

type LocalASRConfig struct {
	BinaryPath     string `yaml:"binary_path"`
	Command        string `yaml:"command"`
	ModelPath      string `yaml:"model_path"`
	Threads        int    `yaml:"threads"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RemoteASRConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
}

type ASRConfig struct {
	Backend  string          `yaml:"backend"` // local, remote
	Model    string          `yaml:"model"`
	Language string          `yaml:"language"`
	Formats  []string        `yaml:"formats"`
	Local    LocalASRConfig  `yaml:"local"`
	Remote   RemoteASRConfig `yaml:"remote"`
}

type ModelsConfig struct {
	Dir     string `yaml:"dir"`
	BaseURL string `yaml:"base_url"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Config struct {
	Recording RecordingConfig `yaml:"recording"`
	ASR       ASRConfig       `yaml:"asr"`
	Models    ModelsConfig    `yaml:"models"`
	History   HistoryConfig   `yaml:"history"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Recording: RecordingConfig{
			DurationSeconds: 60,
			SampleRate:      16000,
			OutputDir:       "recordings",
		},
		ASR: ASRConfig{
			Backend: "local",
			Model:   "base",
			Formats: []string{"txt"},
			Local: LocalASRConfig{
				BinaryPath:     "whisper-cli",
				TimeoutSeconds: 300,
			},
			Remote: RemoteASRConfig{
				TimeoutSeconds: 120,
				Retries:        3,
			},
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "recordings/history.db",
		},
	}
}

// Load builds the configuration from path (optional), then applies RECAP_*
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideInt(&cfg.Recording.DurationSeconds, "RECAP_DURATION_SECONDS")
	overrideInt(&cfg.Recording.SampleRate, "RECAP_SAMPLE_RATE")
	overrideString(&cfg.Recording.OutputDir, "RECAP_OUTPUT_DIR")
	overrideString(&cfg.ASR.Backend, "RECAP_ASR_BACKEND")
	overrideString(&cfg.ASR.Model, "RECAP_ASR_MODEL")
	overrideString(&cfg.ASR.Language, "RECAP_ASR_LANGUAGE")
	overrideStringSlice(&cfg.ASR.Formats, "RECAP_ASR_FORMATS")
	overrideString(&cfg.ASR.Local.BinaryPath, "RECAP_ASR_LOCAL_BINARY")
	overrideString(&cfg.ASR.Local.Command, "RECAP_ASR_LOCAL_COMMAND")
	overrideString(&cfg.ASR.Local.ModelPath, "RECAP_ASR_LOCAL_MODEL_PATH")
	overrideInt(&cfg.ASR.Local.Threads, "RECAP_ASR_LOCAL_THREADS")
	overrideInt(&cfg.ASR.Local.TimeoutSeconds, "RECAP_ASR_LOCAL_TIMEOUT_SECONDS")
	overrideString(&cfg.ASR.Remote.BaseURL, "RECAP_ASR_REMOTE_BASE_URL")
	overrideString(&cfg.ASR.Remote.Token, "RECAP_ASR_REMOTE_TOKEN")
	overrideInt(&cfg.ASR.Remote.TimeoutSeconds, "RECAP_ASR_REMOTE_TIMEOUT_SECONDS")
	overrideInt(&cfg.ASR.Remote.Retries, "RECAP_ASR_REMOTE_RETRIES")
	overrideString(&cfg.Models.Dir, "RECAP_MODELS_DIR")
	overrideString(&cfg.Models.BaseURL, "RECAP_MODELS_BASE_URL")
	overrideBool(&cfg.History.Enabled, "RECAP_HISTORY_ENABLED")
	overrideString(&cfg.History.Path, "RECAP_HISTORY_PATH")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

// Validate rejects configurations that would fail mid-run, so errors surface
// before any recording starts.
func Validate(cfg Config) error {
	if cfg.Recording.DurationSeconds <= 0 {
		return errors.New("recording.duration_seconds must be positive")
	}
	if !ValidSampleRate(cfg.Recording.SampleRate) {
		return fmt.Errorf("recording.sample_rate must be one of %s", sampleRateList())
	}
	if cfg.Recording.OutputDir == "" {
		return errors.New("recording.output_dir must not be empty")
	}
	switch cfg.ASR.Backend {
	case "local", "remote":
		// ok
	default:
		return errors.New("asr.backend must be one of local|remote")
	}
	if cfg.ASR.Backend == "remote" && cfg.ASR.Remote.BaseURL == "" {
		return errors.New("asr.remote.base_url must be set when backend=remote")
	}
	for _, f := range cfg.ASR.Formats {
		switch f {
		case "txt", "srt", "vtt":
		default:
			return fmt.Errorf("asr.formats: unknown format %q (valid: txt, srt, vtt)", f)
		}
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return errors.New("history.path must not be empty when history is enabled")
	}
	return nil
}

// ValidSampleRate reports whether rate is one of the supported capture rates.
func ValidSampleRate(rate int) bool {
	for _, r := range SupportedSampleRates {
		if rate == r {
			return true
		}
	}
	return false
}

func sampleRateList() string {
	parts := make([]string, len(SupportedSampleRates))
	for i, r := range SupportedSampleRates {
		parts[i] = strconv.Itoa(r)
	}
	return strings.Join(parts, ", ")
}
