package modelstore

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tiroq/recap/internal/diaglog"
)

// DefaultBaseURL hosts the ggml Whisper model files.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Store downloads and caches model files under a local directory.
type Store struct {
	dir     string
	baseURL string
	client  *http.Client

	logger   *diaglog.Logger
	loggerMu sync.RWMutex
}

// NewStore creates a Store rooted at dir. An empty baseURL selects
// DefaultBaseURL.
func NewStore(dir, baseURL string) *Store {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Store{
		dir:     dir,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

// DefaultDir returns the per-user model cache directory,
// e.g. ~/.cache/recap/models.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve user cache dir: %w", err)
	}
	return filepath.Join(base, "recap", "models"), nil
}

// SetLogger injects a diaglog.Logger for debug logging.
func (s *Store) SetLogger(l *diaglog.Logger) {
	s.loggerMu.Lock()
	s.logger = l
	s.loggerMu.Unlock()
}

func (s *Store) log(entry diaglog.LogEntry) {
	s.loggerMu.RLock()
	l := s.logger
	s.loggerMu.RUnlock()
	if l == nil {
		return
	}
	entry.Component = diaglog.ComponentModelStore
	l.Log(entry)
}

// Path returns the local cache path for a model, whether or not it exists.
func (s *Store) Path(m ModelSize) string {
	return filepath.Join(s.dir, catalogue[m].File)
}

// IsCached reports whether the model file is present locally.
func (s *Store) IsCached(m ModelSize) bool {
	info, err := os.Stat(s.Path(m))
	return err == nil && info.Size() > 0
}

// Ensure returns the local path for m, downloading the model first if it is
// not cached.
func (s *Store) Ensure(m ModelSize) (string, error) {
	if s.IsCached(m) {
		return s.Path(m), nil
	}
	return s.Download(m)
}

// Download fetches the model file from the host and writes it to the cache
// atomically (temp + rename). The server ETag is recorded in the manifest so
// DownloadLatest can detect stale copies later.
func (s *Store) Download(m ModelSize) (string, error) {
	info, ok := catalogue[m]
	if !ok {
		return "", fmt.Errorf("unsupported model %q", m)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create model dir: %w", err)
	}

	url := s.baseURL + "/" + info.File
	s.log(diaglog.LogEntry{
		Event:   diaglog.EventModelDownloadStart,
		Payload: map[string]interface{}{"model": string(m), "url": url},
	})

	resp, err := s.client.Get(url)
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", m, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download model %s: host returned status %d", m, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.dir, "model-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create model temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, resp.Body)
	if err != nil {
		return "", fmt.Errorf("write model %s: %w", m, err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		return "", fmt.Errorf("model %s: short download, got %d of %d bytes", m, written, resp.ContentLength)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close model temp file: %w", err)
	}
	success = true

	path := s.Path(m)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("install model %s: %w", m, err)
	}

	if err := s.updateManifest(m, resp.Header.Get("ETag"), written); err != nil {
		return "", err
	}

	s.log(diaglog.LogEntry{
		Event:   diaglog.EventModelDownloadDone,
		Payload: map[string]interface{}{"model": string(m), "bytes": written},
	})
	return path, nil
}

// DownloadLatest re-downloads the model when the host's copy differs from the
// cached one (compared by ETag). Returns the local path and whether a fresh
// download happened.
func (s *Store) DownloadLatest(m ModelSize) (string, bool, error) {
	if !s.IsCached(m) {
		path, err := s.Download(m)
		return path, err == nil, err
	}

	manifest, err := s.readManifest()
	if err != nil {
		return "", false, err
	}
	cached := manifest[string(m)]

	url := s.baseURL + "/" + catalogue[m].File
	resp, err := s.client.Head(url)
	if err != nil {
		return "", false, fmt.Errorf("check model %s: %w", m, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("check model %s: host returned status %d", m, resp.StatusCode)
	}

	remoteETag := resp.Header.Get("ETag")
	if remoteETag != "" && remoteETag == cached.ETag {
		s.log(diaglog.LogEntry{
			Event:   diaglog.EventModelUpToDate,
			Payload: map[string]interface{}{"model": string(m), "etag": remoteETag},
		})
		return s.Path(m), false, nil
	}

	path, err := s.Download(m)
	return path, err == nil, err
}

// manifestEntry records what was downloaded, keyed by model name in
// manifest.json inside the cache dir.
type manifestEntry struct {
	ETag         string    `json:"etag,omitempty"`
	Size         int64     `json:"size"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, "manifest.json")
}

func (s *Store) readManifest() (map[string]manifestEntry, error) {
	data, err := os.ReadFile(s.manifestPath())
	if os.IsNotExist(err) {
		return map[string]manifestEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model manifest: %w", err)
	}
	var m map[string]manifestEntry
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model manifest: %w", err)
	}
	return m, nil
}

func (s *Store) updateManifest(m ModelSize, etag string, size int64) error {
	manifest, err := s.readManifest()
	if err != nil {
		return err
	}
	manifest[string(m)] = manifestEntry{
		ETag:         etag,
		Size:         size,
		DownloadedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model manifest: %w", err)
	}
	if err := os.WriteFile(s.manifestPath(), data, 0644); err != nil {
		return fmt.Errorf("write model manifest: %w", err)
	}
	return nil
}
