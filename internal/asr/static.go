package asr

// StaticBackend returns a fixed transcript on every call. Used by tests and
// by the "none" engine mode where the pipeline is exercised without any
// inference engine installed.
type StaticBackend struct {
	BackendName string
	Result      *Transcript
	Err         error
}

// NewStaticBackend creates a backend that always returns t.
func NewStaticBackend(name string, t *Transcript) *StaticBackend {
	return &StaticBackend{BackendName: name, Result: t}
}

// Name returns the backend identifier.
func (s *StaticBackend) Name() string {
	if s.BackendName == "" {
		return "static"
	}
	return s.BackendName
}

// TranscribeFile ignores the file and returns the configured result. The
// returned transcript carries this backend's name so output is attributable.
func (s *StaticBackend) TranscribeFile(_ string, _ TranscribeOptions) (*Transcript, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	out := *s.Result
	out.Backend = s.Name()
	return &out, nil
}

// HealthCheck always reports healthy unless the backend is set to fail.
func (s *StaticBackend) HealthCheck() (*HealthStatus, error) {
	if s.Err != nil {
		return &HealthStatus{OK: false, Backend: s.Name(), Message: s.Err.Error()}, nil
	}
	return &HealthStatus{OK: true, Backend: s.Name(), Message: "static backend always available"}, nil
}

// Verify StaticBackend implements Backend at compile time.
var _ Backend = (*StaticBackend)(nil)
