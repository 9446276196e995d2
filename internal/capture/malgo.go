package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures from the default system microphone via miniaudio.
// Samples are delivered as normalized float32 mono frames; conversion to
// 16-bit PCM happens when the recording is saved.
type MalgoSource struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	mu        sync.Mutex
	onSamples func([]float32)
	running   bool
}

// NewMalgoSource initialises the default capture device at the given sample
// rate (mono, 32-bit float).
func NewMalgoSource(sampleRate int) (*MalgoSource, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	s := &MalgoSource{ctx: mctx}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSample, inputSample []byte, frameCount uint32) {
			s.mu.Lock()
			cb := s.onSamples
			running := s.running
			s.mu.Unlock()
			if !running || cb == nil {
				return
			}
			cb(bytesToFloat32(inputSample))
		},
	}

	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	s.device = device
	return s, nil
}

// Start begins streaming microphone samples to onSamples.
func (s *MalgoSource) Start(onSamples func([]float32)) error {
	s.mu.Lock()
	s.onSamples = onSamples
	s.running = true
	s.mu.Unlock()

	if err := s.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// Stop halts sample delivery. The device stays initialised so a later Start
// can reuse it.
func (s *MalgoSource) Stop() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err := s.device.Stop(); err != nil {
		return fmt.Errorf("stop capture device: %w", err)
	}
	return nil
}

// Close releases the device and audio context.
func (s *MalgoSource) Close() error {
	s.device.Uninit()
	err := s.ctx.Uninit()
	s.ctx.Free()
	return err
}

// bytesToFloat32 reinterprets little-endian IEEE 754 sample bytes.
func bytesToFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

var _ Source = (*MalgoSource)(nil)
