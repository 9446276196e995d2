// Package capture records microphone audio as normalized float32 samples.
//
// The actual device access lives behind the Source interface so the record
// loop can be driven by a synthetic source in tests.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Source is a stream of normalized float32 samples. Start begins delivering
// sample chunks to onSamples from a device-owned goroutine; Stop halts
// delivery. Close releases the underlying device.
type Source interface {
	Start(onSamples func([]float32)) error
	Stop() error
	Close() error
}

// Options tune a single recording run.
type Options struct {
	SampleRate int
	// Progress, when non-nil, is invoked roughly once per second with the
	// elapsed and total durations. Used for the countdown display.
	Progress func(elapsed, total time.Duration)
}

// Result holds the samples captured by one Record call.
type Result struct {
	Samples     []float32
	SampleRate  int
	Elapsed     time.Duration
	Interrupted bool // true when ctx was cancelled before the full duration
}

// Record captures audio from src for the given duration. Cancelling ctx
// stops the capture early; the samples gathered so far are still returned
// with Interrupted set, so a partial recording can be saved and transcribed.
func Record(ctx context.Context, src Source, duration time.Duration, opts Options) (*Result, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("capture: duration must be positive, got %v", duration)
	}

	var (
		mu      sync.Mutex
		samples []float32
	)
	err := src.Start(func(chunk []float32) {
		mu.Lock()
		samples = append(samples, chunk...)
		mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("capture: start source: %w", err)
	}

	start := time.Now()
	done := time.NewTimer(duration)
	defer done.Stop()
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	interrupted := false
loop:
	for {
		select {
		case <-done.C:
			break loop
		case <-ctx.Done():
			interrupted = true
			break loop
		case <-tick.C:
			if opts.Progress != nil {
				opts.Progress(time.Since(start), duration)
			}
		}
	}

	elapsed := time.Since(start)
	if err := src.Stop(); err != nil {
		return nil, fmt.Errorf("capture: stop source: %w", err)
	}

	mu.Lock()
	out := make([]float32, len(samples))
	copy(out, samples)
	mu.Unlock()

	return &Result{
		Samples:     out,
		SampleRate:  opts.SampleRate,
		Elapsed:     elapsed,
		Interrupted: interrupted,
	}, nil
}
