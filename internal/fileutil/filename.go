// Package fileutil provides recording file naming and sidecar metadata.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// timestampLayout is the wall-clock portion of a recording filename,
// e.g. recording_20260115_143052.wav.
const timestampLayout = "20060102_150405"

const recordingPrefix = "recording_"

// RecordingPath returns the recording file path for the given start time,
// e.g. recordings/recording_20260115_143052.wav.
func RecordingPath(dir string, start time.Time) string {
	return filepath.Join(dir, recordingPrefix+start.Format(timestampLayout)+".wav")
}

// UniqueRecordingPath returns RecordingPath(dir, start), appending a numeric
// suffix if that file already exists. Two recordings started within the same
// second therefore never overwrite each other.
func UniqueRecordingPath(dir string, start time.Time) string {
	path := RecordingPath(dir, start)
	// Only a Stat proving the file exists forces a suffix. Any Stat error
	// (not-exist included) returns the path as-is; if the directory is
	// unreadable the subsequent write reports it.
	if _, err := os.Stat(path); err != nil {
		return path
	}
	base := strings.TrimSuffix(path, ".wav")
	for i := 2; ; i++ {
		try := fmt.Sprintf("%s_%d.wav", base, i)
		if _, err := os.Stat(try); err != nil {
			return try
		}
	}
}

// ParseRecordingTime extracts the start time encoded in a recording filename.
// The numeric collision suffix, if any, is ignored.
func ParseRecordingTime(path string) (time.Time, error) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(name, recordingPrefix) {
		return time.Time{}, fmt.Errorf("not a recording filename: %s", filepath.Base(path))
	}
	stamp := strings.TrimPrefix(name, recordingPrefix)
	// Strip a collision suffix like _2.
	if parts := strings.Split(stamp, "_"); len(parts) > 2 {
		stamp = parts[0] + "_" + parts[1]
	}
	t, err := time.ParseInLocation(timestampLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse recording timestamp %q: %w", stamp, err)
	}
	return t, nil
}

// EnsureDir creates dir (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}
