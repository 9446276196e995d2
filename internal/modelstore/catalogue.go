// Package modelstore manages the local cache of Whisper model files and
// their download/refresh from a model host.
package modelstore

import (
	"fmt"
	"sort"
	"strings"
)

// ModelSize identifies one of the supported Whisper model sizes.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

type modelInfo struct {
	// File is the filename on the model host and in the local cache.
	File string
	// ApproxBytes is used only for the pre-download disk hint.
	ApproxBytes int64
}

var catalogue = map[ModelSize]modelInfo{
	ModelTiny:   {File: "ggml-tiny.bin", ApproxBytes: 78 << 20},
	ModelBase:   {File: "ggml-base.bin", ApproxBytes: 148 << 20},
	ModelSmall:  {File: "ggml-small.bin", ApproxBytes: 488 << 20},
	ModelMedium: {File: "ggml-medium.bin", ApproxBytes: 1533 << 20},
	ModelLarge:  {File: "ggml-large-v3.bin", ApproxBytes: 3095 << 20},
}

// Supported returns the valid model size names, sorted.
func Supported() []string {
	out := make([]string, 0, len(catalogue))
	for m := range catalogue {
		out = append(out, string(m))
	}
	sort.Strings(out)
	return out
}

// Validate checks name against the catalogue. The error lists the valid
// sizes so the CLI can fail with a helpful message before any recording
// starts.
func Validate(name string) (ModelSize, error) {
	m := ModelSize(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := catalogue[m]; !ok {
		return "", fmt.Errorf("unsupported model %q (valid: %s)", name, strings.Join(Supported(), ", "))
	}
	return m, nil
}
