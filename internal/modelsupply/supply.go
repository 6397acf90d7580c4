// Package modelsupply resolves the segmentation model artifacts from the
// local model directory. It stands in for the external fetch/cache layer:
// given configured paths it validates that both artifacts are present and
// non-empty and computes a content digest, surfacing clear errors instead
// of handing the engine a silently empty file.
package modelsupply

import (
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Artifact is one loadable model resource on disk.
type Artifact struct {
	Path   string
	Size   int64
	Digest uint64 // xxhash of the file contents
}

// Supply holds the two artifacts of the two-stage segmentation network.
type Supply struct {
	Encoder Artifact
	Decoder Artifact
}

// Resolve validates both model paths and returns their artifacts.
// Either artifact missing, unreadable or empty is an error.
func Resolve(encoderPath, decoderPath string) (*Supply, error) {
	enc, err := resolveOne("encoder", encoderPath)
	if err != nil {
		return nil, err
	}
	dec, err := resolveOne("decoder", decoderPath)
	if err != nil {
		return nil, err
	}
	return &Supply{Encoder: enc, Decoder: dec}, nil
}

func resolveOne(stage, path string) (Artifact, error) {
	if path == "" {
		return Artifact{}, fmt.Errorf("%s model path not configured", stage)
	}
	f, err := os.Open(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s model %s: %w", stage, path, err)
	}
	defer f.Close()

	h := xxhash.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return Artifact{}, fmt.Errorf("%s model %s: read: %w", stage, path, err)
	}
	if size == 0 {
		return Artifact{}, fmt.Errorf("%s model %s is empty", stage, path)
	}
	return Artifact{Path: path, Size: size, Digest: h.Sum64()}, nil
}
