package segment

import "errors"

// Sequencing errors. These always indicate a caller bug, never a model
// failure, and the engine fails loudly instead of returning empty masks.
var (
	// ErrNotInitialized is returned when an operation requires a loaded
	// engine and Initialize has not completed successfully.
	ErrNotInitialized = errors.New("segmentation engine not initialized")

	// ErrNoEmbedding is returned when a mask is requested before
	// GenerateEmbedding, or against a different image than the one the
	// cached embedding was computed from.
	ErrNoEmbedding = errors.New("no image embedding for this image")
)
