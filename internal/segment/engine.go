// Package segment wraps the promptable two-stage segmentation network
// behind a small engine API: initialize once, embed the current image,
// then decode masks for point prompts against that embedding.
package segment

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/prasannaganesan/interior-design-app/config"
	"github.com/prasannaganesan/interior-design-app/internal/mask"
	"github.com/prasannaganesan/interior-design-app/internal/modelsupply"
	"github.com/prasannaganesan/interior-design-app/internal/raster"
)

// Process-wide ONNX Runtime setup. Creating several engines must apply
// this exactly once; later calls reuse the first outcome.
var (
	runtimeOnce sync.Once
	runtimeErr  error
)

func setupRuntime(libraryPath string) error {
	runtimeOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	})
	return runtimeErr
}

// Prompt describes one decoder query: any number of positive and negative
// points, and how many ranked candidate masks to return.
type Prompt struct {
	Positive []Point
	Negative []Point
	TopK     int
}

// Candidate is one decoded mask with its predicted quality score,
// already mapped to original-image coordinates and component-filtered.
type Candidate struct {
	Pixels mask.Pixels
	Score  float32
}

type engineState int

const (
	stateUninitialized engineState = iota
	stateReady
	stateFailed
)

// embedding caches the encoder output for the most recent image along
// with the letterbox geometry used to produce it.
type embedding struct {
	data   []float32
	box    letterbox
	width  int
	height int
	digest uint64
}

// Engine drives the encoder/decoder pair. All methods are safe for
// concurrent use; inference calls are serialized internally.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	initErr error

	encoder *ort.DynamicAdvancedSession
	decoder *ort.DynamicAdvancedSession
	emb     *embedding

	cfg config.SegmentationConfig
}

// NewEngine creates an engine in the uninitialized state.
func NewEngine(cfg config.SegmentationConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Initialize resolves and loads both model artifacts. On any failure the
// engine enters a sticky failed state: every subsequent call returns the
// initialization error rather than silently doing nothing.
func (e *Engine) Initialize(ctx context.Context, onnx config.ONNXConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case stateReady:
		return nil
	case stateFailed:
		return fmt.Errorf("%w: %v", ErrNotInitialized, e.initErr)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fail := func(err error) error {
		e.state = stateFailed
		e.initErr = err
		return err
	}

	supply, err := modelsupply.Resolve(e.cfg.EncoderPath, e.cfg.DecoderPath)
	if err != nil {
		return fail(fmt.Errorf("model supply: %w", err))
	}

	if err := setupRuntime(onnx.LibraryPath); err != nil {
		return fail(err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return fail(fmt.Errorf("failed to create session options: %w", err))
	}
	defer opts.Destroy()
	if onnx.IntraOpThreads > 0 {
		opts.SetIntraOpNumThreads(onnx.IntraOpThreads)
	}
	if onnx.InterOpThreads > 0 {
		opts.SetInterOpNumThreads(onnx.InterOpThreads)
	}

	encoder, err := ort.NewDynamicAdvancedSession(
		supply.Encoder.Path,
		[]string{"input"},
		[]string{"image_embeddings"},
		opts,
	)
	if err != nil {
		return fail(fmt.Errorf("encoder: failed to create session: %w", err))
	}

	decoder, err := ort.NewDynamicAdvancedSession(
		supply.Decoder.Path,
		[]string{"image_embeddings", "point_coords", "point_labels"},
		[]string{"masks", "iou_predictions"},
		opts,
	)
	if err != nil {
		encoder.Destroy()
		return fail(fmt.Errorf("decoder: failed to create session: %w", err))
	}

	e.encoder = encoder
	e.decoder = decoder
	e.state = stateReady
	return nil
}

// Close releases both sessions. The engine cannot be reused afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoder != nil {
		e.encoder.Destroy()
		e.encoder = nil
	}
	if e.decoder != nil {
		e.decoder.Destroy()
		e.decoder = nil
	}
	e.state = stateUninitialized
	e.emb = nil
	return nil
}

func (e *Engine) readyLocked() error {
	switch e.state {
	case stateReady:
		return nil
	case stateFailed:
		return fmt.Errorf("%w: %v", ErrNotInitialized, e.initErr)
	default:
		return ErrNotInitialized
	}
}

// GenerateEmbedding preprocesses the image onto the square canvas, runs
// the encoder and caches the embedding keyed to the image's content hash.
// Mask queries are only valid against the most recent embedding.
func (e *Engine) GenerateEmbedding(ctx context.Context, img *raster.Image) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lb := computeLetterbox(img.Width, img.Height)
	input := preprocess(img, lb)

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, canvasSize, canvasSize), input)
	if err != nil {
		return fmt.Errorf("encoder: failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	embData := make([]float32, embeddingChannels*embeddingSize*embeddingSize)
	outputTensor, err := ort.NewTensor(
		ort.NewShape(1, embeddingChannels, embeddingSize, embeddingSize), embData)
	if err != nil {
		return fmt.Errorf("encoder: failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	err = e.encoder.Run(
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
	)
	if err != nil {
		return fmt.Errorf("encoder: inference failed: %w", err)
	}

	cached := make([]float32, len(embData))
	copy(cached, embData)
	e.emb = &embedding{
		data:   cached,
		box:    lb,
		width:  img.Width,
		height: img.Height,
		digest: imageDigest(img),
	}
	return nil
}

// HasEmbeddingFor reports whether the cached embedding matches the image.
func (e *Engine) HasEmbeddingFor(img *raster.Image) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.emb != nil && e.emb.digest == imageDigest(img)
}

// GenerateMask decodes a single mask for one positive point prompt.
// The result keeps only the largest 8-connected component: small
// disconnected specks in the raw model output are deliberately dropped.
func (e *Engine) GenerateMask(ctx context.Context, img *raster.Image, pt Point) (mask.Pixels, error) {
	candidates, err := e.GenerateMasks(ctx, img, Prompt{Positive: []Point{pt}, TopK: 1})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("decoder: produced no mask candidates")
	}
	return candidates[0].Pixels, nil
}

// GenerateMasks decodes up to TopK ranked candidate masks for a prompt
// with any mix of positive and negative points. Candidates are ordered by
// predicted quality, best first, each independently component-filtered.
func (e *Engine) GenerateMasks(ctx context.Context, img *raster.Image, prompt Prompt) ([]Candidate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.readyLocked(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.emb == nil {
		return nil, ErrNoEmbedding
	}
	if e.emb.digest != imageDigest(img) {
		return nil, fmt.Errorf("%w: image changed since embedding", ErrNoEmbedding)
	}
	if len(prompt.Positive) == 0 {
		return nil, fmt.Errorf("prompt requires at least one positive point")
	}

	topK := prompt.TopK
	if topK <= 0 {
		topK = 1
	}
	if limit := e.cfg.TopK; limit > 0 && topK > limit {
		topK = limit
	}

	coords, labels := e.promptTensorData(prompt)
	numPoints := len(labels)

	lowRes, scores, err := e.runDecoder(coords, labels, numPoints)
	if err != nil {
		return nil, err
	}

	// Rank output channels by predicted quality, best first.
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if topK > len(order) {
		topK = len(order)
	}

	candidates := make([]Candidate, 0, topK)
	for _, ch := range order[:topK] {
		dense := postprocessMask(lowRes, ch, e.emb.box, e.emb.width, e.emb.height)
		dense = mask.LargestComponent(dense, e.emb.width, e.emb.height)
		candidates = append(candidates, Candidate{
			Pixels: mask.FromDense(dense),
			Score:  scores[ch],
		})
	}
	return candidates, nil
}

// imageDigest keys the embedding cache to the image contents, so a mask
// query against a different image is rejected instead of silently using a
// stale embedding.
func imageDigest(img *raster.Image) uint64 {
	return xxhash.Sum64(img.Pix)
}

// promptTensorData flattens the prompt into decoder point tensors in
// canvas coordinates. A padding sentinel point with label -1 terminates
// the list, matching the decoder's export convention.
func (e *Engine) promptTensorData(prompt Prompt) (coords []float32, labels []float32) {
	for _, p := range prompt.Positive {
		x, y := e.emb.box.toCanvas(p, e.emb.width, e.emb.height)
		coords = append(coords, x, y)
		labels = append(labels, 1)
	}
	for _, p := range prompt.Negative {
		x, y := e.emb.box.toCanvas(p, e.emb.width, e.emb.height)
		coords = append(coords, x, y)
		labels = append(labels, 0)
	}
	coords = append(coords, 0, 0)
	labels = append(labels, -1)
	return coords, labels
}

// runDecoder executes one decoder call and returns the low-resolution
// mask logits [K, lowResSize, lowResSize] and per-channel quality scores.
func (e *Engine) runDecoder(coords, labels []float32, numPoints int) ([]float32, []float32, error) {
	embTensor, err := ort.NewTensor(
		ort.NewShape(1, embeddingChannels, embeddingSize, embeddingSize), e.emb.data)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder: failed to create embedding tensor: %w", err)
	}
	defer embTensor.Destroy()

	coordsTensor, err := ort.NewTensor(ort.NewShape(1, int64(numPoints), 2), coords)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder: failed to create coords tensor: %w", err)
	}
	defer coordsTensor.Destroy()

	labelsTensor, err := ort.NewTensor(ort.NewShape(1, int64(numPoints)), labels)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder: failed to create labels tensor: %w", err)
	}
	defer labelsTensor.Destroy()

	const maskChannels = 4
	lowRes := make([]float32, maskChannels*lowResSize*lowResSize)
	masksTensor, err := ort.NewTensor(
		ort.NewShape(1, maskChannels, lowResSize, lowResSize), lowRes)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder: failed to create masks tensor: %w", err)
	}
	defer masksTensor.Destroy()

	scores := make([]float32, maskChannels)
	iouTensor, err := ort.NewTensor(ort.NewShape(1, maskChannels), scores)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder: failed to create iou tensor: %w", err)
	}
	defer iouTensor.Destroy()

	err = e.decoder.Run(
		[]ort.Value{embTensor, coordsTensor, labelsTensor},
		[]ort.Value{masksTensor, iouTensor},
	)
	if err != nil {
		return nil, nil, fmt.Errorf("decoder: inference failed: %w", err)
	}

	outMasks := make([]float32, len(lowRes))
	copy(outMasks, lowRes)
	outScores := make([]float32, len(scores))
	copy(outScores, scores)
	return outMasks, outScores, nil
}
