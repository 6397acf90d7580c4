// Package config loads the YAML configuration for the recolor pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	ModelsRoot   string             `yaml:"models_root"`
	Segmentation SegmentationConfig `yaml:"segmentation"`
	ONNX         ONNXConfig         `yaml:"onnx"`
	Recolor      RecolorConfig      `yaml:"recolor"`
	History      HistoryConfig      `yaml:"history"`
	Interaction  InteractionConfig  `yaml:"interaction"`
	Logging      LoggingConfig      `yaml:"logging"`
	Lighting     []LightingPreset   `yaml:"lighting_presets"`
}

// SegmentationConfig configures the promptable segmentation engine.
type SegmentationConfig struct {
	EncoderPath string `yaml:"encoder_path"`
	DecoderPath string `yaml:"decoder_path"`
	TopK        int    `yaml:"top_k"` // candidate masks for ambiguous prompts
}

// ONNXConfig holds process-wide ONNX Runtime settings. These are applied
// once, no matter how many engine instances are created.
type ONNXConfig struct {
	LibraryPath    string `yaml:"library_path"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
	InterOpThreads int    `yaml:"inter_op_threads"`
}

// RecolorConfig selects and tunes the decomposition strategy.
type RecolorConfig struct {
	// Strategy is "retinex" or "intrinsic".
	Strategy string `yaml:"strategy"`
	// RetinexBlurRadius is the log-luminance blur radius. Empirically
	// tuned: larger over-smooths and biases recovered reflectance toward
	// black, smaller fails to separate illumination from texture.
	RetinexBlurRadius int `yaml:"retinex_blur_radius"`
	// IntrinsicModelPath is the decomposition network, used only when
	// Strategy is "intrinsic".
	IntrinsicModelPath string `yaml:"intrinsic_model_path"`
}

// HistoryConfig bounds the undo/redo stack.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// InteractionConfig tunes the canvas controller.
type InteractionConfig struct {
	HoverDebounceMs int `yaml:"hover_debounce_ms"`
}

// LoggingConfig controls the buffered action logger.
type LoggingConfig struct {
	LogTimings bool `yaml:"log_timings"`
	Buffered   bool `yaml:"buffered"`
	SampleRate int  `yaml:"sample_rate"`
	AutoFlush  bool `yaml:"auto_flush"`
}

// LightingPreset is a display-time tint: per-channel multiplier plus a
// scalar brightness. Presets are never baked into history snapshots.
type LightingPreset struct {
	Name       string  `yaml:"name"`
	R          float64 `yaml:"r"`
	G          float64 `yaml:"g"`
	B          float64 `yaml:"b"`
	Brightness float64 `yaml:"brightness"`
}

// DefaultPresets are used when the config file lists none.
func DefaultPresets() []LightingPreset {
	return []LightingPreset{
		{Name: "daylight", R: 1.0, G: 1.0, B: 1.0, Brightness: 1.0},
		{Name: "warm", R: 1.08, G: 1.0, B: 0.88, Brightness: 1.0},
		{Name: "cool", R: 0.9, G: 0.97, B: 1.1, Brightness: 1.0},
		{Name: "evening", R: 1.05, G: 0.92, B: 0.8, Brightness: 0.82},
	}
}

// Load reads configuration from a YAML file, fills defaults and resolves
// model paths relative to models_root.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.resolvePaths()
	return &cfg, nil
}

// Default returns a configuration with all defaults and no model paths.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Segmentation.TopK == 0 {
		cfg.Segmentation.TopK = 3
	}
	if cfg.ONNX.IntraOpThreads == 0 {
		cfg.ONNX.IntraOpThreads = 4
	}
	if cfg.ONNX.InterOpThreads == 0 {
		cfg.ONNX.InterOpThreads = 2
	}
	if cfg.Recolor.Strategy == "" {
		cfg.Recolor.Strategy = "retinex"
	}
	if cfg.Recolor.RetinexBlurRadius == 0 {
		cfg.Recolor.RetinexBlurRadius = 32
	}
	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = 20
	}
	if cfg.Interaction.HoverDebounceMs == 0 {
		cfg.Interaction.HoverDebounceMs = 150
	}
	if len(cfg.Lighting) == 0 {
		cfg.Lighting = DefaultPresets()
	}
}

func (cfg *Config) resolvePaths() {
	if cfg.ModelsRoot == "" {
		return
	}
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(cfg.ModelsRoot, p)
	}
	cfg.Segmentation.EncoderPath = resolve(cfg.Segmentation.EncoderPath)
	cfg.Segmentation.DecoderPath = resolve(cfg.Segmentation.DecoderPath)
	cfg.Recolor.IntrinsicModelPath = resolve(cfg.Recolor.IntrinsicModelPath)
}

// Preset looks up a lighting preset by name.
func (cfg *Config) Preset(name string) (LightingPreset, bool) {
	for _, p := range cfg.Lighting {
		if p.Name == name {
			return p, true
		}
	}
	return LightingPreset{}, false
}
