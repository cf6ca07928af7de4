package vision

import (
	"fmt"
	"log"
	"runtime"
)

// Engine is the inference adapter: one synchronous tensor -> score vector call.
type Engine interface {
	// Available reports whether Classify can be attempted at all. It is read-only.
	Available() bool
	Classify(t Tensor) ([]float32, error)
	// Close releases runtime resources. Safe to call on any variant, more than once.
	Close() error
}

// EngineConfig selects and configures the inference engine.
type EngineConfig struct {
	Enabled           bool
	ModelPath         string
	ONNXSharedLibPath string
	// Classes is the label count the model output must match.
	Classes int
}

// NewEngine picks the engine variant once at startup. Any reason the model cannot run
// (disabled, unsupported platform, missing runtime or model) yields an Unavailable engine;
// it is never an error.
func NewEngine(cfg EngineConfig) Engine {
	if !cfg.Enabled {
		return Unavailable{Reason: "vision inference disabled"}
	}
	if !PlatformSupported(runtime.GOOS, runtime.GOARCH) {
		return Unavailable{Reason: fmt.Sprintf("unsupported platform %s/%s", runtime.GOOS, runtime.GOARCH)}
	}
	engine, err := NewONNXEngine(cfg.ModelPath, cfg.ONNXSharedLibPath, cfg.Classes)
	if err != nil {
		log.Printf("vision: onnx engine unavailable: %v", err)
		return Unavailable{Reason: err.Error()}
	}
	return engine
}

// PlatformSupported reports whether ONNX Runtime ships for goos/goarch.
func PlatformSupported(goos, goarch string) bool {
	switch goos {
	case "linux", "darwin", "windows":
	default:
		return false
	}
	switch goarch {
	case "amd64", "arm64":
		return true
	}
	return false
}

// Unavailable is the capability-absent engine.
type Unavailable struct {
	Reason string
}

func (Unavailable) Available() bool { return false }

func (u Unavailable) Classify(Tensor) ([]float32, error) {
	return nil, fmt.Errorf("%w: %s", ErrInferenceUnavailable, u.Reason)
}

func (Unavailable) Close() error { return nil }
