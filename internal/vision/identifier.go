package vision

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
)

type stage int

const (
	stageLoadLabels stage = iota
	stageCapability
	stageDecode
	stageInfer
	stageInferRotated
	stageFallback
	stageDone
)

// run carries the data of one Identify pass between stages.
type run struct {
	path   string
	labels []string
	img    image.Image
	result *Prediction
	err    error
}

// Identifier sequences capability check, preprocessing, inference, post-processing, the
// single rotate-and-retry, and the fallback. Identify never returns an error; failures
// of any stage route to the fallback resolver.
type Identifier struct {
	labels   LabelSource
	engine   Engine
	resolver *Resolver

	// mu serializes use of the engine, which reuses its tensors.
	mu sync.Mutex
}

func NewIdentifier(labels LabelSource, engine Engine, resolver *Resolver) *Identifier {
	if engine == nil {
		engine = Unavailable{Reason: "no engine configured"}
	}
	if resolver == nil {
		resolver = NewResolver(labels, StrategyClock)
	}
	return &Identifier{
		labels:   labels,
		engine:   engine,
		resolver: resolver,
	}
}

// Labels returns the label set, loading it if needed.
func (id *Identifier) Labels() []string {
	return id.labels.Load()
}

// InferenceAvailable reports whether the engine can run on this host.
func (id *Identifier) InferenceAvailable() bool {
	return id.engine.Available()
}

// Identify classifies the image at imagePath. A nil result means nothing could be produced,
// which only happens when no labels are usable.
func (id *Identifier) Identify(imagePath string) *Prediction {
	r := &run{path: imagePath}
	st := stageLoadLabels
	for st != stageDone {
		st = id.step(st, r)
	}
	return r.result
}

// step executes one stage and returns the next one. A panic in any stage moves to the fallback.
func (id *Identifier) step(st stage, r *run) (next stage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.err = fmt.Errorf("stage %d panicked: %v", st, rec)
			if st == stageFallback {
				r.result = nil
				next = stageDone
				return
			}
			next = stageFallback
		}
	}()

	switch st {
	case stageLoadLabels:
		r.labels = id.labels.Load()
		return stageCapability

	case stageCapability:
		if !id.engine.Available() {
			r.err = ErrInferenceUnavailable
			return stageFallback
		}
		return stageDecode

	case stageDecode:
		img, err := DecodeFile(r.path)
		if err != nil {
			r.err = err
			return stageFallback
		}
		r.img = img
		return stageInfer

	case stageInfer:
		p, err := id.infer(r.img, r.labels)
		if err != nil {
			r.err = err
			return stageInferRotated
		}
		if p != nil {
			r.result = p
			return stageDone
		}
		return stageInferRotated

	case stageInferRotated:
		p, err := id.infer(Rotate90(r.img), r.labels)
		if err != nil {
			r.err = err
			return stageFallback
		}
		if p != nil {
			p.Source = SourceModelRotated
			r.result = p
			return stageDone
		}
		r.err = nil
		return stageFallback

	case stageFallback:
		id.logFallback(r)
		r.result = id.resolver.Resolve(r.path)
		return stageDone
	}
	return stageDone
}

func (id *Identifier) infer(img image.Image, labels []string) (*Prediction, error) {
	tensor := Preprocess(img)

	scores, err := id.classify(tensor)
	if err != nil {
		if !errors.Is(err, ErrInferenceUnavailable) && !errors.Is(err, ErrInferenceFailure) {
			err = fmt.Errorf("%w: %v", ErrInferenceFailure, err)
		}
		return nil, err
	}
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("%w: model returned %d scores for %d labels", ErrInferenceFailure, len(scores), len(labels))
	}
	return PostProcess(scores, labels), nil
}

func (id *Identifier) classify(t Tensor) ([]float32, error) {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.engine.Classify(t)
}

func (id *Identifier) logFallback(r *run) {
	switch {
	case r.err == nil:
		log.Printf("vision: no confident prediction for %s, using fallback", r.path)
	case errors.Is(r.err, ErrInferenceUnavailable):
		// Expected on hosts without a model; not worth a log line per call.
	default:
		log.Printf("vision: %s: %v, using fallback", r.path, r.err)
	}
}

// Close releases the engine. It is safe to call when the engine never loaded.
func (id *Identifier) Close() error {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.engine.Close()
}
