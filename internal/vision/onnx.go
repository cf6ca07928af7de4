package vision

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEngine runs the species classifier with ONNX Runtime. Input and output tensors are
// allocated once and reused, so calls are serialized.
type ONNXEngine struct {
	mu sync.Mutex

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

// NewONNXEngine loads the shared library, environment and session for modelPath. The model
// must take the NHWC InputShape tensor and produce one score per class.
func NewONNXEngine(modelPath, libPath string, classes int) (*ONNXEngine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("empty model path")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if libPath == "" {
		libPath = defaultONNXLibName()
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx init environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx model has no inputs or outputs")
	}

	// The exported model uses a dynamic batch axis; pin it to a single image.
	inputShape := fixedShape(inputs[0].Dimensions)
	outputShape := fixedShape(outputs[0].Dimensions)
	if err := checkModelShapes(inputShape, outputShape, classes); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("onnx new input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return nil, fmt.Errorf("onnx new session: %w", err)
	}

	return &ONNXEngine{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

func (e *ONNXEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed
}

// Classify runs one forward pass and returns a copy of the 1xN output scores.
func (e *ONNXEngine) Classify(t Tensor) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, fmt.Errorf("%w: engine closed", ErrInferenceUnavailable)
	}

	inData := e.input.GetData()
	if len(inData) != len(t) {
		return nil, fmt.Errorf("%w: input tensor size %d, got %d", ErrInferenceFailure, len(inData), len(t))
	}
	copy(inData, t)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: onnx run: %v", ErrInferenceFailure, err)
	}

	out := e.output.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var closeErr error
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			closeErr = err
		}
	}
	if e.input != nil {
		if err := e.input.Destroy(); err != nil {
			closeErr = err
		}
	}
	if e.output != nil {
		if err := e.output.Destroy(); err != nil {
			closeErr = err
		}
	}
	if err := ort.DestroyEnvironment(); err != nil {
		closeErr = err
	}
	return closeErr
}

// checkModelShapes rejects models whose layout differs from what Preprocess produces, such as
// NCHW inputs with the same element count, and outputs that do not line up with the labels.
func checkModelShapes(input, output ort.Shape, classes int) error {
	if len(input) != len(InputShape) {
		return fmt.Errorf("model input shape %v, want %v", input, InputShape)
	}
	for i, d := range InputShape {
		if input[i] != d {
			return fmt.Errorf("model input shape %v, want %v", input, InputShape)
		}
	}

	if len(output) == 0 {
		return fmt.Errorf("model output has no dimensions")
	}
	if classes > 0 && (output[len(output)-1] != int64(classes) || output.FlattenedSize() != int64(classes)) {
		return fmt.Errorf("model output shape %v, want 1x%d", output, classes)
	}
	return nil
}

func fixedShape(dims ort.Shape) ort.Shape {
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		shape[i] = d
	}
	return shape
}

func defaultONNXLibName() string {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	}
	return ""
}
