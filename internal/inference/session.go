// Package inference owns the process-wide ONNX Runtime environment.
package inference

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initialized bool
	initMu      sync.Mutex
	logger      logrus.FieldLogger = logrus.StandardLogger()
)

// Initialize loads the ONNX Runtime shared library from libPath and creates
// the environment. Calls after the first successful one are no-ops.
func Initialize(libPath string, log logrus.FieldLogger) error {
	initMu.Lock()
	defer initMu.Unlock()

	if log != nil {
		logger = log
	}
	if initialized {
		return nil
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}

	initialized = true
	logger.WithField("library", libPath).Debug("onnx runtime initialized")
	return nil
}

// Shutdown destroys the environment.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}
	initialized = false
	return nil
}

// Session wraps an ONNX Runtime session with fixed input and output names.
type Session struct {
	session     *ort.DynamicAdvancedSession
	modelPath   string
	inputNames  []string
	outputNames []string
}

// NewSession loads modelPath, preferring the CoreML execution provider and
// falling back to CPU when it is unavailable.
func NewSession(modelPath string, inputNames, outputNames []string) (*Session, error) {
	initMu.Lock()
	ready := initialized
	initMu.Unlock()
	if !ready {
		return nil, fmt.Errorf("ONNX Runtime not initialized, call Initialize() first")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	entry := logger.WithField("model", modelPath)
	if err := options.AppendExecutionProviderCoreML(0); err != nil {
		entry.WithError(err).Warn("coreml provider unavailable, using cpu")
	} else {
		entry.Info("using coreml provider")
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, outputNames, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", modelPath, err)
	}

	return &Session{
		session:     session,
		modelPath:   modelPath,
		inputNames:  inputNames,
		outputNames: outputNames,
	}, nil
}

// Run executes inference.
func (s *Session) Run(inputs []ort.Value, outputs []ort.Value) error {
	return s.session.Run(inputs, outputs)
}

// ModelPath returns the path the session was loaded from.
func (s *Session) ModelPath() string {
	return s.modelPath
}

// Destroy releases the session.
func (s *Session) Destroy() error {
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}

// CreateEmptyTensor allocates a zeroed tensor for an output.
func CreateEmptyTensor[T ort.TensorData](shape []int64) (*ort.Tensor[T], error) {
	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}
	return ort.NewTensor(ort.NewShape(shape...), make([]T, size))
}
