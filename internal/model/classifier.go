// Package model runs the pretrained emotion network through ONNX Runtime.
package model

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/fer-stream/internal/emotion"
)

// Classifier wraps an ONNX Runtime session for the emotion model. Tensors are
// allocated once and reused, so inference runs are serialised.
type Classifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// Options configures where the model and the runtime library are loaded from.
type Options struct {
	ModelPath    string
	MetadataPath string
	LibraryPath  string
}

// NewClassifier initialises the runtime environment and loads the model.
func NewClassifier(opts Options) (*Classifier, error) {
	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	log.Infof("model: loading %s", filepath.Base(opts.ModelPath))

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Classifier{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Classify returns the expression label for a face crop of any size.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (emotion.Label, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := c.Predict(Preprocess(img, c.Metadata.ImageSize, c.Metadata.ChannelOrder))
	if err != nil {
		return 0, err
	}

	return result.Label, nil
}

// Predict runs inference on a preprocessed CHW input.
func (c *Classifier) Predict(inputData []float32) (*Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(inputData) != len(c.inputTensor.GetData()) {
		return nil, fmt.Errorf("expected %d values, got %d", len(c.inputTensor.GetData()), len(inputData))
	}

	copy(c.inputTensor.GetData(), inputData)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	return scorePrediction(c.outputTensor.GetData())
}

// scorePrediction maps raw model output onto the label set.
func scorePrediction(outputData []float32) (*Prediction, error) {
	label, err := emotion.Argmax(outputData)
	if err != nil {
		return nil, err
	}

	predictions := make(map[string]float32, emotion.Count)

	for i, val := range outputData {
		if i < emotion.Count {
			predictions[emotion.Label(i).String()] = val
		}
	}

	return &Prediction{
		Label:       label,
		Confidence:  outputData[label],
		Predictions: predictions,
	}, nil
}

// Close releases the tensors, the session and the runtime environment.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}
