package model

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/Brownie44l1/fer-stream/internal/emotion"
)

// Channel orders accepted in the model metadata.
const (
	ChannelsRGB = "rgb"
	ChannelsBGR = "bgr"
)

// Metadata describes the input and output layout of the emotion model.
type Metadata struct {
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	Classes      []string `json:"classes"`
	ImageSize    int      `json:"image_size"`
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	ChannelOrder string   `json:"channel_order"`
}

// Prediction is the scored result of one inference run.
type Prediction struct {
	Label       emotion.Label
	Confidence  float32
	Predictions map[string]float32
}

// DefaultMetadata returns the layout of the stock 224x224 NCHW model.
func DefaultMetadata() Metadata {
	return Metadata{
		InputShape:   []int64{1, 3, 224, 224},
		OutputShape:  []int64{1, emotion.Count},
		ImageSize:    224,
		InputName:    "input",
		OutputName:   "output",
		ChannelOrder: ChannelsRGB,
	}
}

// LoadMetadata reads a metadata file and fills in defaults for missing
// fields. An empty path returns the defaults.
func LoadMetadata(path string) (Metadata, error) {
	metadata := DefaultMetadata()

	if path == "" {
		return metadata, nil
	}

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}

	var parsed Metadata
	if err := json.Unmarshal(metaFile, &parsed); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if len(parsed.InputShape) > 0 {
		metadata.InputShape = parsed.InputShape
	}
	if len(parsed.OutputShape) > 0 {
		metadata.OutputShape = parsed.OutputShape
	}
	if parsed.ImageSize > 0 {
		metadata.ImageSize = parsed.ImageSize
	}
	if parsed.InputName != "" {
		metadata.InputName = parsed.InputName
	}
	if parsed.OutputName != "" {
		metadata.OutputName = parsed.OutputName
	}
	if parsed.ChannelOrder != "" {
		metadata.ChannelOrder = parsed.ChannelOrder
	}
	metadata.Classes = parsed.Classes

	return metadata, metadata.Validate()
}

// Validate checks that the metadata matches the fixed emotion label set and
// a 3 channel square input.
func (m Metadata) Validate() error {
	if m.ImageSize <= 0 {
		return fmt.Errorf("metadata: image size must be > 0")
	}

	if want := int64(3 * m.ImageSize * m.ImageSize); shapeSize(m.InputShape) != want {
		return fmt.Errorf("metadata: input shape %v does not hold 3x%dx%d", m.InputShape, m.ImageSize, m.ImageSize)
	}

	if shapeSize(m.OutputShape) != emotion.Count {
		return fmt.Errorf("metadata: output shape %v must hold %d scores", m.OutputShape, emotion.Count)
	}

	for _, name := range m.Classes {
		if _, err := emotion.Parse(name); err != nil {
			return fmt.Errorf("metadata: %w", err)
		}
	}

	if len(m.Classes) > 0 && !slices.Equal(m.Classes, emotion.Names()) {
		return fmt.Errorf("metadata: classes %v do not match %v", m.Classes, emotion.Names())
	}

	switch m.ChannelOrder {
	case ChannelsRGB, ChannelsBGR:
	default:
		return fmt.Errorf("metadata: unknown channel order %q", m.ChannelOrder)
	}

	return nil
}

func shapeSize(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}

	size := int64(1)
	for _, dim := range shape {
		size *= dim
	}

	return size
}
