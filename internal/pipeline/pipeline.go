// Package pipeline turns one encoded frame into per-face emotion results.
//
// A Pipeline holds only read-only handles to its capabilities and keeps no
// state between calls, so it can be shared by any number of concurrent
// requests and streaming sessions.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"runtime/debug"

	"github.com/disintegration/imaging"

	"github.com/Brownie44l1/fer-stream/internal/emotion"
	"github.com/Brownie44l1/fer-stream/internal/face"
)

// Locator finds face boxes in a decoded frame.
type Locator interface {
	Detect(ctx context.Context, img image.Image) ([]face.Box, error)
}

// Classifier assigns an emotion to a cropped face.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) (emotion.Label, error)
}

// Analyzer analyses one encoded frame.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (*FrameResult, error)
}

// Pipeline runs decode, detection, cropping and classification in sequence.
type Pipeline struct {
	locator    Locator
	classifier Classifier
}

// New returns a pipeline over the given capabilities.
func New(locator Locator, classifier Classifier) *Pipeline {
	return &Pipeline{locator: locator, classifier: classifier}
}

// Analyze decodes data, locates faces and classifies each of them in
// detection order. Boxes that do not overlap the frame are skipped.
func (p *Pipeline) Analyze(ctx context.Context, data []byte) (*FrameResult, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()

	boxes, err := p.detect(ctx, img)
	if err != nil {
		return nil, err
	}

	faces := make([]FaceResult, 0, len(boxes))

	for i, b := range boxes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		box, ok := b.Clamp(cols, rows)

		if !ok {
			log.Debugf("pipeline: skipped box %d (%s) outside %dx%d frame", i, b, cols, rows)
			continue
		}

		crop := imaging.Crop(img, box.Rect(bounds.Min))

		if crop.Bounds().Empty() {
			log.Debugf("pipeline: skipped box %d (%s) with empty crop", i, b)
			continue
		}

		label, err := p.classify(ctx, crop)
		if err != nil {
			return nil, err
		}

		faces = append(faces, FaceResult{Box: box, Emotion: label})
	}

	log.Tracef("pipeline: %d of %d boxes classified in %dx%d frame", len(faces), len(boxes), cols, rows)

	return NewFrameResult(faces), nil
}

func (p *Pipeline) detect(ctx context.Context, img image.Image) (boxes []face.Box, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("pipeline: %s (detect panic)\nstack: %s", r, debug.Stack())
			err = &CapabilityFault{Op: "detect", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	boxes, err = p.locator.Detect(ctx, img)
	if err != nil {
		return nil, fault("detect", err)
	}

	return boxes, nil
}

func (p *Pipeline) classify(ctx context.Context, img image.Image) (label emotion.Label, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("pipeline: %s (classify panic)\nstack: %s", r, debug.Stack())
			err = &CapabilityFault{Op: "classify", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	label, err = p.classifier.Classify(ctx, img)
	if err != nil {
		return 0, fault("classify", err)
	}

	label, err = emotion.FromIndex(label.Index())
	if err != nil {
		return 0, &CapabilityFault{Op: "classify", Err: err}
	}

	return label, nil
}
