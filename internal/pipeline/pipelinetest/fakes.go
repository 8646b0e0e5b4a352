// Package pipelinetest provides deterministic stand-ins for the face locator
// and emotion classifier, and helpers to build encoded test frames.
package pipelinetest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/Brownie44l1/fer-stream/internal/emotion"
	"github.com/Brownie44l1/fer-stream/internal/face"
)

// Locator returns a fixed set of boxes, or Err.
type Locator struct {
	Boxes []face.Box
	Err   error
	Panic bool
	calls atomic.Int32
}

// Detect implements pipeline.Locator.
func (l *Locator) Detect(ctx context.Context, img image.Image) ([]face.Box, error) {
	l.calls.Add(1)

	if l.Panic {
		panic("locator exploded")
	}

	if l.Err != nil {
		return nil, l.Err
	}

	out := make([]face.Box, len(l.Boxes))
	copy(out, l.Boxes)

	return out, nil
}

// Calls returns how often Detect ran.
func (l *Locator) Calls() int {
	return int(l.calls.Load())
}

// CenterLocator reports one box covering the middle half of the frame.
type CenterLocator struct{}

// Detect implements pipeline.Locator.
func (CenterLocator) Detect(ctx context.Context, img image.Image) ([]face.Box, error) {
	b := img.Bounds()
	return []face.Box{face.NewBox(b.Dx()/4, b.Dy()/4, b.Dx()/2, b.Dy()/2)}, nil
}

// ColorClassifier derives the label from the red channel of the crop's
// centre pixel, see LabelColor.
type ColorClassifier struct {
	Err   error
	calls atomic.Int32
}

// Classify implements pipeline.Classifier.
func (c *ColorClassifier) Classify(ctx context.Context, img image.Image) (emotion.Label, error) {
	c.calls.Add(1)

	if c.Err != nil {
		return 0, c.Err
	}

	b := img.Bounds()
	r, _, _, _ := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()

	return emotion.Label(int(r>>8) / 32), nil
}

// Calls returns how often Classify ran.
func (c *ColorClassifier) Calls() int {
	return int(c.calls.Load())
}

// LabelColor returns the color ColorClassifier maps to l.
func LabelColor(l emotion.Label) color.Color {
	return color.RGBA{R: uint8(l.Index()*32 + 16), G: 90, B: 60, A: 255}
}

// Frame returns a solid w x h image in the color of l.
func Frame(w, h int, l emotion.Label) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := LabelColor(l)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	return img
}

// Paint fills rect of img with the color of l.
func Paint(img *image.RGBA, rect image.Rectangle, l emotion.Label) {
	c := LabelColor(l)

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// PNG encodes img.
func PNG(t testing.TB, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}

	return buf.Bytes()
}

// FramePNG is shorthand for PNG(t, Frame(w, h, l)).
func FramePNG(t testing.TB, w, h int, l emotion.Label) []byte {
	t.Helper()
	return PNG(t, Frame(w, h, l))
}
