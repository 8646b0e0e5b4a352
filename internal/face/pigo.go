package face

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"
)

// Pigo is a pure Go cascade face detector. The classifier is read-only
// after unpacking, so a single instance can serve all sessions.
type Pigo struct {
	classifier *pigo.Pigo
	opts       Options
}

// NewPigo loads and unpacks the cascade file named in opts.
func NewPigo(opts Options) (*Pigo, error) {
	if opts.CascadePath == "" {
		return nil, fmt.Errorf("faces: cascade path missing")
	}

	log.Infof("faces: loading cascade %s", filepath.Base(opts.CascadePath))

	cascade, err := os.ReadFile(opts.CascadePath)

	if err != nil {
		return nil, fmt.Errorf("faces: failed to read cascade: %w", err)
	}

	return NewPigoFromCascade(cascade, opts)
}

// NewPigoFromCascade unpacks an in-memory cascade.
func NewPigoFromCascade(cascade []byte, opts Options) (p *Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("faces: invalid cascade (%v)", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)

	if err != nil {
		return nil, fmt.Errorf("faces: failed to unpack cascade: %w", err)
	}

	return &Pigo{classifier: classifier, opts: opts}, nil
}

// Detect runs the cascade over a grayscale copy of img.
func (p *Pigo) Detect(ctx context.Context, img image.Image) ([]Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := imaging.Clone(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()

	params := pigo.CascadeParams{
		MinSize:     p.opts.MinSize,
		MaxSize:     p.opts.MaxSize,
		ShiftFactor: p.opts.ShiftFactor,
		ScaleFactor: p.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(src),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, p.opts.IoUThreshold)

	boxes := detectionBoxes(dets, float32(p.opts.MinConfidence))

	log.Tracef("faces: %d candidates, %d above threshold", len(dets), len(boxes))

	return boxes, nil
}

// detectionBoxes converts centre/scale detections into boxes, dropping the
// ones scoring below minQ.
func detectionBoxes(dets []pigo.Detection, minQ float32) []Box {
	boxes := make([]Box, 0, len(dets))

	for _, d := range dets {
		if d.Q < minQ {
			continue
		}

		half := d.Scale / 2
		boxes = append(boxes, NewBox(d.Col-half, d.Row-half, d.Scale, d.Scale))
	}

	return boxes
}
