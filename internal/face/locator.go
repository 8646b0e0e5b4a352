// Package face locates faces in decoded frames.
//
// Two backends are available: a pure Go cascade detector and a client for a
// remote detection service. Both are configured once at startup and are safe
// for concurrent use.
package face

import (
	"context"
	"fmt"
	"image"
	"time"
)

// Locator finds faces in a decoded image. Boxes are returned in backend order
// and may extend past the image bounds.
type Locator interface {
	Detect(ctx context.Context, img image.Image) ([]Box, error)
}

// Backend names.
const (
	BackendPigo   = "pigo"
	BackendRemote = "remote"
)

// Options configures a locator backend.
type Options struct {
	Backend       string
	CascadePath   string
	MinConfidence float64
	MinSize       int
	MaxSize       int
	ShiftFactor   float64
	ScaleFactor   float64
	IoUThreshold  float64
	RemoteURL     string
	RemoteTimeout time.Duration
}

// New creates the locator selected by opts.Backend.
func New(opts Options) (Locator, error) {
	switch opts.Backend {
	case BackendPigo, "":
		return NewPigo(opts)
	case BackendRemote:
		return NewRemote(opts)
	default:
		return nil, fmt.Errorf("faces: unknown backend %q", opts.Backend)
	}
}
