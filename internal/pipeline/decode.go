package pipeline

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode converts an encoded payload into an upright image. Any failure is
// returned as *DecodeError.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty payload"}
	}

	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported payload type %s", kind.Extension)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))

	if err != nil {
		return nil, &DecodeError{Reason: "decode failed", Err: err}
	}

	if img.Bounds().Empty() {
		return nil, &DecodeError{Reason: "image has no pixels"}
	}

	return img, nil
}
