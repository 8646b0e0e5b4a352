package model

import (
	"image"

	"github.com/nfnt/resize"
)

// Preprocess resizes img to size x size and converts it to a planar CHW
// tensor with values scaled to [0, 1].
func Preprocess(img image.Image, size int, order string) []float32 {
	resized := resize.Resize(uint(size), uint(size), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	first, third := 0, 2*plane
	if order == ChannelsBGR {
		first, third = third, first
	}

	inputData := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			pixelIndex := y*width + x
			inputData[first+pixelIndex] = float32(r) / 65535.0
			inputData[plane+pixelIndex] = float32(g) / 65535.0
			inputData[third+pixelIndex] = float32(b) / 65535.0
		}
	}

	return inputData
}
