package face

import (
	"fmt"
	"image"
)

// Box is an axis-aligned face rectangle in source image pixels.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewBox returns a box from its top-left corner and size.
func NewBox(x, y, w, h int) Box {
	return Box{X: x, Y: y, Width: w, Height: h}
}

// String returns the box as "x,y,w,h".
func (b Box) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.X, b.Y, b.Width, b.Height)
}

// Array returns the box in [x, y, w, h] wire order.
func (b Box) Array() [4]int {
	return [4]int{b.X, b.Y, b.Width, b.Height}
}

// Rect returns the box as an image rectangle relative to the given origin.
func (b Box) Rect(origin image.Point) image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height).Add(origin)
}

// Empty tests if the box covers no pixels.
func (b Box) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Clamp restricts the box to a cols x rows image. The second result is false
// if nothing of the box remains inside the image.
func (b Box) Clamp(cols, rows int) (Box, bool) {
	if b.Empty() || b.X >= cols || b.Y >= rows {
		return Box{}, false
	}

	x0, y0 := max(b.X, 0), max(b.Y, 0)
	x1, y1 := farEdge(b.X, b.Width, cols), farEdge(b.Y, b.Height, rows)

	clamped := Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}

	if clamped.Empty() {
		return Box{}, false
	}

	return clamped, true
}

// farEdge returns min(origin+size, limit) without overflowing. It expects
// size > 0 and origin < limit.
func farEdge(origin, size, limit int) int {
	if origin < 0 {
		return min(origin+size, limit)
	}

	if size > limit-origin {
		return limit
	}

	return origin + size
}
