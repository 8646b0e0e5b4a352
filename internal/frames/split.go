// Package frames splits a raw MJPEG byte stream into individual JPEG frames.
package frames

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
)

var (
	jpegSOI = []byte{0xFF, 0xD8} // start of image
	jpegEOI = []byte{0xFF, 0xD9} // end of image
)

// MaxFrameSize bounds a single frame held by a Scanner.
const MaxFrameSize = 16 << 20

// SplitJpeg is a bufio.SplitFunc that yields complete JPEG images, skipping
// any bytes before the first start marker.
func SplitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}

	end := frameEnd(data[start:])
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return 0, nil, nil
	}

	stop := start + end

	return stop, data[start:stop], nil
}

// frameEnd walks the marker segments of the JPEG at the start of data and
// returns the offset just past its end marker, or -1 if the frame is not
// complete yet. Segments are skipped by their length, so end markers of
// embedded thumbnails are not mistaken for the end of the frame.
func frameEnd(data []byte) int {
	i := len(jpegSOI)

	for i+1 < len(data) {
		if data[i] != 0xFF {
			return scanEOI(data, i)
		}

		marker := data[i+1]

		switch {
		case marker == 0xFF:
			// Fill byte.
			i++
		case marker == 0xD9:
			return i + len(jpegEOI)
		case marker == 0x01, isRST(marker):
			i += 2
		default:
			if i+3 >= len(data) {
				return -1
			}

			length := int(binary.BigEndian.Uint16(data[i+2:]))
			if length < 2 {
				return scanEOI(data, i+2)
			}

			i += 2 + length

			if marker == 0xDA {
				// Entropy coded data runs until the next marker that is
				// neither stuffing nor a restart.
				for {
					if i+1 >= len(data) {
						return -1
					}

					if next := data[i+1]; data[i] == 0xFF && next != 0x00 && next != 0xFF && !isRST(next) {
						break
					}

					i++
				}
			}
		}
	}

	return -1
}

// scanEOI is the fallback for streams that do not follow the segment layout.
func scanEOI(data []byte, from int) int {
	end := bytes.Index(data[from:], jpegEOI)
	if end == -1 {
		return -1
	}

	return from + end + len(jpegEOI)
}

func isRST(marker byte) bool {
	return marker >= 0xD0 && marker <= 0xD7
}

// NewScanner returns a scanner over r that yields one JPEG frame per Scan.
func NewScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), MaxFrameSize)
	scanner.Split(SplitJpeg)
	return scanner
}
