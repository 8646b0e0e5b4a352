package pipeline

import (
	"github.com/Brownie44l1/fer-stream/internal/emotion"
	"github.com/Brownie44l1/fer-stream/internal/face"
)

// FaceResult is one classified face.
type FaceResult struct {
	Box     face.Box
	Emotion emotion.Label
}

// Index returns the classifier index of the face's emotion.
func (f FaceResult) Index() int {
	return f.Emotion.Index()
}

// FrameResult is the analysis of one frame. Faces are in detection order.
type FrameResult struct {
	NumFaces int
	Faces    []FaceResult
	// PrimaryEmotion is the emotion of the first face, nil without faces.
	PrimaryEmotion *emotion.Label
}

// NewFrameResult assembles a result from the surviving faces.
func NewFrameResult(faces []FaceResult) *FrameResult {
	if faces == nil {
		faces = []FaceResult{}
	}

	result := &FrameResult{
		NumFaces: len(faces),
		Faces:    faces,
	}

	if len(faces) > 0 {
		primary := faces[0].Emotion
		result.PrimaryEmotion = &primary
	}

	return result
}
