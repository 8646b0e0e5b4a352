package handlers

import (
	"github.com/Brownie44l1/fer-stream/internal/pipeline"
)

// FaceResponse is one face in the wire schema.
type FaceResponse struct {
	Box     [4]int `json:"box"`
	Emotion string `json:"emotion"`
	Index   int    `json:"index"`
}

// FrameResponse is the wire schema shared by /predict and /ws.
type FrameResponse struct {
	NumFaces       int            `json:"num_faces"`
	Faces          []FaceResponse `json:"faces"`
	PrimaryEmotion string         `json:"primary_emotion,omitempty"`
}

// ErrorResponse is returned for rejected frames.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewFrameResponse converts a pipeline result into its wire form.
func NewFrameResponse(r *pipeline.FrameResult) FrameResponse {
	resp := FrameResponse{
		NumFaces: r.NumFaces,
		Faces:    make([]FaceResponse, 0, len(r.Faces)),
	}

	for _, f := range r.Faces {
		resp.Faces = append(resp.Faces, FaceResponse{
			Box:     f.Box.Array(),
			Emotion: f.Emotion.String(),
			Index:   f.Index(),
		})
	}

	if r.PrimaryEmotion != nil {
		resp.PrimaryEmotion = r.PrimaryEmotion.String()
	}

	return resp
}
