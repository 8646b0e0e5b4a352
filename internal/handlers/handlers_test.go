package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/fer-stream/internal/emotion"
	"github.com/Brownie44l1/fer-stream/internal/face"
	"github.com/Brownie44l1/fer-stream/internal/pipeline"
	"github.com/Brownie44l1/fer-stream/internal/pipeline/pipelinetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testOptions() Options {
	return Options{
		MaxFrameBytes: 1 << 20,
		PingPeriod:    time.Second,
		PongWait:      2 * time.Second,
	}
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.GET("/ws", h.Stream)
	return r
}

func centerPipeline() *pipeline.Pipeline {
	return pipeline.New(pipelinetest.CenterLocator{}, &pipelinetest.ColorClassifier{})
}

func post(t *testing.T, router http.Handler, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestHealth(t *testing.T) {
	router := newTestRouter(NewHandler(centerPipeline(), testOptions()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestPredict_RawBody(t *testing.T) {
	router := newTestRouter(NewHandler(centerPipeline(), testOptions()))

	w := post(t, router, pipelinetest.FramePNG(t, 80, 60, emotion.Happy), "image/png")
	require.Equal(t, http.StatusOK, w.Code)

	var resp FrameResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.NumFaces)
	require.Len(t, resp.Faces, 1)
	assert.Equal(t, [4]int{20, 15, 40, 30}, resp.Faces[0].Box)
	assert.Equal(t, "Happy", resp.Faces[0].Emotion)
	assert.Equal(t, 3, resp.Faces[0].Index)
	assert.Equal(t, "Happy", resp.PrimaryEmotion)
}

func TestPredict_Multipart(t *testing.T) {
	router := newTestRouter(NewHandler(centerPipeline(), testOptions()))

	for _, field := range []string{"file", "image"} {
		t.Run(field, func(t *testing.T) {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)

			part, err := writer.CreateFormFile(field, "face.png")
			require.NoError(t, err)
			_, err = part.Write(pipelinetest.FramePNG(t, 40, 40, emotion.Sad))
			require.NoError(t, err)
			require.NoError(t, writer.Close())

			w := post(t, router, body.Bytes(), writer.FormDataContentType())
			require.Equal(t, http.StatusOK, w.Code)

			var resp FrameResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "Sad", resp.PrimaryEmotion)
		})
	}
}

func TestPredict_MultipartMissingField(t *testing.T) {
	router := newTestRouter(NewHandler(centerPipeline(), testOptions()))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("name", "x"))
	require.NoError(t, writer.Close())

	w := post(t, router, body.Bytes(), writer.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "'file'")
}

func TestPredict_NoFaces(t *testing.T) {
	router := newTestRouter(NewHandler(pipeline.New(&pipelinetest.Locator{}, &pipelinetest.ColorClassifier{}), testOptions()))

	w := post(t, router, pipelinetest.FramePNG(t, 32, 32, emotion.Happy), "image/png")
	require.Equal(t, http.StatusOK, w.Code)

	assert.JSONEq(t, `{"num_faces":0,"faces":[]}`, w.Body.String())
}

func TestPredict_DecodeError(t *testing.T) {
	router := newTestRouter(NewHandler(centerPipeline(), testOptions()))

	w := post(t, router, []byte("this is plain text"), "application/octet-stream")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Contains(t, body, "error")
	assert.NotContains(t, body, "num_faces")
	assert.NotContains(t, body, "faces")
	assert.NotContains(t, body, "primary_emotion")
}

func TestPredict_CapabilityFault(t *testing.T) {
	p := pipeline.New(&pipelinetest.Locator{Err: errors.New("device lost")}, &pipelinetest.ColorClassifier{})
	router := newTestRouter(NewHandler(p, testOptions()))

	w := post(t, router, pipelinetest.FramePNG(t, 16, 16, emotion.Happy), "image/png")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"analysis failed"}`, w.Body.String())
}

func TestPredict_TooLarge(t *testing.T) {
	opts := testOptions()
	opts.MaxFrameBytes = 64
	router := newTestRouter(NewHandler(centerPipeline(), opts))

	w := post(t, router, bytes.Repeat([]byte{0xFF}, 1024), "image/jpeg")

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestNewFrameResponse(t *testing.T) {
	result := pipeline.NewFrameResult([]pipeline.FaceResult{
		{Box: face.NewBox(1, 2, 3, 4), Emotion: emotion.Surprised},
		{Box: face.NewBox(5, 6, 7, 8), Emotion: emotion.Angry},
	})

	resp := NewFrameResponse(result)

	assert.Equal(t, 2, resp.NumFaces)
	assert.Equal(t, "Surprised", resp.PrimaryEmotion)
	assert.Equal(t, FaceResponse{Box: [4]int{5, 6, 7, 8}, Emotion: "Angry", Index: 0}, resp.Faces[1])
}

func TestErrorStatus(t *testing.T) {
	status, msg := errorStatus(&pipeline.DecodeError{Reason: "empty payload"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid image: empty payload", msg)

	status, _ = errorStatus(&pipeline.CapabilityFault{Op: "detect", Err: errors.New("x")})
	assert.Equal(t, http.StatusInternalServerError, status)
}
