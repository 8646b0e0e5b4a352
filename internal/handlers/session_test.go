package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/fer-stream/internal/emotion"
	"github.com/Brownie44l1/fer-stream/internal/pipeline"
	"github.com/Brownie44l1/fer-stream/internal/pipeline/pipelinetest"
)

type streamMessage struct {
	FrameResponse
	Error string `json:"error"`
}

func dial(t *testing.T, h *Handler) (*websocket.Conn, func()) {
	t.Helper()

	srv := httptest.NewServer(newTestRouter(h))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func roundTrip(t *testing.T, conn *websocket.Conn, messageType int, data []byte) streamMessage {
	t.Helper()

	require.NoError(t, conn.WriteMessage(messageType, data))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestStream_Order(t *testing.T) {
	conn, done := dial(t, NewHandler(centerPipeline(), testOptions()))
	defer done()

	labels := []emotion.Label{emotion.Fearful, emotion.Happy, emotion.Neutral, emotion.Angry}

	// Send everything first, then read: replies must come back in send order.
	for _, l := range labels {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pipelinetest.FramePNG(t, 48, 48, l)))
	}

	for i, l := range labels {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		var msg streamMessage
		require.NoError(t, conn.ReadJSON(&msg))

		assert.Empty(t, msg.Error)
		assert.Equal(t, 1, msg.NumFaces, "frame %d", i)
		require.Len(t, msg.Faces, 1)
		assert.Equal(t, l.String(), msg.Faces[0].Emotion, "frame %d", i)
	}
}

func TestStream_DecodeErrorKeepsSession(t *testing.T) {
	conn, done := dial(t, NewHandler(centerPipeline(), testOptions()))
	defer done()

	bad := roundTrip(t, conn, websocket.BinaryMessage, []byte("garbage"))
	assert.Contains(t, bad.Error, "invalid image")
	assert.Nil(t, bad.Faces)

	good := roundTrip(t, conn, websocket.BinaryMessage, pipelinetest.FramePNG(t, 40, 40, emotion.Surprised))
	assert.Empty(t, good.Error)
	assert.Equal(t, 1, good.NumFaces)
	assert.Equal(t, "Surprised", good.PrimaryEmotion)
}

func TestStream_TextFrame(t *testing.T) {
	conn, done := dial(t, NewHandler(centerPipeline(), testOptions()))
	defer done()

	msg := roundTrip(t, conn, websocket.TextMessage, []byte("hello"))
	assert.Equal(t, "expected binary image frame", msg.Error)

	msg = roundTrip(t, conn, websocket.BinaryMessage, pipelinetest.FramePNG(t, 40, 40, emotion.Sad))
	assert.Equal(t, "Sad", msg.PrimaryEmotion)
}

func TestStream_NoFaces(t *testing.T) {
	conn, done := dial(t, NewHandler(pipeline.New(&pipelinetest.Locator{}, &pipelinetest.ColorClassifier{}), testOptions()))
	defer done()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pipelinetest.FramePNG(t, 20, 20, emotion.Happy)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	assert.JSONEq(t, `{"num_faces":0,"faces":[]}`, string(raw))
}

func TestStream_CapabilityFaultClosesSession(t *testing.T) {
	p := pipeline.New(&pipelinetest.Locator{Err: errors.New("model state corrupted")}, &pipelinetest.ColorClassifier{})
	conn, done := dial(t, NewHandler(p, testOptions()))
	defer done()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pipelinetest.FramePNG(t, 20, 20, emotion.Happy)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()

	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseInternalServerErr), "got %v", err)
}

func TestStream_ShutdownClosesSession(t *testing.T) {
	h := NewHandler(centerPipeline(), testOptions())
	conn, done := dial(t, h)
	defer done()

	// The session is live once it answers.
	roundTrip(t, conn, websocket.BinaryMessage, pipelinetest.FramePNG(t, 20, 20, emotion.Happy))

	h.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()

	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestStream_ClientClose(t *testing.T) {
	conn, done := dial(t, NewHandler(centerPipeline(), testOptions()))
	defer done()

	roundTrip(t, conn, websocket.BinaryMessage, pipelinetest.FramePNG(t, 20, 20, emotion.Happy))

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	// The server echoes the close frame.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStream_OversizedFrame(t *testing.T) {
	opts := testOptions()
	opts.MaxFrameBytes = 64

	conn, done := dial(t, NewHandler(centerPipeline(), opts))
	defer done()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, make([]byte, 1024)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()

	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)
}

func TestStream_MissingPongEndsSession(t *testing.T) {
	opts := testOptions()
	opts.PingPeriod = 50 * time.Millisecond
	opts.PongWait = 150 * time.Millisecond

	conn, done := dial(t, NewHandler(centerPipeline(), opts))
	defer done()

	// Swallow pings without answering.
	conn.SetPingHandler(func(string) error { return nil })

	start := time.Now()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()

	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second, "session outlived pong_wait: %v", err)
}

// blockingAnalyzer holds every frame until release is closed.
type blockingAnalyzer struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
}

func (a *blockingAnalyzer) Analyze(ctx context.Context, data []byte) (*pipeline.FrameResult, error) {
	close(a.started)
	<-a.release
	a.finished.Store(true)
	return pipeline.NewFrameResult(nil), nil
}

func TestHandler_CloseWaitsForSessions(t *testing.T) {
	a := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	h := NewHandler(a, testOptions())

	conn, done := dial(t, h)
	defer done()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, pipelinetest.FramePNG(t, 20, 20, emotion.Happy)))
	<-a.started

	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()

	// The client is told to go away while the frame is still in flight.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	select {
	case <-closed:
		t.Fatal("Close returned before the session finished its frame")
	case <-time.After(100 * time.Millisecond):
	}

	close(a.release)

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	assert.True(t, a.finished.Load())
}

func TestHandler_StreamRefusedAfterClose(t *testing.T) {
	h := NewHandler(centerPipeline(), testOptions())
	h.Close()

	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
