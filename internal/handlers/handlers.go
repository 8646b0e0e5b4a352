package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Brownie44l1/fer-stream/internal/pipeline"
)

// Options tunes frame size limits and stream keepalive.
type Options struct {
	MaxFrameBytes int64
	PingPeriod    time.Duration
	PongWait      time.Duration
}

// Handler serves the one-shot and streaming analysis endpoints.
type Handler struct {
	analyzer pipeline.Analyzer
	opts     Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	closed   bool
	done     chan struct{}
	sessions sync.WaitGroup
}

// NewHandler returns a handler over a shared analyzer.
func NewHandler(analyzer pipeline.Analyzer, opts Options) *Handler {
	return &Handler{
		analyzer: analyzer,
		opts:     opts,
		upgrader: websocket.Upgrader{
			// Origin policy belongs to the deployment, not this service.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		done: make(chan struct{}),
	}
}

// Close asks all open streaming sessions to shut down and waits until they
// have returned. It may be called more than once.
func (h *Handler) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	h.mu.Unlock()

	h.sessions.Wait()
}

// track registers a new session unless the handler is closed.
func (h *Handler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	h.sessions.Add(1)

	return true
}

// Health reports that the service is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Predict analyses one uploaded image. The body may be the raw image or a
// multipart form with a "file" (or "image") field.
func (h *Handler) Predict(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxFrameBytes)

	data, err := readUpload(c)
	if err != nil {
		var tooLarge *http.MaxBytesError

		if errors.As(err, &tooLarge) {
			respondError(c, fmt.Sprintf("image exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}

		respondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), data)
	if err != nil {
		status, message := errorStatus(err)

		if status >= http.StatusInternalServerError {
			log.Errorf("predict: %s", err)
		} else {
			log.Debugf("predict: %s", err)
		}

		respondError(c, message, status)
		return
	}

	c.JSON(http.StatusOK, NewFrameResponse(result))
}

func readUpload(c *gin.Context) ([]byte, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		return data, nil
	}

	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		header, err = c.FormFile("image")
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("no image file provided, use 'file' as the form field name")
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	log.Tracef("predict: received %s, %d bytes", header.Filename, header.Size)

	return io.ReadAll(file)
}

// errorStatus maps pipeline errors to a status code and client message.
func errorStatus(err error) (int, string) {
	switch {
	case pipeline.IsDecodeError(err):
		return http.StatusBadRequest, err.Error()
	case pipeline.IsCapabilityFault(err):
		return http.StatusInternalServerError, "analysis failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "analysis failed"
	}
}

func respondError(c *gin.Context, message string, status int) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: message})
}
