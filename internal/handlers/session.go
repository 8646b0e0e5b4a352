package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Brownie44l1/fer-stream/internal/pipeline"
)

const writeWait = 10 * time.Second

// Session is one streaming client. Frames are read, analysed and answered
// one at a time on a single goroutine, so replies keep request order.
type Session struct {
	ID       string
	conn     *websocket.Conn
	analyzer pipeline.Analyzer
	opts     Options
	shutdown <-chan struct{}
	live     atomic.Bool
	frames   int
}

// Stream upgrades the request to a WebSocket and runs a session on it until
// the client leaves or the connection fails.
func (h *Handler) Stream(c *gin.Context) {
	if !h.track() {
		respondError(c, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.sessions.Done()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		log.Warnf("ws: upgrade failed: %s", err)
		return
	}

	s := &Session{
		ID:       uuid.NewString(),
		conn:     conn,
		analyzer: h.analyzer,
		opts:     h.opts,
		shutdown: h.done,
	}

	if err := s.Run(c.Request.Context()); err != nil {
		log.Warnf("ws: session %s terminated after %d frames: %s", s.ID, s.frames, err)
	}
}

// Run processes frames until the client closes the connection, which
// returns nil, or until a transport or capability fault.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.close()

	s.live.Store(true)
	log.Debugf("ws: session %s opened from %s", s.ID, s.conn.RemoteAddr())

	s.conn.SetReadLimit(s.opts.MaxFrameBytes)
	s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	go s.keepalive(ctx)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return s.readError(err)
		}

		s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		if err := s.handle(ctx, messageType, data); err != nil {
			return err
		}
	}
}

// handle answers exactly one message. Only capability faults and write
// failures end the session.
func (s *Session) handle(ctx context.Context, messageType int, data []byte) error {
	s.frames++

	if messageType != websocket.BinaryMessage {
		return s.send(ErrorResponse{Error: "expected binary image frame"})
	}

	result, err := s.analyzer.Analyze(ctx, data)

	switch {
	case err == nil:
		return s.send(NewFrameResponse(result))
	case pipeline.IsDecodeError(err):
		log.Debugf("ws: session %s frame %d: %s", s.ID, s.frames, err)
		return s.send(ErrorResponse{Error: err.Error()})
	default:
		log.Errorf("ws: session %s frame %d: %s", s.ID, s.frames, err)
		s.closeWith(websocket.CloseInternalServerErr, "analysis failed")
		return err
	}
}

func (s *Session) send(v any) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *Session) readError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		log.Debugf("ws: session %s closed by client after %d frames", s.ID, s.frames)
		return nil
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		return errors.New("frame exceeds size limit")
	}

	return err
}

// keepalive pings the client and closes the session on server shutdown.
// WriteControl and Close may run concurrently with the read loop.
func (s *Session) keepalive(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			s.closeWith(websocket.CloseGoingAway, "server shutting down")
			s.conn.Close()
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Session) closeWith(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (s *Session) close() {
	if s.live.Swap(false) {
		s.conn.Close()
		log.Debugf("ws: session %s released", s.ID)
	}
}
