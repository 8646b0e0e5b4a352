// Package server wires the analysis handlers into a gin router and runs the
// HTTP listener until its context is cancelled.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/fer-stream/internal/handlers"
)

const shutdownTimeout = 10 * time.Second

// NewRouter registers the public routes.
func NewRouter(h *handlers.Handler) *gin.Engine {
	router := gin.New()
	router.Use(Logger(), gin.Recovery())

	router.GET("/health", h.Health)
	router.POST("/predict", h.Predict)
	router.POST("/predict/image", h.Predict)
	router.GET("/ws", h.Stream)

	return router
}

// Start serves router on addr and shuts down gracefully once ctx is done.
// It returns only after all streaming sessions have ended.
func Start(ctx context.Context, addr string, h *handlers.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Hijacked WebSocket connections are not tracked by Shutdown.
	srv.RegisterOnShutdown(h.Close)

	errc := make(chan error, 1)

	go func() {
		log.Infof("server: listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("server: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Wait for streaming sessions so no frame is analysed after Start returns.
	h.Close()

	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.Info("server: shutdown complete")

	return nil
}
