package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/keithrbennett/covloupe/internal/contract"
	"github.com/mark3labs/mcp-go/server"
)

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// NewHTTPHandler mounts the MCP server on a chi router next to a /healthz probe.
func NewHTTPHandler(baseCfg *contract.Config, opts Options) http.Handler {
	s := NewMCPServer(baseCfg, opts)
	streamable := server.NewStreamableHTTPServer(s, server.WithEndpointPath(EndpointPath))

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle(EndpointPath, streamable)
	return r
}

// StartHTTPServer serves MCP over streamable HTTP on addr until ctx is cancelled.
func StartHTTPServer(ctx context.Context, addr string, baseCfg *contract.Config, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(baseCfg, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mcp http server listening", "addr", addr, "endpoint", EndpointPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("mcp http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
