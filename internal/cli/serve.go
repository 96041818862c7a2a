package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/ludus"
	httpAdapter "github.com/aretw0/ludus/pkg/adapters/http"
	mcpAdapter "github.com/aretw0/ludus/pkg/adapters/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// ShutdownTimeout gives outstanding requests a deadline on stop.
const ShutdownTimeout = 5 * time.Second

// NewHTTPServer builds the REST/SSE handler for app.
func NewHTTPServer(app *App) *httpAdapter.Server {
	opts := []httpAdapter.Option{
		httpAdapter.WithRegistry(app.Registry()),
		httpAdapter.WithValidator(app.Validator()),
		httpAdapter.WithVersion(ludus.Version),
		httpAdapter.WithLogger(app.Logger),
		httpAdapter.WithRequestValidation(app.Config.HTTP.Strict),
	}
	if sink, ok := app.Sink(); ok {
		opts = append(opts, httpAdapter.WithSink(sink))
	}
	if app.Watch != nil {
		opts = append(opts, httpAdapter.WithWatcher(app.Watch))
	}
	if app.Config.HTTP.Metrics && app.Gatherer != nil {
		opts = append(opts, httpAdapter.WithMetricsHandler(promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{})))
	}
	return httpAdapter.NewServer(app.Sessions(), opts...)
}

// Serve runs the HTTP server on addr until ctx is done, then drains the
// session queues before returning.
func Serve(ctx context.Context, app *App, addr string, out io.Writer) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPServer(app).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printSystemMessage(out, "Ludus server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		app.Logger.Info("Shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", ShutdownTimeout, err)
		}
		if err := app.Sessions().Wait(shutdownCtx); err != nil {
			return fmt.Errorf("session queues did not drain: %w", err)
		}
		printSystemMessage(out, "Ludus server stopped gracefully")
		return nil
	})
	return g.Wait()
}

// ServeMCP runs the MCP server over stdio, or over SSE when port > 0.
func ServeMCP(ctx context.Context, app *App, port int) error {
	srv := mcpAdapter.NewServer(app.Sessions(), app.Registry(), ludus.Version,
		mcpAdapter.WithValidator(app.Validator()),
		mcpAdapter.WithLogger(app.Logger),
	)
	if port > 0 {
		return srv.ServeSSE(ctx, port)
	}
	return srv.ServeStdio()
}
