package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start serves HTTP on app.server.http.address. The returned channel is
// closed on SIGINT, SIGTERM or SIGHUP, or when the server stops on its own.
func (a *App) Start() <-chan struct{} {
	l, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		slog.Error("failed to listen http server", "address", a.httpServer.Addr, "error", err)
		os.Exit(1)
	}

	serveErr := a.Serve(l)
	terminateChan := make(chan struct{})

	go func() {
		defer close(terminateChan)

		sigCtx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		select {
		case <-sigCtx.Done():
			slog.Info("shutdown signal received")
		case err := <-serveErr:
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server stopped unexpectedly", "error", err)
			}
		}
	}()

	return terminateChan
}

// Serve runs the HTTP server on l until Stop. The channel yields the
// http.Server.Serve result.
func (a *App) Serve(l net.Listener) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)

		slog.Info("http server listening", "address", l.Addr().String())
		errChan <- a.httpServer.Serve(l)
	}()

	return errChan
}

// Stop drains in-flight requests, waits for background event publishing and
// then closes resources in initClosers order.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}

	if a.cancel != nil {
		a.cancel()
	}

	slog.InfoContext(ctx, "waiting for background tasks to finish")
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "background tasks finished with errors", "error", err)
	}

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}

	slog.InfoContext(ctx, "application gracefully shutdown")
}
