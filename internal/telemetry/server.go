package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 5 * time.Second

// Handler routes path to the hub's websocket endpoint.
func Handler(h *Hub, path string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	return mux
}

// Serve runs the hub and its HTTP endpoint on lis until ctx is done.
func Serve(ctx context.Context, lis net.Listener, h *Hub, path string) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.Run(hubCtx)

	srv := &http.Server{
		Handler:           Handler(h, path),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	h.logger.Info().Str("address", lis.Addr().String()).Str("path", path).Msg("Telemetry listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		// Hijacked websocket connections are closed by the hub, not by Shutdown.
		cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
