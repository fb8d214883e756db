package shutdown

import (
	"context"
	"errors"
	"io"
	"net/http"
	"syscall"

	"storyforge/core"
	"storyforge/logging"
)

// HTTPServer returns a hook that drains srv. If ctx expires first the
// remaining connections are closed outright.
func HTTPServer(srv *http.Server) core.ShutdownFunc {
	return func(ctx context.Context) error {
		err := srv.Shutdown(ctx)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return errors.Join(err, srv.Close())
		}
		return err
	}
}

// Closer returns a hook that closes c.
func Closer(c io.Closer) core.ShutdownFunc {
	return func(context.Context) error {
		return c.Close()
	}
}

// SyncLogger returns a hook that flushes logger. Sync on a terminal
// fails with EINVAL or ENOTTY; those are not reported.
func SyncLogger(logger *logging.Logger) core.ShutdownFunc {
	return func(context.Context) error {
		err := logger.Sync()
		if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
			return nil
		}
		return err
	}
}
