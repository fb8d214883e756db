package core

import (
	"context"
)

// ShutdownFunc releases one resource during graceful shutdown: the HTTP
// server, the history writer, the database, or the logger. The context
// carries the shutdown deadline. Implementations must be idempotent.
//
// Example:
//
//	var closeHistory ShutdownFunc = func(ctx context.Context) error {
//	    return database.Close()
//	}
type ShutdownFunc func(ctx context.Context) error
