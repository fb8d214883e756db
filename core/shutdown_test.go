package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShutdownFunc_PropagatesErrors(t *testing.T) {
	expectedErr := errors.New("close history db")
	var fn ShutdownFunc = func(ctx context.Context) error {
		return expectedErr
	}

	if err := fn(context.Background()); !errors.Is(err, expectedErr) {
		t.Errorf("ShutdownFunc returned %v, want %v", err, expectedErr)
	}
}

func TestShutdownFunc_SeesDeadline(t *testing.T) {
	var fn ShutdownFunc = func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := fn(ctx); err != nil {
		t.Errorf("ShutdownFunc returned %v", err)
	}
}
