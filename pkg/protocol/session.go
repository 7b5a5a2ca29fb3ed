package protocol

import (
	"context"
	"log/slog"
)

// Session is an automation session, typically a browser, used by the steps of one run.
// Cleanup must be safe to call after a failed Init.
type Session interface {
	Init(ctx context.Context) (Session, error)
	Cleanup(ctx context.Context) error
}

// SessionFactory creates the session for a run.
type SessionFactory func(ctx context.Context, logger *slog.Logger) (Session, error)
