package protocol

import "context"

type runIDKey struct{}

// WithRunID returns a context carrying the id of the run being executed.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run id set by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(runIDKey{}).(string)

	return runID, ok && runID != ""
}
