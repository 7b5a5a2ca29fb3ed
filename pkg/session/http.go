// Package session provides automation sessions a run can drive without a real browser.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/protocol"
)

const defaultTimeout = 30 * time.Second

// ErrNotInitialized is returned when a session is used before Init.
var ErrNotInitialized = errors.New("session not initialized")

// HTTPClient is implemented by sessions that can issue HTTP requests on behalf of steps.
type HTTPClient interface {
	Client() (*http.Client, error)
}

// HTTPSession keeps one cookie jar for every request of a run, the way a browser tab keeps its cookies.
type HTTPSession struct {
	timeout time.Duration
	logger  *slog.Logger
	client  *http.Client
}

// NewHTTPSession creates an uninitialized session. A zero timeout means 30s.
func NewHTTPSession(timeout time.Duration, logger *slog.Logger) *HTTPSession {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPSession{timeout: timeout, logger: log.OrNop(logger)}
}

// HTTPFactory returns a SessionFactory producing HTTP sessions.
func HTTPFactory(timeout time.Duration) protocol.SessionFactory {
	return func(_ context.Context, logger *slog.Logger) (protocol.Session, error) {
		return NewHTTPSession(timeout, logger), nil
	}
}

func (s *HTTPSession) Init(ctx context.Context) (protocol.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	s.client = &http.Client{Timeout: s.timeout, Jar: jar}
	s.logger.DebugContext(ctx, "http session ready", "timeout", s.timeout)

	return s, nil
}

// Cleanup releases idle connections. It is safe after a failed Init.
func (s *HTTPSession) Cleanup(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	s.client.CloseIdleConnections()
	s.logger.DebugContext(ctx, "http session closed")

	return nil
}

func (s *HTTPSession) Client() (*http.Client, error) {
	if s.client == nil {
		return nil, ErrNotInitialized
	}

	return s.client, nil
}
