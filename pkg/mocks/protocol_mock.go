package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/stepflow/pkg/protocol"
)

// MockSession is a mock implementation of protocol.Session interface. Init returns the mock itself unless
// the expectation supplies another session.
type MockSession struct {
	mock.Mock
}

func (m *MockSession) Init(ctx context.Context) (protocol.Session, error) {
	args := m.Called(ctx)
	if session, ok := args.Get(0).(protocol.Session); ok {
		return session, args.Error(1)
	}

	return m, args.Error(1)
}

func (m *MockSession) Cleanup(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockEventSink is a mock implementation of protocol.EventSink interface.
type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) AttachBrowserSession(ctx context.Context, session protocol.Session) error {
	args := m.Called(ctx, session)

	return args.Error(0)
}

func (m *MockEventSink) StartScreenshotStream(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventSink) StopScreenshotStream(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventSink) StepStart(ctx context.Context, event protocol.StepStart) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockEventSink) StepEnd(ctx context.Context, event protocol.StepEnd) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}

func (m *MockEventSink) RunStatus(ctx context.Context, status string, extra map[string]any) error {
	args := m.Called(ctx, status, extra)

	return args.Error(0)
}

func (m *MockEventSink) Done(ctx context.Context, event protocol.Done) error {
	args := m.Called(ctx, event)

	return args.Error(0)
}
