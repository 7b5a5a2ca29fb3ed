package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/protocol"
	"github.com/dukex/stepflow/pkg/registry"
)

// recordingSink keeps the order of run events as short strings.
type recordingSink struct {
	protocol.NopSink

	mu       sync.Mutex
	events   []string
	done     *protocol.Done
	statuses []map[string]any
}

func (s *recordingSink) add(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
}

func (s *recordingSink) AttachBrowserSession(context.Context, protocol.Session) error {
	s.add("attach")

	return nil
}

func (s *recordingSink) StartScreenshotStream(context.Context) error {
	s.add("stream:start")

	return nil
}

func (s *recordingSink) StopScreenshotStream(context.Context) error {
	s.add("stream:stop")

	return nil
}

func (s *recordingSink) StepStart(_ context.Context, event protocol.StepStart) error {
	s.add(fmt.Sprintf("start:%d:%s", event.Index, event.Meta.StepID))

	return nil
}

func (s *recordingSink) StepEnd(_ context.Context, event protocol.StepEnd) error {
	s.add(fmt.Sprintf("end:%d:%s:%t", event.Index, event.Meta.StepID, event.OK))

	return nil
}

func (s *recordingSink) RunStatus(_ context.Context, status string, extra map[string]any) error {
	s.add("status:" + status)

	s.mu.Lock()
	s.statuses = append(s.statuses, extra)
	s.mu.Unlock()

	return nil
}

func (s *recordingSink) Done(_ context.Context, event protocol.Done) error {
	s.add(fmt.Sprintf("done:%t", event.OK))

	s.mu.Lock()
	s.done = &event
	s.mu.Unlock()

	return nil
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.events...)
}

// stubSession counts lifecycle calls.
type stubSession struct {
	mu       sync.Mutex
	initErr  error
	inits    int
	cleanups int
}

func (s *stubSession) Init(context.Context) (protocol.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inits++

	return s, s.initErr
}

func (s *stubSession) Cleanup(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanups++

	return nil
}

func (s *stubSession) Cleanups() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cleanups
}

func sessionFactory(session protocol.Session) protocol.SessionFactory {
	return func(context.Context, *slog.Logger) (protocol.Session, error) {
		return session, nil
	}
}

func sinkFactory(sink protocol.EventSink) protocol.SinkFactory {
	return func(protocol.SinkParams) protocol.EventSink {
		return sink
	}
}

// visitLog records the ids of executed steps.
type visitLog struct {
	mu  sync.Mutex
	ids []string
}

func (v *visitLog) add(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.ids = append(v.ids, id)
}

func (v *visitLog) IDs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return append([]string(nil), v.ids...)
}

// newTestRegistry registers "record", which logs the visit and returns its config "outputs", and
// "fail", which returns an error.
func newTestRegistry(visits *visitLog) *registry.Registry {
	reg := registry.NewRegistry(log.Nop())

	reg.Register("record", func(_ context.Context, rt protocol.Runtime) (protocol.Result, error) {
		visits.add(rt.Step.ID)

		if next, ok := rt.Step.Config["next"].(string); ok {
			return protocol.Next(next), nil
		}

		if outputs, ok := rt.Step.Config["outputs"]; ok {
			return protocol.Outputs(outputs), nil
		}

		return protocol.NoResult(), nil
	})

	reg.Register("fail", func(_ context.Context, rt protocol.Runtime) (protocol.Result, error) {
		visits.add(rt.Step.ID)

		return protocol.NoResult(), fmt.Errorf("element %s not found", rt.Step.ID)
	})

	return reg
}
