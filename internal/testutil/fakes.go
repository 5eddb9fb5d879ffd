package testutil

import (
	"context"
	"fmt"
	"sync"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

// ScriptedOracle replays canned responses in order and repeats the last one.
type ScriptedOracle struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Requests  []output.DecisionRequest
}

func (o *ScriptedOracle) Decide(ctx context.Context, req output.DecisionRequest) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Requests = append(o.Requests, req)
	if o.Err != nil {
		return "", o.Err
	}
	if len(o.Responses) == 0 {
		return "", fmt.Errorf("no scripted response")
	}
	resp := o.Responses[0]
	if len(o.Responses) > 1 {
		o.Responses = o.Responses[1:]
	}
	return resp, nil
}

func (o *ScriptedOracle) CallCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Requests)
}

type StaticClassifier struct {
	mu        sync.Mutex
	Detection entity.CheckoutDetection
	Err       error
	Calls     int
}

func (c *StaticClassifier) Classify(ctx context.Context, req output.ClassifyRequest) (*entity.CheckoutDetection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	d := c.Detection
	return &d, nil
}

func (c *StaticClassifier) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls
}

// EventRecorder is an EventSink that keeps every event.
type EventRecorder struct {
	mu     sync.Mutex
	events []entity.Event
}

func (r *EventRecorder) Publish(ev entity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *EventRecorder) Events() []entity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Event(nil), r.events...)
}

func (r *EventRecorder) Types() []entity.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]entity.EventType, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

type NopLogger struct{}

var _ output.LoggerPort = NopLogger{}

func (NopLogger) Debug(string, ...any)                          {}
func (NopLogger) Info(string, ...any)                           {}
func (NopLogger) Warn(string, ...any)                           {}
func (NopLogger) Error(string, ...any)                          {}
func (l NopLogger) WithField(string, any) output.LoggerPort     { return l }
func (l NopLogger) WithFields(map[string]any) output.LoggerPort { return l }
func (NopLogger) Close() error                                  { return nil }
