package session

import (
	"sync"
	"time"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"
)

// publisher feeds a bounded channel. A consumer that stops reading loses
// events after the send timeout instead of stalling the mission.
type publisher struct {
	mu      sync.Mutex
	ch      chan entity.Event
	closed  bool
	timeout time.Duration
	observe func(entity.Event)
	logger  output.LoggerPort
	metrics output.MetricsPort
}

func newPublisher(buffer int, timeout time.Duration, observe func(entity.Event), logger output.LoggerPort, metrics output.MetricsPort) *publisher {
	return &publisher{
		ch:      make(chan entity.Event, buffer),
		timeout: timeout,
		observe: observe,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *publisher) Publish(ev entity.Event) {
	if p.observe != nil {
		p.observe(ev)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	timeout := p.timeout
	if ev.Type.Terminal() {
		timeout *= 5
	}
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case p.ch <- ev:
	case <-t.C:
		p.metrics.EventDropped()
		p.logger.Warn("Dropped event for slow consumer", "type", ev.Type, "session", ev.SessionID)
	}
}

func (p *publisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}
