package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketSignal/internal/domain/models"
	domrepo "MarketSignal/internal/domain/repository"
	svcmetrics "MarketSignal/internal/service/metrics"
	applogger "MarketSignal/pkg/logger"
)

const (
	minBackoff = 50 * time.Millisecond
	maxBackoff = 2 * time.Second
)

// SignalPipeline sits between the analytics use case and the event sink.
// It validates, throttles per symbol, and buffers events while the sink is unavailable.
type SignalPipeline struct {
	next     domrepo.SignalPublisher
	metrics  domrepo.Metrics
	l        *applogger.Logger
	maxRPS   int
	bufSize  int
	bufCh    chan *models.SignalEvent
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	stopped  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time
	sleep    func(time.Duration) bool
}

type PipelineOption func(*SignalPipeline)

// WithMaxRPS sets the max events per second per symbol. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer used while the sink is failing.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *SignalPipeline) { p.l = l }
}

func NewSignalPipeline(next domrepo.SignalPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	p := &SignalPipeline{
		next:     next,
		metrics:  metrics,
		maxRPS:   10,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.SignalEvent, p.bufSize)
	p.sleep = p.wait
	return p
}

// Start launches background flushing of buffered events.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := minBackoff
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case ev := <-p.bufCh:
				if err := p.next.Publish(ctx, ev); err != nil {
					p.recordError("pipeline_flush")
					if backoff < maxBackoff {
						backoff *= 2
					}
					if !p.sleep(backoff) {
						return
					}
					p.enqueue(ev)
					continue
				}
				backoff = minBackoff
			}
		}
	}()
}

// Publish validates, throttles and forwards an event. A sink failure
// buffers the event for the flusher and is still reported to the caller.
func (p *SignalPipeline) Publish(ctx context.Context, ev *models.SignalEvent) error {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if !p.allow(ev.Symbol, start) {
		p.recordError("pipeline_throttle")
		p.l.Debug("signal event throttled", applogger.String("symbol", ev.Symbol))
		return nil
	}
	if err := p.next.Publish(ctx, ev); err != nil {
		p.recordError("pipeline_publish")
		svcmetrics.PublishFailures.WithLabelValues("kafka").Inc()
		p.enqueue(ev)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_publish", time.Since(start).Seconds())
	}
	return nil
}

// Buffered returns the number of events waiting for a retry.
func (p *SignalPipeline) Buffered() int { return len(p.bufCh) }

// Close stops the flusher and closes the sink. Buffered events are dropped.
func (p *SignalPipeline) Close() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	close(p.stopCh)
	if started {
		<-p.done
	}
	if n := len(p.bufCh); n > 0 {
		p.l.Warn("dropping buffered signal events", applogger.Int("count", n))
	}
	return p.next.Close()
}

func (p *SignalPipeline) enqueue(ev *models.SignalEvent) {
	select {
	case p.bufCh <- ev:
	default:
		p.recordError("pipeline_buffer_full")
	}
}

func (p *SignalPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}

func (p *SignalPipeline) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (p *SignalPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateEvent(ev *models.SignalEvent) error {
	if ev == nil {
		return fmt.Errorf("signal event nil")
	}
	if ev.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if ev.GeneratedAt.IsZero() {
		return fmt.Errorf("generated_at missing")
	}
	switch ev.Signal {
	case models.SignalBuy, models.SignalSell, models.SignalNeutral:
	default:
		return fmt.Errorf("unknown signal %q", ev.Signal)
	}
	return nil
}
