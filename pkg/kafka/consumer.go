package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	applogger "MarketSignal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Reader is the subset of *kafka.Reader used here.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer fans fetched messages out to workers. A partition always maps
// to the same worker, so messages of one partition are handled in order.
// Offsets are committed after success, or after the message reached the DLQ.
type Consumer struct {
	cfg       ConsumerConfig
	handlers  map[string]MessageHandler
	readers   map[string]Reader
	dlq       Writer
	newReader func(topic string) Reader
	l         *applogger.Logger

	queues []chan kafka.Message
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := ConsumerConfig{
		GroupID:     "marketsignal",
		WorkerCount: 1,
		BufferSize:  16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]Reader),
	}
	c.newReader = func(topic string) Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    topic,
			GroupID:  cfg.GroupID,
			MinBytes: cfg.MinBytes,
			MaxBytes: cfg.MaxBytes,
		})
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	initConsumerMetrics()
	return c, nil
}

func (c *Consumer) SetLogger(l *applogger.Logger) { c.l = l }

// RegisterHandler registers a handler for its topic. The first one wins.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.l.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start launches the fetch loops and the workers. It returns immediately.
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return errors.New("no kafka handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.queues = make([]chan kafka.Message, c.cfg.WorkerCount)
	for i := range c.queues {
		c.queues[i] = make(chan kafka.Message, c.cfg.BufferSize)
		c.wg.Add(1)
		go c.work(ctx, c.queues[i])
	}

	var fetchers sync.WaitGroup
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		fetchers.Add(1)
		go func() {
			defer fetchers.Done()
			c.fetch(ctx, topic, r)
		}()
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fetchers.Wait()
		for _, q := range c.queues {
			close(q)
		}
	}()

	c.l.Info("kafka consumer started",
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.Int("topics", len(c.handlers)),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop cancels fetching, waits for in-flight messages and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		case <-done:
		}
		for topic, r := range c.readers {
			if err := r.Close(); err != nil {
				c.l.Warn("kafka reader close failed", applogger.String("topic", topic), applogger.Error(err))
			}
		}
		if c.dlq != nil {
			if err := c.dlq.Close(); err != nil {
				c.l.Warn("kafka dlq close failed", applogger.Error(err))
			}
		}
		c.l.Info("kafka consumer stopped")
	})
	return stopErr
}

func (c *Consumer) fetch(ctx context.Context, topic string, r Reader) {
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.l.Warn("kafka fetch failed", applogger.String("topic", topic), applogger.Error(err))
			if !sleep(ctx, c.cfg.BackoffMax) {
				return
			}
			continue
		}
		if msg.Topic == "" {
			msg.Topic = topic
		}
		q := c.queues[msg.Partition%len(c.queues)]
		select {
		case q <- msg:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(q)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context, q <-chan kafka.Message) {
	defer c.wg.Done()
	for msg := range q {
		c.process(ctx, msg)
	}
}

// process runs the handler with retries, then dead-letters and commits.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	h, ok := c.handlers[msg.Topic]
	if !ok {
		return
	}
	start := time.Now()
	attempts, err := c.handle(ctx, h, msg)
	consumerHandleLatency.WithLabelValues(msg.Topic).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		consumerFailures.WithLabelValues(msg.Topic).Inc()
		c.l.Error("kafka message failed",
			applogger.String("topic", msg.Topic),
			applogger.Int("partition", msg.Partition),
			applogger.Int64("offset", msg.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		if c.dlq == nil {
			return
		}
		if dlqErr := c.dlq.WriteMessages(ctx, kafka.Message{
			Topic: c.cfg.DLQTopic,
			Key:   msg.Key,
			Value: msg.Value,
			Headers: []kafka.Header{
				{Key: "source_topic", Value: []byte(msg.Topic)},
				{Key: "error", Value: []byte(err.Error())},
			},
		}); dlqErr != nil {
			c.l.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(dlqErr))
			return
		}
	}
	if r := c.readers[msg.Topic]; r != nil {
		if err := r.CommitMessages(ctx, msg); err != nil {
			c.l.Warn("kafka commit failed", applogger.String("topic", msg.Topic), applogger.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h MessageHandler, msg kafka.Message) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		err = safeHandle(ctx, h, msg.Value)
		if err == nil || attempt > c.cfg.RetryMax {
			return attempt, err
		}
		if !sleep(ctx, backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)) {
			return attempt, err
		}
	}
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// backoffWithJitter doubles min per attempt up to max and removes up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	exp := max
	if attempt < 30 {
		exp = min * time.Duration(1<<uint(attempt-1))
	}
	if exp > max || exp <= 0 {
		exp = max
	}
	return exp - time.Duration(rand.Int64N(int64(exp)/2+1))
}

var (
	consumerOnce          sync.Once
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerFailures      *prometheus.CounterVec
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{Name: "marketsignal_kafka_consumer_queue_depth", Help: "Messages waiting for a worker"},
			[]string{"topic"},
		)
		consumerHandleLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{Name: "marketsignal_kafka_consumer_handle_seconds", Help: "Handling time per message including retries"},
			[]string{"topic"},
		)
		consumerFailures = promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "marketsignal_kafka_consumer_failures_total", Help: "Messages that exhausted their retries"},
			[]string{"topic"},
		)
	})
}
