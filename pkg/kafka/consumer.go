package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	applogger "CoinPulse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads registered topics with a consumer group and fans messages out to
// a worker pool. A message is committed after its handler succeeds or retries are
// exhausted, so a poison message cannot stall the partition.
type Consumer struct {
	cfg      *ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	msgChan  chan *message
	logger   *applogger.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	fetchWG   sync.WaitGroup
	workerWG  sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type message struct {
	topic  string
	reader *kafka.Reader
	km     kafka.Message
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:     "default",
		WorkerCount: 1,
		BufferSize:  10,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	initConsumerMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		msgChan:  make(chan *message, cfg.BufferSize),
		logger:   applogger.Nop(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// SetLogger replaces the consumer logger.
func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.logger = l
	}
}

// RegisterHandler registers a message handler for its topic. Must be called before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.logger.Warn("kafka consumer: handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// Start launches one fetch loop per topic and the worker pool.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}

	c.startOnce.Do(func() {
		for topic := range c.handlers {
			c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
				Brokers:  c.cfg.Brokers,
				Topic:    topic,
				GroupID:  c.cfg.GroupID,
				MinBytes: c.cfg.MinBytes,
				MaxBytes: c.cfg.MaxBytes,
			})
		}

		for i := 0; i < c.cfg.WorkerCount; i++ {
			c.workerWG.Add(1)
			go c.worker()
		}

		for topic, reader := range c.readers {
			c.fetchWG.Add(1)
			go c.fetch(topic, reader)
		}

		c.logger.Info("kafka consumer: started",
			applogger.Int("workers", c.cfg.WorkerCount),
			applogger.Int("topics", len(c.readers)),
		)
	})
	return nil
}

// Stop stops fetching, drains queued messages and closes the readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var stopErr error

	c.stopOnce.Do(func() {
		c.cancel()
		c.fetchWG.Wait()
		close(c.msgChan)

		done := make(chan struct{})
		go func() {
			c.workerWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = fmt.Errorf("timeout waiting for consumer workers: %w", ctx.Err())
		}

		for topic, reader := range c.readers {
			if err := reader.Close(); err != nil {
				c.logger.Warn("kafka consumer: close reader", applogger.String("topic", topic), applogger.Error(err))
			}
		}
	})

	return stopErr
}

func (c *Consumer) fetch(topic string, reader *kafka.Reader) {
	defer c.fetchWG.Done()

	for {
		km, err := reader.FetchMessage(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("kafka consumer: fetch", applogger.String("topic", topic), applogger.Error(err))
			continue
		}

		select {
		case c.msgChan <- &message{topic: topic, reader: reader, km: km}:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Consumer) worker() {
	defer c.workerWG.Done()

	for m := range c.msgChan {
		handler := c.handlers[m.topic]
		err := c.handleWithRetry(handler, m.km.Value)
		observeConsumer(m.topic, err)
		if err != nil {
			c.logger.Error("kafka consumer: handler failed, skipping message",
				applogger.String("topic", m.topic),
				applogger.Int("partition", m.km.Partition),
				applogger.Int64("offset", m.km.Offset),
				applogger.Error(err),
			)
		}

		commitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.reader.CommitMessages(commitCtx, m.km); err != nil {
			c.logger.Warn("kafka consumer: commit", applogger.String("topic", m.topic), applogger.Error(err))
		}
		cancel()
	}
}

func (c *Consumer) handleWithRetry(h MessageHandler, data []byte) error {
	var err error
	for attempt := 1; attempt <= c.cfg.RetryMax+1; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = h.Handle(ctx, data)
		cancel()
		if err == nil {
			return nil
		}
		if attempt <= c.cfg.RetryMax {
			time.Sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt))
		}
	}
	return err
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	// jitter up to 50%
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

var (
	consumerMsgsTotal *prometheus.CounterVec
	consumerOnce      sync.Once
)

func initConsumerMetrics() {
	consumerOnce.Do(func() {
		consumerMsgsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coinpulse_kafka_consumer_messages_total",
				Help: "Messages handled by the Kafka consumer",
			},
			[]string{"topic", "result"},
		)
	})
}

func observeConsumer(topic string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	consumerMsgsTotal.WithLabelValues(topic, result).Inc()
}
