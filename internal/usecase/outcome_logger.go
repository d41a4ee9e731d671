package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
)

type outcomeJob struct {
	rec models.OutcomeRecord
	res chan error
}

// OutcomeLogger appends outcome records to an AuditSink from a bounded queue.
// Record never blocks: when the queue is full the record is dropped. Append
// failures are logged and counted, and reported only on the returned channel.
type OutcomeLogger struct {
	sink          domrepo.AuditSink
	metrics       domrepo.Metrics
	log           *logger.Logger
	queueSize     int
	workers       int
	appendTimeout time.Duration

	queue     chan outcomeJob
	wg        sync.WaitGroup
	mu        sync.RWMutex
	started   bool
	closed    bool
	closeOnce sync.Once
}

type OutcomeLoggerOption func(*OutcomeLogger)

func WithQueueSize(n int) OutcomeLoggerOption {
	return func(l *OutcomeLogger) {
		if n > 0 {
			l.queueSize = n
		}
	}
}

func WithWorkers(n int) OutcomeLoggerOption {
	return func(l *OutcomeLogger) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithAppendTimeout bounds each sink append.
func WithAppendTimeout(d time.Duration) OutcomeLoggerOption {
	return func(l *OutcomeLogger) {
		if d > 0 {
			l.appendTimeout = d
		}
	}
}

func NewOutcomeLogger(sink domrepo.AuditSink, metrics domrepo.Metrics, log *logger.Logger, opts ...OutcomeLoggerOption) *OutcomeLogger {
	l := &OutcomeLogger{
		sink:          sink,
		metrics:       metrics,
		log:           log,
		queueSize:     1024,
		workers:       4,
		appendTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.queue = make(chan outcomeJob, l.queueSize)
	return l
}

// Start launches the append workers. Calling it more than once is a no-op.
func (l *OutcomeLogger) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return
	}
	l.started = true
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
}

// Record queues rec for append. The returned channel is buffered and receives exactly one value.
func (l *OutcomeLogger) Record(rec models.OutcomeRecord) <-chan error {
	res := make(chan error, 1)

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.drop(rec, models.ErrLoggerClosed)
		res <- models.ErrLoggerClosed
		return res
	}

	select {
	case l.queue <- outcomeJob{rec: rec, res: res}:
	default:
		l.drop(rec, models.ErrQueueFull)
		res <- models.ErrQueueFull
	}
	return res
}

func (l *OutcomeLogger) drop(rec models.OutcomeRecord, reason error) {
	l.metrics.RecordAuditDropped()
	l.log.Warn("outcome logger: record dropped",
		logger.String("id", rec.ID),
		logger.String("asset", rec.Asset),
		logger.Error(reason),
	)
}

func (l *OutcomeLogger) worker() {
	defer l.wg.Done()
	for job := range l.queue {
		job.res <- l.append(job.rec)
	}
}

func (l *OutcomeLogger) append(rec models.OutcomeRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.appendTimeout)
	defer cancel()

	if err := l.sink.Append(ctx, rec); err != nil {
		l.metrics.RecordAuditAppend("error")
		l.log.Warn("outcome logger: append failed",
			logger.String("id", rec.ID),
			logger.String("asset", rec.Asset),
			logger.Error(err),
		)
		return &models.SinkError{Op: "append", Err: err}
	}
	l.metrics.RecordAuditAppend("ok")
	return nil
}

// Close stops accepting records and waits for queued ones to be appended.
func (l *OutcomeLogger) Close(ctx context.Context) error {
	var err error
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		started := l.started
		close(l.queue)
		l.mu.Unlock()

		if !started {
			// nothing will drain the queue
			for job := range l.queue {
				job.res <- models.ErrLoggerClosed
			}
			return
		}

		done := make(chan struct{})
		go func() {
			l.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("outcome logger: drain: %w", ctx.Err())
		}
	})
	return err
}

// Pending returns the number of queued records.
func (l *OutcomeLogger) Pending() int { return len(l.queue) }
