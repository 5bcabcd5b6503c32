// Package delivery moves freshly issued verification codes to their
// recipients. Issuance only enqueues; a pool of workers sends with
// exponential backoff and hands exhausted jobs to dead-letter sinks.
package delivery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/go-alumni-api/internal/domain"
	"github.com/go-alumni-api/internal/infrastructure/telemetry"
	"github.com/go-alumni-api/internal/pkg/id"
)

var (
	ErrQueueFull   = errors.New("delivery queue full")
	ErrQueueClosed = errors.New("delivery queue closed")
)

// Queue accepts delivery jobs. Enqueue must not block on the send itself.
type Queue interface {
	Enqueue(ctx context.Context, job domain.DeliveryJob) error
}

// Sender performs one delivery attempt.
type Sender interface {
	SendCode(ctx context.Context, address, code string, purpose domain.Purpose) error
}

// DeadLetterSink records a delivery that will not be retried again.
type DeadLetterSink interface {
	Record(ctx context.Context, dl domain.DeadLetter) error
}

type Config struct {
	Workers        int
	QueueSize      int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// SendTimeout bounds a single attempt. Zero means no per-attempt limit.
	SendTimeout time.Duration
}

// Dispatcher is an in-process Queue backed by a buffered channel and a worker pool.
type Dispatcher struct {
	cfg     Config
	sender  Sender
	sinks   []DeadLetterSink
	logger  *zerolog.Logger
	metrics *telemetry.Metrics

	mu     sync.RWMutex
	closed bool
	jobs   chan domain.DeliveryJob
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewDispatcher(cfg Config, sender Sender, sinks []DeadLetterSink, logger *zerolog.Logger, metrics *telemetry.Metrics) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		cfg:     cfg,
		sender:  sender,
		sinks:   sinks,
		logger:  logger,
		metrics: metrics,
		jobs:    make(chan domain.DeliveryJob, cfg.QueueSize),
		now:     time.Now,
	}
}

// Start launches the workers. They run until Shutdown drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				d.deliver(ctx, job)
			}
		}()
	}
}

func (d *Dispatcher) Enqueue(ctx context.Context, job domain.DeliveryJob) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, job domain.DeliveryJob) {
	b := backoff.NewExponentialBackOff()
	if d.cfg.InitialBackoff > 0 {
		b.InitialInterval = d.cfg.InitialBackoff
	}
	if d.cfg.MaxBackoff > 0 {
		b.MaxInterval = d.cfg.MaxBackoff
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		return struct{}{}, d.attempt(ctx, job)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.metrics.DeliveryAttemptFailed(ctx, string(job.Purpose))
			d.logger.Warn().Err(err).
				Str("job_id", job.ID).
				Str("purpose", string(job.Purpose)).
				Int("attempt", attempts).
				Dur("retry_in", next).
				Msg("code delivery attempt failed")
		}),
	)
	if err == nil {
		d.logger.Debug().Str("job_id", job.ID).Int("attempts", attempts).Msg("code delivered")
		return
	}
	d.metrics.DeliveryAttemptFailed(ctx, string(job.Purpose))
	d.deadLetter(ctx, job, attempts, err)
}

func (d *Dispatcher) attempt(ctx context.Context, job domain.DeliveryJob) error {
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}
	return d.sender.SendCode(ctx, job.Address, job.Code, job.Purpose)
}

// deadLetter hands the job to every sink. The issued code stays valid.
func (d *Dispatcher) deadLetter(ctx context.Context, job domain.DeliveryJob, attempts int, cause error) {
	dl := domain.DeadLetter{
		ID:        id.New(),
		JobID:     job.ID,
		Address:   job.Address,
		Purpose:   job.Purpose,
		Attempts:  attempts,
		LastError: cause.Error(),
		FailedAt:  d.now().UTC(),
	}
	d.metrics.DeadLettered(ctx, string(job.Purpose))
	d.logger.Error().Err(cause).
		Str("job_id", job.ID).
		Str("dead_letter_id", dl.ID).
		Str("purpose", string(job.Purpose)).
		Int("attempts", attempts).
		Msg("code delivery abandoned")

	// Sinks still get a chance to record after shutdown cancelled the worker context.
	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		if err := sink.Record(sinkCtx, dl); err != nil {
			d.logger.Error().Err(err).Str("dead_letter_id", dl.ID).Msg("dead letter sink failed")
		}
	}
}
