package notification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrQueueFull = errors.New("notification queue full")

type Job struct {
	Message Message
	Attempt int
}

type Worker struct {
	ID         int
	WorkerPool chan chan Job
	JobChannel chan Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan Job),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, process func(Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing notification", "worker_id", w.ID, "message_id", job.Message.ID)
				process(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type DispatcherConfig struct {
	MaxWorkers   int
	JobQueueSize int
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Dispatcher fans queued messages out to a fixed pool of workers that call the sink.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger

	jobQueue     chan Job
	workerPool   chan chan Job
	maxWorkers   int
	maxAttempts  int
	retryBackoff time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	queueSize := cfg.JobQueueSize
	if queueSize <= 0 {
		queueSize = 100
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	d := &Dispatcher{
		sink:         sink,
		logger:       logger,
		jobQueue:     make(chan Job, queueSize),
		workerPool:   make(chan chan Job, maxWorkers),
		maxWorkers:   maxWorkers,
		maxAttempts:  maxAttempts,
		retryBackoff: backoff,
		ctx:          ctx,
		cancel:       cancel,
	}
	d.start()
	return d
}

func (d *Dispatcher) start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("notification worker pool started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					d.logger.Info("dispatcher shutting down")
					return
				}
			case <-d.ctx.Done():
				d.logger.Info("dispatcher shutting down")
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Enqueue never blocks. A full queue drops the message and reports ErrQueueFull.
func (d *Dispatcher) Enqueue(msg Message) error {
	select {
	case d.jobQueue <- Job{Message: msg, Attempt: 1}:
		d.logger.Debug("notification queued",
			"message_id", msg.ID,
			"template", msg.Template,
			"queue_length", len(d.jobQueue))
		return nil
	default:
		d.logger.Warn("notification queue full, dropping message",
			"message_id", msg.ID,
			"template", msg.Template,
			"queue_capacity", cap(d.jobQueue))
		return ErrQueueFull
	}
}

func (d *Dispatcher) process(job Job) {
	for {
		err := d.sink.Notify(d.ctx, job.Message)
		if err == nil {
			return
		}

		var status *StatusError
		permanent := errors.As(err, &status) && !status.Temporary()
		if permanent || job.Attempt >= d.maxAttempts {
			d.logger.Error("notification delivery failed",
				"message_id", job.Message.ID,
				"template", job.Message.Template,
				"attempt", job.Attempt,
				"error", err)
			return
		}

		d.logger.Warn("notification delivery failed, retrying",
			"message_id", job.Message.ID,
			"attempt", job.Attempt,
			"error", err)

		select {
		case <-time.After(d.retryBackoff * time.Duration(job.Attempt)):
		case <-d.ctx.Done():
			d.logger.Info("notification retry cancelled", "message_id", job.Message.ID)
			return
		}
		job.Attempt++
	}
}

// Shutdown stops the workers. Messages still queued are dropped.
func (d *Dispatcher) Shutdown() {
	d.logger.Info("shutting down notification dispatcher", "pending", len(d.jobQueue))
	d.cancel()
	d.wg.Wait()
	d.logger.Info("notification dispatcher shutdown complete")
}
