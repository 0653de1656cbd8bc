package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"statsdb/models"
)

// ErrQueueFull is returned when a notification is dropped because the
// workers are behind
var ErrQueueFull = errors.New("crash notification queue is full")

// Sender delivers one crash notification
type Sender interface {
	NotifyCrash(ctx context.Context, mc *models.MachineConfig, crash *models.Crash) error
}

type job struct {
	mc *models.MachineConfig

	crash *models.Crash
}

// CrashQueue hands notifications to background workers so API calls never
// wait on the notification transport
type CrashQueue struct {
	queue chan job

	sender Sender

	log *zap.Logger

	stopChan chan struct{}

	stopOnce sync.Once

	workerCount int

	workerWaitGroup sync.WaitGroup
}

func NewCrashQueue(sender Sender, size, workerCount int, log *zap.Logger) *CrashQueue {

	if size <= 0 {
		size = 100
	}

	if workerCount <= 0 {
		workerCount = 1
	}

	if log == nil {
		log = zap.NewNop()
	}

	q := &CrashQueue{

		queue: make(chan job, size),

		sender: sender,

		log: log,

		stopChan: make(chan struct{}),

		workerCount: workerCount,
	}

	q.start()

	return q
}

func (q *CrashQueue) start() {

	for i := 0; i < q.workerCount; i++ {

		q.workerWaitGroup.Add(1)

		go q.worker()
	}
}

// Stop stops the workers. Queued notifications that were not picked up are dropped.
func (q *CrashQueue) Stop() {

	q.stopOnce.Do(func() {

		close(q.stopChan)

		q.workerWaitGroup.Wait()
	})
}

// NotifyCrash queues the notification without blocking
func (q *CrashQueue) NotifyCrash(_ context.Context, mc *models.MachineConfig, crash *models.Crash) error {

	select {

	case <-q.stopChan:
		return ErrQueueFull

	default:
	}

	select {

	case q.queue <- job{mc: mc, crash: crash}:
		return nil

	default:
		return ErrQueueFull
	}
}

func (q *CrashQueue) worker() {

	defer q.workerWaitGroup.Done()

	for {

		select {

		case <-q.stopChan:
			return

		case j := <-q.queue:

			if err := q.sender.NotifyCrash(context.Background(), j.mc, j.crash); err != nil {
				q.log.Warn("crash notification failed", zap.Uint("crash_id", j.crash.ID), zap.Error(err))
			}
		}
	}
}
