package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gravecare-api/models"
)

var (
	ErrQueueFull   = errors.New("notify: queue is full")
	ErrQueueClosed = errors.New("notify: queue is closed")
)

// Sender delivers a single order notification.
type Sender interface {
	Send(ctx context.Context, order models.Order) error
}

// ResultFunc observes the outcome of a queued send.
type ResultFunc func(order models.Order, err error)

// Pool is a bounded in-process notification queue drained by a fixed set of
// workers. Enqueue never blocks; a full queue is reported to the caller.
type Pool struct {
	jobs     chan models.Order
	sender   Sender
	timeout  time.Duration
	log      logrus.FieldLogger
	onResult ResultFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts workers goroutines. onResult may be nil.
func NewPool(sender Sender, workers, size int, timeout time.Duration, log logrus.FieldLogger, onResult ResultFunc) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	p := &Pool{
		jobs:     make(chan models.Order, size),
		sender:   sender,
		timeout:  timeout,
		log:      log,
		onResult: onResult,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) Enqueue(_ context.Context, order models.Order) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrQueueClosed
	}
	select {
	case p.jobs <- order:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish. Safe to call twice.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) work() {
	defer p.wg.Done()
	for order := range p.jobs {
		err := p.send(order)
		entry := p.log.WithFields(logrus.Fields{"order_id": order.ID.Hex(), "user_id": order.UserID.Hex()})
		if err != nil {
			entry.WithError(err).Error("order notification failed")
		} else {
			entry.Info("order notification sent")
		}
		if p.onResult != nil {
			p.onResult(order, err)
		}
	}
}

// send turns a panicking sender into an error so one bad transport call
// cannot take down the process.
func (p *Pool) send(order models.Order) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification sender panicked: %v", r)
		}
	}()

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.sender.Send(ctx, order)
}
