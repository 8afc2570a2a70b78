package poller

import (
	"context"
	"sync"

	"github.com/rzbill/driftq/internal/task"
)

// Delivery is one claimed task handed to a subscriber. The subscriber must
// call exactly one of Ack or Nack; the poll loop waits for that signal
// before delivering the next task.
type Delivery struct {
	Task *task.Task

	p    *Poller
	ctx  context.Context
	once sync.Once
	done chan struct{}
}

// Ack marks the task as processed. The claim already removed it from the
// store, so there is nothing else to do.
func (d *Delivery) Ack() {
	d.once.Do(func() { close(d.done) })
}

// Nack reports a failed attempt. The retry policy decides whether the task
// is requeued with backoff or discarded.
func (d *Delivery) Nack(cause error) {
	d.once.Do(func() {
		d.p.fail(d.ctx, d.Task, cause)
		close(d.done)
	})
}

// Subscription is the channel-based consumer surface. Deliveries arrive one
// at a time; the underlying loop blocks until each is acknowledged.
type Subscription struct {
	ch     chan *Delivery
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Deliveries returns the stream of claimed tasks. The channel closes when
// the subscription stops.
func (s *Subscription) Deliveries() <-chan *Delivery { return s.ch }

// Close stops the subscription and waits for the loop to exit. An in-flight
// delivery is not interrupted.
func (s *Subscription) Close() {
	s.cancel()
	s.wg.Wait()
}

// Subscribe starts the poll loop in a goroutine and exposes claimed tasks
// as a bounded channel of deliveries. buffer <= 0 means an unbuffered
// channel.
func (p *Poller) Subscribe(ctx context.Context, buffer int) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	sctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{ch: make(chan *Delivery, buffer), cancel: cancel}
	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		defer close(sub.ch)
		_ = p.Run(sctx, HandlerFunc(func(hctx context.Context, t *task.Task) error {
			d := &Delivery{Task: t, p: p, ctx: hctx, done: make(chan struct{})}
			select {
			case sub.ch <- d:
			case <-hctx.Done():
				// Nobody took the delivery; requeue so it is not lost.
				p.requeueRemainder([]*task.Task{t}, p.now())
				return nil
			case <-p.stop:
				p.requeueRemainder([]*task.Task{t}, p.now())
				return nil
			}
			select {
			case <-d.done:
			case <-hctx.Done():
			case <-p.stop:
			}
			// Failures are driven through Nack directly; nothing to return.
			return nil
		}))
	}()
	return sub
}
