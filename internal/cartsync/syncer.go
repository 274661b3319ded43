// Package cartsync mirrors local cart mutations to the remote cart service.
// Each product gets its own sequential queue so the remote service observes
// mutations for one product in the order they were issued locally, while
// different products sync concurrently. A failed request rolls the local
// line back to its last remote-confirmed value and drops whatever was still
// queued for that product; nothing is retried automatically.
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/upstream"
)

// ErrMutationDropped marks a queued mutation that was discarded because an
// earlier mutation for the same product failed. The caller must re-issue it
// explicitly if still wanted.
var ErrMutationDropped = errors.New("mutation dropped after earlier sync failure for this product")

// CartAPI is the slice of the upstream client the syncer needs.
type CartAPI interface {
	AddCartLine(ctx context.Context, creds upstream.Credentials, productID int64, quantity int) error
	UpdateCartQuantity(ctx context.Context, creds upstream.Credentials, productID int64, quantity int) error
	RemoveCartLine(ctx context.Context, creds upstream.Credentials, productID int64) error
	ClearCart(ctx context.Context, creds upstream.Credentials) error
}

type task struct {
	ev     cart.Event
	result chan error
}

type Syncer struct {
	ctx     context.Context
	store   *cart.Store
	api     CartAPI
	creds   upstream.Credentials
	timeout time.Duration
	log     *slog.Logger

	mu        sync.Mutex
	queues    map[int64]*queue
	confirmed map[int64]cart.Line // last remote-confirmed line per product
	results   map[uint64]chan error
}

// New subscribes a syncer to the store. ctx is the session context: when it
// is cancelled, in-flight requests abort and late results are discarded.
func New(ctx context.Context, store *cart.Store, api CartAPI, creds upstream.Credentials, log *slog.Logger) *Syncer {
	s := &Syncer{
		ctx:       ctx,
		store:     store,
		api:       api,
		creds:     creds,
		timeout:   10 * time.Second,
		log:       log,
		queues:    make(map[int64]*queue),
		confirmed: make(map[int64]cart.Line),
		results:   make(map[uint64]chan error),
	}
	store.Subscribe(s.onEvent)
	return s
}

// onEvent runs synchronously on the mutating goroutine, while the store
// lock is held. It only enqueues and must never block.
func (s *Syncer) onEvent(ev cart.Event) {
	switch ev.Op {
	case cart.OpAdd, cart.OpSet, cart.OpRemove:
	case cart.OpClear:
		// the cart was cleared through the remote-first paths, nothing
		// is left to mirror
		s.mu.Lock()
		s.confirmed = make(map[int64]cart.Line)
		s.mu.Unlock()
		return
	default:
		return // reconciliation echoes, not user mutations
	}

	t := task{ev: ev, result: make(chan error, 1)}

	s.mu.Lock()
	s.results[ev.Seq] = t.result
	q, ok := s.queues[ev.ProductID]
	if !ok {
		q = newQueue()
		s.queues[ev.ProductID] = q
		go s.worker(q)
	}
	s.mu.Unlock()

	q.push(t)
}

// Wait blocks until the remote outcome of one specific mutation is known.
// Results are kept until collected, so Wait may be called after the request
// already finished.
func (s *Syncer) Wait(ctx context.Context, ev cart.Event) error {
	s.mu.Lock()
	ch, ok := s.results[ev.Seq]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	select {
	case err := <-ch:
		s.mu.Lock()
		delete(s.results, ev.Seq)
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear empties the remote cart, then the local one. Unlike line mutations
// this is not optimistic: a cart wiped locally but not remotely would leave
// stale "In Cart" records upstream.
func (s *Syncer) Clear(ctx context.Context) error {
	if err := s.api.ClearCart(ctx, s.creds); err != nil {
		return err
	}
	s.store.Clear()
	return nil
}

func (s *Syncer) worker(q *queue) {
	for {
		t, ok := q.pop()
		if !ok {
			select {
			case <-s.ctx.Done():
				return
			case <-q.notify:
				continue
			}
		}
		s.handle(q, t)
	}
}

func (s *Syncer) handle(q *queue, t task) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var err error
	switch t.ev.Op {
	case cart.OpAdd:
		err = s.api.AddCartLine(ctx, s.creds, t.ev.ProductID, t.ev.Delta)
	case cart.OpSet:
		err = s.api.UpdateCartQuantity(ctx, s.creds, t.ev.ProductID, t.ev.Quantity)
	case cart.OpRemove:
		err = s.api.RemoveCartLine(ctx, s.creds, t.ev.ProductID)
	}

	if err == nil {
		s.confirm(t)
		return
	}
	if s.ctx.Err() != nil {
		// session torn down mid-request, do not touch the store
		t.result <- s.ctx.Err()
		return
	}
	s.fail(q, t, err)
}

func (s *Syncer) confirm(t task) {
	s.mu.Lock()
	if t.ev.Op == cart.OpRemove {
		delete(s.confirmed, t.ev.ProductID)
	} else {
		line := t.ev.Line
		line.State = cart.SyncConfirmed
		s.confirmed[t.ev.ProductID] = line
	}
	s.mu.Unlock()

	s.store.Confirm(t.ev.ProductID, t.ev.Quantity)
	t.result <- nil
}

// fail reverts the product to its last remote-confirmed value and discards
// every mutation still queued behind the failed one.
func (s *Syncer) fail(q *queue, t task, cause error) {
	s.mu.Lock()
	var confirmed *cart.Line
	if line, ok := s.confirmed[t.ev.ProductID]; ok {
		confirmed = &line
	}
	s.mu.Unlock()

	s.store.Revert(t.ev.ProductID, confirmed)

	dropped := q.drain()
	for _, d := range dropped {
		d.result <- fmt.Errorf("%w: %v", ErrMutationDropped, cause)
	}

	s.log.Warn("cart sync failed, line reverted",
		"product_id", t.ev.ProductID,
		"op", string(t.ev.Op),
		"dropped", len(dropped),
		"error", cause)

	t.result <- cause
}

// queue is an unbounded FIFO per product. push never blocks, which matters
// because it runs while the store lock is held.
type queue struct {
	mu     sync.Mutex
	tasks  []task
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(t task) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

func (q *queue) drain() []task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.tasks
	q.tasks = nil
	return out
}
