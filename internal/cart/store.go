package cart

import (
	"errors"
	"sync"

	"github.com/fjod/go_storefront/internal/pricing"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrLineNotFound    = errors.New("no cart line for this product")
)

// Store is the in-memory, session-scoped source of truth for what the user
// intends to buy. Mutations apply synchronously (optimistic, ahead of remote
// confirmation) and are broadcast to subscribers; the sync layer later calls
// Confirm or Revert to reconcile with the remote service.
//
// At most one line exists per product, and no line ever holds a quantity
// below 1: a set to zero removes the line.
type Store struct {
	mu    sync.Mutex
	lines map[int64]*Line
	order []int64 // insertion order, display only
	seq   uint64
	subs  []func(Event)
}

func NewStore() *Store {
	return &Store{lines: make(map[int64]*Line)}
}

// Subscribe registers a change observer. Callbacks run synchronously on the
// mutating goroutine while the store lock is held; they must not block or
// call back into the store.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Add inserts a new line or, if the product is already in the cart,
// increments its quantity by l.Quantity.
func (s *Store) Add(l Line) (Event, error) {
	if l.Quantity < 1 {
		return Event{}, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delta := l.Quantity
	existing, ok := s.lines[l.ProductID]
	if ok {
		existing.Quantity += delta
		existing.State = SyncPending
	} else {
		l.State = SyncPending
		s.lines[l.ProductID] = &l
		s.order = append(s.order, l.ProductID)
		existing = &l
	}

	return s.emit(Event{
		Op:        OpAdd,
		ProductID: l.ProductID,
		Quantity:  existing.Quantity,
		Delta:     delta,
		Line:      *existing,
	}), nil
}

// SetQuantity sets an absolute quantity for a product already in the cart.
// A quantity below 1 removes the line instead.
func (s *Store) SetQuantity(productID int64, quantity int) (Event, error) {
	if quantity < 1 {
		ev, ok := s.Remove(productID)
		if !ok {
			return Event{}, ErrLineNotFound
		}
		return ev, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[productID]
	if !ok {
		return Event{}, ErrLineNotFound
	}
	line.Quantity = quantity
	line.State = SyncPending

	return s.emit(Event{
		Op:        OpSet,
		ProductID: productID,
		Quantity:  quantity,
		Line:      *line,
	}), nil
}

// Remove deletes the line for a product. Removing an absent product is a
// no-op, reported via the second return value.
func (s *Store) Remove(productID int64) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[productID]; !ok {
		return Event{}, false
	}
	s.delete(productID)

	return s.emit(Event{Op: OpRemove, ProductID: productID}), true
}

// Clear empties the cart. Used after successful order placement and for an
// explicit user clear.
func (s *Store) Clear() Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lines = make(map[int64]*Line)
	s.order = nil

	return s.emit(Event{Op: OpClear})
}

// Confirm records that the remote service acknowledged the given quantity.
// The line is only marked confirmed if no later local mutation changed it.
func (s *Store) Confirm(productID int64, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[productID]
	if !ok {
		return
	}
	if line.Quantity == quantity {
		line.State = SyncConfirmed
	}
	s.emit(Event{Op: OpConfirm, ProductID: productID, Quantity: line.Quantity, Line: *line})
}

// Revert forces a line back to its last remote-confirmed value after a
// failed sync. A nil confirmed line means the product was never confirmed
// remotely, so the local line is dropped entirely.
func (s *Store) Revert(productID int64, confirmed *Line) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if confirmed == nil {
		if _, ok := s.lines[productID]; ok {
			s.delete(productID)
		}
		s.emit(Event{Op: OpRevert, ProductID: productID})
		return
	}

	restored := *confirmed
	restored.State = SyncConfirmed
	if _, ok := s.lines[productID]; !ok {
		s.order = append(s.order, productID)
	}
	s.lines[productID] = &restored

	s.emit(Event{Op: OpRevert, ProductID: productID, Quantity: restored.Quantity, Line: restored})
}

// Get returns a copy of the line for a product.
func (s *Store) Get(productID int64) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[productID]
	if !ok {
		return Line{}, false
	}
	return *line, true
}

// Lines returns copies of all lines in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.lines[id])
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

// Total sums unit price times quantity over all lines, in minor units.
func (s *Store) Total() pricing.Cents {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total pricing.Cents
	for _, line := range s.lines {
		total += pricing.LineTotal(line.UnitPrice, line.Quantity)
	}
	return total
}

// delete removes a line and its display-order entry. Caller holds the lock.
func (s *Store) delete(productID int64) {
	delete(s.lines, productID)
	for i, id := range s.order {
		if id == productID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// emit stamps the event with the next sequence number and notifies
// subscribers. Caller holds the lock.
func (s *Store) emit(ev Event) Event {
	s.seq++
	ev.Seq = s.seq
	for _, fn := range s.subs {
		fn(ev)
	}
	return ev
}
