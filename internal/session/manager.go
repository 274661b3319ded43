// Package session ties one authenticated user to their cart store, sync
// queue and checkout state for the lifetime of their visit.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/cartsync"
	"github.com/fjod/go_storefront/internal/checkout"
	"github.com/fjod/go_storefront/internal/upstream"
)

type Session struct {
	Creds  upstream.Credentials
	Store  *cart.Store
	Syncer *cartsync.Syncer

	submitter *checkout.Submitter
	log       *slog.Logger
	cancel    context.CancelFunc

	mu       sync.Mutex
	checkout *checkout.Orchestrator
	lastSeen time.Time
}

// Checkout returns the active checkout. A completed checkout is replaced
// with a fresh one on the next access; its transient shipping and payment
// data were already discarded at submission.
func (s *Session) Checkout() *checkout.Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout.Step() == checkout.StepSubmitted {
		s.checkout = checkout.NewOrchestrator(s.Store, s.submitter, s.Creds, s.log)
	}
	return s.checkout
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// Manager owns one session per user id and expires idle ones. Tearing a
// session down cancels its context, which aborts any in-flight sync
// request and makes its late result get discarded.
type Manager struct {
	api       cartsync.CartAPI
	submitter *checkout.Submitter
	idleTTL   time.Duration
	log       *slog.Logger

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewManager(api cartsync.CartAPI, submitter *checkout.Submitter, idleTTL time.Duration, log *slog.Logger) *Manager {
	return &Manager{
		api:       api,
		submitter: submitter,
		idleTTL:   idleTTL,
		log:       log,
		sessions:  make(map[int64]*Session),
	}
}

// Get returns the user's session, creating one on first contact. A changed
// token replaces the old session wholesale.
func (m *Manager) Get(creds upstream.Credentials) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[creds.UserID]
	if ok && s.Creds.Token != creds.Token {
		s.cancel()
		ok = false
	}
	if !ok {
		s = m.newSession(creds)
		m.sessions[creds.UserID] = s
	}
	s.touch()
	return s
}

func (m *Manager) newSession(creds upstream.Credentials) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	store := cart.NewStore()
	s := &Session{
		Creds:     creds,
		Store:     store,
		Syncer:    cartsync.New(ctx, store, m.api, creds, m.log),
		submitter: m.submitter,
		log:       m.log,
		cancel:    cancel,
		lastSeen:  time.Now(),
	}
	s.checkout = checkout.NewOrchestrator(store, m.submitter, creds, m.log)
	return s
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps idle sessions until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, s := range m.sessions {
		if s.idleFor(now) > m.idleTTL {
			s.cancel()
			delete(m.sessions, userID)
			m.log.Info("expired idle session", "user_id", userID)
		}
	}
}
