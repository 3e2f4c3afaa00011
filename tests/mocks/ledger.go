package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

type markerKey struct {
	eventID  uuid.UUID
	consumer string
}

// InMemoryLedger es un ledger sin transacciones: WithinTransaction sólo
// ejecuta fn, así que el marcador se escribe después del efecto del handler.
type InMemoryLedger struct {
	mu      sync.Mutex
	markers map[markerKey]time.Time
	// FailLookups hace que AlreadyApplied falle con este error.
	FailLookups error
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{markers: make(map[markerKey]time.Time)}
}

func (l *InMemoryLedger) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (l *InMemoryLedger) AlreadyApplied(ctx context.Context, eventID uuid.UUID, consumer string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailLookups != nil {
		return false, l.FailLookups
	}
	_, ok := l.markers[markerKey{eventID, consumer}]
	return ok, nil
}

func (l *InMemoryLedger) MarkApplied(ctx context.Context, eventID uuid.UUID, consumer string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := markerKey{eventID, consumer}
	if _, ok := l.markers[k]; ok {
		return sharedDomain.ErrAlreadyApplied
	}
	l.markers[k] = time.Now().UTC()
	return nil
}

func (l *InMemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.markers)
}

// InMemoryDeadLetterStore guarda dead letters en un slice.
type InMemoryDeadLetterStore struct {
	mu      sync.Mutex
	letters []sharedDomain.DeadLetter
	// FailSaves hace que SaveDeadLetter falle con este error.
	FailSaves error
}

func (s *InMemoryDeadLetterStore) SaveDeadLetter(ctx context.Context, dl sharedDomain.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSaves != nil {
		return s.FailSaves
	}
	dl.ID = int64(len(s.letters) + 1)
	s.letters = append(s.letters, dl)
	return nil
}

func (s *InMemoryDeadLetterStore) ListDeadLetters(ctx context.Context, limit int) ([]sharedDomain.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sharedDomain.DeadLetter, 0, len(s.letters))
	for i := len(s.letters) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.letters[i])
	}
	return out, nil
}

func (s *InMemoryDeadLetterStore) All() []sharedDomain.DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sharedDomain.DeadLetter(nil), s.letters...)
}

var (
	_ sharedDomain.Ledger          = (*InMemoryLedger)(nil)
	_ sharedDomain.DeadLetterStore = (*InMemoryDeadLetterStore)(nil)
)
