package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// MockOutboxRepository simula la tabla outbox.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) InsertOutbox(ctx context.Context, rec sharedDomain.OutboxRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockOutboxRepository) FetchPendingOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxRecord), args.Error(1)
}

func (m *MockOutboxRepository) MarkOutboxPublished(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) RecordOutboxAttempt(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	args := m.Called(ctx, id, attempts, lastErr)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkOutboxFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	args := m.Called(ctx, id, attempts, lastErr)
	return args.Error(0)
}

func (m *MockOutboxRepository) ListFailedOutbox(ctx context.Context, limit int) ([]sharedDomain.OutboxRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]sharedDomain.OutboxRecord), args.Error(1)
}

func (m *MockOutboxRepository) RequeueFailedOutbox(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockProducer simula el broker del lado productor.
type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Send(ctx context.Context, msg sharedBus.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// Alert es una alerta capturada por RecordingAlerter.
type Alert struct {
	Kind string
	Msg  string
}

// RecordingAlerter guarda las alertas para poder comprobarlas.
type RecordingAlerter struct {
	mu     sync.Mutex
	alerts []Alert
}

func (a *RecordingAlerter) Alert(_ context.Context, kind, msg string, _ ...zap.Field) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, Alert{Kind: kind, Msg: msg})
}

func (a *RecordingAlerter) Alerts() []Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Alert(nil), a.alerts...)
}

// Count devuelve cuántas alertas de ese tipo se emitieron.
func (a *RecordingAlerter) Count(kind string) int {
	n := 0
	for _, al := range a.Alerts() {
		if al.Kind == kind {
			n++
		}
	}
	return n
}

var (
	_ sharedDomain.OutboxRepository = (*MockOutboxRepository)(nil)
	_ sharedBus.Producer            = (*MockProducer)(nil)
)
