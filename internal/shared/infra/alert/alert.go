package alert

import (
	"context"

	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/shared/infra/metrics"
)

// Tipos de alerta para el operador.
const (
	KindOutboxFailed       = "outbox_failed"
	KindDeadLettered       = "dead_lettered"
	KindQuarantineFailed   = "quarantine_failed"
	KindOffsetCommitFailed = "offset_commit_failed"
)

// Alerter hace visible al operador un fallo que necesita intervención manual.
type Alerter interface {
	Alert(ctx context.Context, kind, msg string, fields ...zap.Field)
}

// LogAlerter emite la alerta como log de nivel Error y la cuenta en Prometheus.
type LogAlerter struct {
	log *zap.Logger
}

func NewLogAlerter(log *zap.Logger) *LogAlerter {
	return &LogAlerter{log: log.With(zap.Bool("alert", true))}
}

func (a *LogAlerter) Alert(_ context.Context, kind, msg string, fields ...zap.Field) {
	metrics.Alerts.WithLabelValues(kind).Inc()
	a.log.Error("🚨 "+msg, append(fields, zap.String("alert_kind", kind))...)
}

var _ Alerter = (*LogAlerter)(nil)
