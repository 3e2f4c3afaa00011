package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/cache"
)

// CachedLedger pone una caché positiva delante del ledger durable.
// Sólo cachea respuestas "ya aplicado" leídas del store: un marcador recién
// escrito puede deshacerse con su transacción, así que MarkApplied no toca la caché.
type CachedLedger struct {
	sharedDomain.Ledger
	cache   cache.Cache
	ttlSecs int
	log     *zap.Logger
}

func NewCachedLedger(inner sharedDomain.Ledger, c cache.Cache, ttlSecs int, log *zap.Logger) *CachedLedger {
	return &CachedLedger{Ledger: inner, cache: c, ttlSecs: ttlSecs, log: log}
}

func cacheKey(eventID uuid.UUID, consumer string) string {
	return cache.Key("ledger", consumer, eventID.String())
}

func (l *CachedLedger) AlreadyApplied(ctx context.Context, eventID uuid.UUID, consumer string) (bool, error) {
	key := cacheKey(eventID, consumer)

	var hit bool
	if ok, err := l.cache.Get(ctx, key, &hit); err != nil {
		l.log.Warn("Ledger cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok && hit {
		return true, nil
	}

	applied, err := l.Ledger.AlreadyApplied(ctx, eventID, consumer)
	if err != nil {
		return false, err
	}
	if applied {
		cache.AsyncCacheSet(ctx, l.cache, key, true, l.ttlSecs, l.log)
	}
	return applied, nil
}

// Compact delega en el ledger interno si sabe compactar.
func (l *CachedLedger) Compact(ctx context.Context, olderThan time.Time) (int64, error) {
	c, ok := l.Ledger.(sharedDomain.LedgerCompactor)
	if !ok {
		return 0, nil
	}
	return c.Compact(ctx, olderThan)
}
