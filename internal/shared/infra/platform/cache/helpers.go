package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const asyncTimeout = 200 * time.Millisecond

// AsyncCacheSet escribe en background. La escritura sobrevive a la
// cancelación de ctx; un fallo sólo se registra.
func AsyncCacheSet(ctx context.Context, c Cache, key string, value interface{}, ttlSecs int, log *zap.Logger) {
	if c == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		opCtx, cancel := context.WithTimeout(detached, asyncTimeout)
		defer cancel()
		if err := c.Set(opCtx, key, value, ttlSecs); err != nil {
			log.Warn("⚠️ Cache update failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

// AsyncCacheDelete invalida en background con las mismas reglas que AsyncCacheSet.
func AsyncCacheDelete(ctx context.Context, c Cache, key string, log *zap.Logger) {
	if c == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		opCtx, cancel := context.WithTimeout(detached, asyncTimeout)
		defer cancel()
		if err := c.Delete(opCtx, key); err != nil {
			log.Warn("⚠️ Cache deletion failed", zap.String("key", key), zap.Error(err))
		}
	}()
}
