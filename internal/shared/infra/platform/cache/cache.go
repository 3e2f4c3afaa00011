package cache

import (
	"context"
	"strings"
)

// Cache es una caché clave-valor con TTL. Los valores viajan como JSON, así
// que Redis y la implementación en memoria son intercambiables.
type Cache interface {
	// Get rellena dest (un puntero) y devuelve true en un hit; un miss es (false, nil).
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	// Set guarda val durante ttlSecs segundos; 0 usa el TTL por defecto de la implementación.
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error
	Delete(ctx context.Context, key string) error
}

// Key une las partes con ':' (p. ej. "ledger:users-self:<uuid>").
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
