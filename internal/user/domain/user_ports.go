package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
)

// ---------- Errores de dominio ----------
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidUser       = errors.New("invalid user")
)

// ---------- Interfaces (Ports) ----------

// UserRepository define las operaciones persistentes para User.
// Las escrituras usan la transacción que venga en ctx.
type UserRepository interface {
	// Debe devolver ErrUserAlreadyExists si el email ya está registrado.
	Create(ctx context.Context, u *User) error

	// Debe devolver ErrUserNotFound si no existe.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// Debe devolver ErrUserNotFound si el usuario no existe.
	Update(ctx context.Context, u *User) error

	// List devuelve una lista de usuarios según el filtro (paginación, búsqueda, orden).
	List(ctx context.Context, f UserFilter) ([]*User, error)
}

// ActivityRepository guarda el historial de eventos de usuario. Record es
// idempotente por EventID.
type ActivityRepository interface {
	Record(ctx context.Context, a Activity) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Activity, error)
}

type UserCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, val interface{}, ttlSecs int) error
	Delete(ctx context.Context, key string) error
}

// EventOutbox guarda eventos junto a la mutación que los origina.
type EventOutbox interface {
	Append(ctx context.Context, mutate func(ctx context.Context) error, evts ...sharedEvents.DomainEvent) error
}

// ---------- Tipos de filtrado / paginación / ordenamiento ----------

// Pagination describe límite y offset.
type Pagination struct {
	Limit  int
	Offset int
}

// Sort indica campo y dirección.
type Sort struct {
	Field string // "created_at", "nombre", "email"
	Desc  bool
}

// UserFilter agrupa criterios de búsqueda que puede usar UserRepository.List.
type UserFilter struct {
	Email  *string
	Nombre *string // LIKE en el repo

	Pagination Pagination
	Sort       Sort
}

// CacheKeyByID forma una key consistente para cache usando ID.
func CacheKeyByID(id uuid.UUID) string {
	return "user:id:" + id.String()
}
