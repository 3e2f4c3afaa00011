package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedBus "github.com/davicafu/hexasync/internal/shared/infra/platform/bus"
)

// User representa un usuario del sistema.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Nombre    string    `json:"nombre"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) PartitionKey() string {
	return u.ID.String()
}

// Validate comprueba email y nombre.
func (u *User) Validate() error {
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ErrInvalidUser
	}
	if strings.TrimSpace(u.Nombre) == "" {
		return ErrInvalidUser
	}
	return nil
}

// Activity es una entrada del historial que el propio servicio construye
// consumiendo sus eventos.
type Activity struct {
	EventID    uuid.UUID `json:"event_id"`
	UserID     uuid.UUID `json:"user_id"`
	EventType  string    `json:"event_type"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Verificación estática para asegurar que User implementa la interfaz
var _ sharedBus.Keyer = (*User)(nil)
