package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
	"github.com/davicafu/hexasync/internal/shared/infra/platform/cache"
	"github.com/davicafu/hexasync/internal/shared/infra/utils"
	"github.com/davicafu/hexasync/internal/user/domain"
)

const userCacheTTL = 60

// UserService define los casos de uso relacionados con User.
type UserService struct {
	repo   domain.UserRepository
	cache  domain.UserCache
	outbox domain.EventOutbox
	log    *zap.Logger
}

// NewUserService constructor
func NewUserService(repo domain.UserRepository, cache domain.UserCache, outbox domain.EventOutbox, log *zap.Logger) *UserService {
	return &UserService{
		repo:   repo,
		cache:  cache,
		outbox: outbox,
		log:    log,
	}
}

// RegisterUser crea el usuario y su UserRegistered en la misma transacción.
// El éxito significa que ambos quedaron confirmados, no que los demás
// servicios ya lo hayan visto.
func (s *UserService) RegisterUser(ctx context.Context, email, nombre string) (*domain.User, error) {
	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.New(),
		Email:     strings.TrimSpace(email),
		Nombre:    strings.TrimSpace(nombre),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	evt := sharedEvents.New(user.ID.String(), sharedEvents.UserRegistered{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Nombre,
	})

	err := s.outbox.Append(ctx, func(txCtx context.Context) error {
		return s.repo.Create(txCtx, user)
	}, evt)
	if err != nil {
		return nil, err
	}

	s.log.Info("✅ Usuario registrado", zap.String("user_id", user.ID.String()), zap.String("event_id", evt.EventID.String()))
	cache.AsyncCacheSet(ctx, s.cache, domain.CacheKeyByID(user.ID), user, userCacheTTL, s.log)
	return user, nil
}

// UpdateUser aplica los cambios no nulos y emite UserUpdated.
func (s *UserService) UpdateUser(ctx context.Context, id uuid.UUID, email, nombre *string) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if email != nil {
		u.Email = strings.TrimSpace(*email)
	}
	if nombre != nil {
		u.Nombre = strings.TrimSpace(*nombre)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Now().UTC()

	evt := sharedEvents.New(u.ID.String(), sharedEvents.UserUpdated{UserID: u.ID, Email: u.Email, Name: u.Nombre})
	err = s.outbox.Append(ctx, func(txCtx context.Context) error {
		return s.repo.Update(txCtx, u)
	}, evt)
	if err != nil {
		return nil, err
	}

	s.log.Info("✅ Usuario actualizado", zap.String("user_id", id.String()), zap.String("event_id", evt.EventID.String()))
	cache.AsyncCacheDelete(context.WithoutCancel(ctx), s.cache, domain.CacheKeyByID(id), s.log)
	return u, nil
}

// GetUser obtiene un usuario (primero intenta desde cache).
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	// 1. Intentar cache
	if s.cache != nil {
		var u domain.User
		if ok, _ := s.cache.Get(ctx, domain.CacheKeyByID(id), &u); ok {
			return &u, nil
		}
	}

	// 2. Ir al repo con reintentos; un "no encontrado" no se reintenta.
	var user *domain.User
	var notFound error
	err := utils.Retry(ctx, 3, 100*time.Millisecond, func() error {
		var err error
		user, err = s.repo.GetByID(ctx, id)
		if errors.Is(err, domain.ErrUserNotFound) {
			notFound = err
			return nil
		}
		return err
	})
	if notFound != nil {
		return nil, notFound
	}
	if err != nil {
		return nil, err
	}

	// 3. Actualizar cache en background sin bloquear la respuesta
	cache.AsyncCacheSet(ctx, s.cache, domain.CacheKeyByID(user.ID), user, userCacheTTL, s.log)
	return user, nil
}

// ListUsers devuelve usuarios aplicando filtros.
func (s *UserService) ListUsers(ctx context.Context, f domain.UserFilter) ([]*domain.User, error) {
	return s.repo.List(ctx, f)
}

func (s *UserService) SearchUsersByName(ctx context.Context, name string) ([]*domain.User, error) {
	filter := domain.UserFilter{
		Nombre:     &name,
		Pagination: domain.Pagination{Limit: 20},
		Sort:       domain.Sort{Field: "created_at", Desc: true},
	}
	return s.repo.List(ctx, filter)
}
