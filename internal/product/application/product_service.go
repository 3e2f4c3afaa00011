package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davicafu/hexasync/internal/product/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
)

// ProductService define los casos de uso del catálogo y del stock.
type ProductService struct {
	repo   domain.ProductRepository
	outbox domain.EventOutbox
	log    *zap.Logger
}

func NewProductService(repo domain.ProductRepository, outbox domain.EventOutbox, log *zap.Logger) *ProductService {
	return &ProductService{repo: repo, outbox: outbox, log: log}
}

// CreateProduct guarda el producto y su ProductCreated en una transacción.
func (s *ProductService) CreateProduct(ctx context.Context, name string, price decimal.Decimal, stock int) (*domain.Product, error) {
	now := time.Now().UTC()
	p := &domain.Product{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		Price:     price,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	evt := sharedEvents.New(p.ID.String(), sharedEvents.ProductCreated{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	})
	if err := s.outbox.Append(ctx, func(txCtx context.Context) error { return s.repo.Create(txCtx, p) }, evt); err != nil {
		return nil, err
	}

	s.log.Info("✅ Producto creado", zap.String("product_id", p.ID.String()), zap.String("event_id", evt.EventID.String()))
	return p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) ListProducts(ctx context.Context, limit, offset int) ([]*domain.Product, error) {
	return s.repo.List(ctx, limit, offset)
}

// ReserveForOrder aparta el stock de todas las líneas del pedido y deja un
// ProductStockReserved por producto en el outbox. Debe ejecutarse dentro de
// una transacción: si una línea falla no queda ninguna reserva.
func (s *ProductService) ReserveForOrder(ctx context.Context, order sharedEvents.OrderCreated) error {
	var staged []sharedEvents.DomainEvent
	for _, line := range mergeLines(order.Items) {
		remaining, err := s.repo.Reserve(ctx, domain.Reservation{
			OrderID:   order.OrderID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
		if err != nil {
			return err
		}
		staged = append(staged, sharedEvents.New(line.ProductID.String(), sharedEvents.ProductStockReserved{
			ProductID: line.ProductID,
			OrderID:   order.OrderID,
			Quantity:  line.Quantity,
			Remaining: remaining,
		}))
	}
	if err := s.outbox.Stage(ctx, staged...); err != nil {
		return err
	}

	s.log.Info("📦 Stock reservado", zap.String("order_id", order.OrderID.String()), zap.Int("products", len(staged)))
	return nil
}

// ReleaseForOrder devuelve el stock de un pedido cancelado. Sin reservas no hace nada.
func (s *ProductService) ReleaseForOrder(ctx context.Context, orderID uuid.UUID) error {
	released, err := s.repo.Release(ctx, orderID)
	if err != nil {
		return err
	}
	if len(released) > 0 {
		s.log.Info("↩️ Stock liberado", zap.String("order_id", orderID.String()), zap.Int("products", len(released)))
	}
	return nil
}

// mergeLines suma cantidades de un mismo producto conservando el orden de aparición.
func mergeLines(items []sharedEvents.OrderLine) []sharedEvents.OrderLine {
	index := make(map[uuid.UUID]int, len(items))
	var out []sharedEvents.OrderLine
	for _, it := range items {
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}
