package consumer

import (
	"context"
	"fmt"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
)

// Handler aplica un evento. Devuelve nil, un error reintentable o uno
// marcado con domain.Fatal. Puede invocarse más de una vez por evento.
type Handler func(ctx context.Context, evt sharedEvents.DomainEvent) error

// Group es un grupo de consumo con nombre: sus topics y un handler por tipo.
// El nombre identifica también al consumidor en el ledger de idempotencia.
type Group struct {
	name     string
	topics   []string
	handlers map[sharedEvents.EventType]Handler
}

func NewGroup(name string, topics ...string) *Group {
	return &Group{
		name:     name,
		topics:   topics,
		handlers: make(map[sharedEvents.EventType]Handler),
	}
}

// OnEvent registra el handler de un tipo. Registrar dos veces el mismo tipo es un error de programación.
func (g *Group) OnEvent(t sharedEvents.EventType, h Handler) *Group {
	if _, dup := g.handlers[t]; dup {
		panic(fmt.Sprintf("consumer group %s: handler for %s already registered", g.name, t))
	}
	g.handlers[t] = h
	return g
}

func (g *Group) Name() string { return g.name }

func (g *Group) Topics() []string { return append([]string(nil), g.topics...) }

// EventTypes devuelve los tipos con handler registrado.
func (g *Group) EventTypes() []sharedEvents.EventType {
	out := make([]sharedEvents.EventType, 0, len(g.handlers))
	for t := range g.handlers {
		out = append(out, t)
	}
	return out
}

func (g *Group) handler(t sharedEvents.EventType) (Handler, bool) {
	h, ok := g.handlers[t]
	return h, ok
}

// Payload extrae el payload tipado. Un tipo inesperado es un error fatal.
func Payload[T sharedEvents.Payload](evt sharedEvents.DomainEvent) (T, error) {
	p, ok := sharedEvents.As[T](evt)
	if !ok {
		return p, sharedDomain.Fatal(fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type))
	}
	return p, nil
}
