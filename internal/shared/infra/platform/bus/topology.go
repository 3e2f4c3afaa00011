package bus

import (
	"fmt"
	"sort"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
	sharedEvents "github.com/davicafu/hexasync/internal/shared/domain/events"
)

// DeadLetterSuffix se añade al topic de origen para formar su topic de cuarentena.
const DeadLetterSuffix = ".dlq"

func DeadLetterTopic(topic string) string {
	return topic + DeadLetterSuffix
}

// Topology describe qué topic escribe cada contexto y a cuáles se suscribe cada grupo.
type Topology struct {
	Producers map[string]string
	Groups    map[string][]string
}

// Validate falla con TopicMismatchError si algún grupo se suscribe a un topic
// que ningún productor escribe. Un nombre distinto no da error en el broker:
// el grupo simplemente no recibe nada.
func (t Topology) Validate() error {
	produced := t.ProducedTopics()
	known := make(map[string]struct{}, len(produced))
	for _, topic := range produced {
		known[topic] = struct{}{}
	}

	groups := make([]string, 0, len(t.Groups))
	for g := range t.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, group := range groups {
		topics := t.Groups[group]
		if len(topics) == 0 {
			return fmt.Errorf("consumer group %q has no topics", group)
		}
		for _, topic := range topics {
			if _, ok := known[topic]; !ok {
				return &sharedDomain.TopicMismatchError{
					Source: "consumer group " + group,
					Topic:  topic,
					Known:  produced,
				}
			}
		}
	}
	return nil
}

// ValidateRegistry comprueba que todo contexto dueño de un evento tiene topic.
func (t Topology) ValidateRegistry(reg sharedEvents.Registry) error {
	for typ, desc := range reg {
		if topic := t.Producers[desc.Context]; topic == "" {
			return fmt.Errorf("event %s: context %q has no producer topic", typ, desc.Context)
		}
	}
	return nil
}

// ProducedTopics devuelve los topics de productor, ordenados y sin duplicados.
func (t Topology) ProducedTopics() []string {
	seen := make(map[string]struct{}, len(t.Producers))
	out := make([]string, 0, len(t.Producers))
	for _, topic := range t.Producers {
		if _, ok := seen[topic]; ok || topic == "" {
			continue
		}
		seen[topic] = struct{}{}
		out = append(out, topic)
	}
	sort.Strings(out)
	return out
}

// TopicForEvent resuelve el topic al que se publica un tipo de evento.
func (t Topology) TopicForEvent(reg sharedEvents.Registry, typ sharedEvents.EventType) (string, error) {
	desc, ok := reg[typ]
	if !ok {
		return "", fmt.Errorf("%w: %s", sharedEvents.ErrUnknownEventType, typ)
	}
	topic := t.Producers[desc.Context]
	if topic == "" {
		return "", fmt.Errorf("no producer topic for context %q", desc.Context)
	}
	return topic, nil
}
