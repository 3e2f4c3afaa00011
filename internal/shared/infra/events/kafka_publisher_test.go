package events

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	sharedDomain "github.com/davicafu/hexasync/internal/shared/domain"
)

func TestClassifyKafkaError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"red caida", errors.New("dial tcp: connection refused"), true},
		{"leader no disponible", kafka.LeaderNotAvailable, true},
		{"write errors temporales", kafka.WriteErrors{kafka.NotEnoughReplicas}, true},
		{"mensaje demasiado grande", kafka.MessageSizeTooLarge, false},
		{"topic invalido", fmt.Errorf("write: %w", kafka.InvalidTopic), false},
		{"contexto cancelado", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyKafkaError(tt.err)

			assert.Equal(t, tt.transient, sharedDomain.IsTransient(got))
		})
	}
}
