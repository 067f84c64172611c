package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/davicafu/flowlab/internal/execution/domain"
)

// ExecutionConsumer procesa los eventos de ejecución publicados por el
// relayer y archiva las ejecuciones cerradas en el almacén analítico.
type ExecutionConsumer struct {
	analytics domain.ExecutionAnalytics
	log       *zap.Logger
}

func NewExecutionConsumer(analytics domain.ExecutionAnalytics, log *zap.Logger) *ExecutionConsumer {
	return &ExecutionConsumer{analytics: analytics, log: log}
}

// HandleMessage implementa events.MessageHandler.
func (c *ExecutionConsumer) HandleMessage(ctx context.Context, key string, payload []byte) {
	var exec domain.Execution
	if err := json.Unmarshal(payload, &exec); err != nil {
		c.log.Warn("Evento de ejecución no decodificable", zap.String("key", key), zap.Error(err))
		return
	}

	// Solo las ejecuciones cerradas se vuelcan al histórico.
	if !exec.Closed() || c.analytics == nil {
		return
	}

	if err := c.analytics.LogBatch(ctx, []*domain.Execution{&exec}); err != nil {
		c.log.Warn("No se pudo archivar la ejecución",
			zap.String("execution_id", exec.ID.String()),
			zap.Error(err),
		)
	}
}

// BackgroundConsumerChan adapta el bus en memoria al consumidor: lee los
// payloads del canal de suscripción y los entrega como si vinieran de Kafka.
func BackgroundConsumerChan(ctx context.Context, ch <-chan interface{}, c *ExecutionConsumer) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				payload, isBytes := raw.([]byte)
				if !isBytes {
					continue
				}
				c.HandleMessage(ctx, "", payload)
			}
		}
	}()
}
