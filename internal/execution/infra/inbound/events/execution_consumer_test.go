package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davicafu/flowlab/internal/execution/domain"
	"github.com/davicafu/flowlab/tests/mocks"
)

func TestExecutionConsumer_ArchivesClosed(t *testing.T) {
	analytics := &mocks.InMemoryAnalytics{}
	consumer := NewExecutionConsumer(analytics, zap.NewNop())

	now := time.Now().UTC()
	exec := domain.Execution{
		ID:        uuid.New(),
		Workflow:  "order-processing",
		Name:      "order-1",
		Status:    domain.StatusCompleted,
		CreatedAt: now.Add(-time.Minute),
		ClosedAt:  &now,
	}
	payload, err := json.Marshal(&exec)
	require.NoError(t, err)

	consumer.HandleMessage(context.Background(), exec.ID.String(), payload)

	require.Equal(t, 1, analytics.LoggedCount())
	assert.Equal(t, exec.ID, analytics.Logged[0].ID)
}

func TestExecutionConsumer_IgnoresOpenExecutions(t *testing.T) {
	analytics := &mocks.InMemoryAnalytics{}
	consumer := NewExecutionConsumer(analytics, zap.NewNop())

	exec := domain.Execution{
		ID:        uuid.New(),
		Status:    domain.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	payload, _ := json.Marshal(&exec)

	consumer.HandleMessage(context.Background(), exec.ID.String(), payload)

	assert.Equal(t, 0, analytics.LoggedCount())
}

func TestExecutionConsumer_IgnoresGarbage(t *testing.T) {
	analytics := &mocks.InMemoryAnalytics{}
	consumer := NewExecutionConsumer(analytics, zap.NewNop())

	consumer.HandleMessage(context.Background(), "k", []byte("not json"))

	assert.Equal(t, 0, analytics.LoggedCount())
}
