package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestExecution_Closed(t *testing.T) {
	e := &Execution{ID: uuid.New(), Status: StatusRunning}
	assert.False(t, e.Closed())

	for _, s := range []ExecutionStatus{StatusCompleted, StatusFailed, StatusCanceled} {
		e.Status = s
		assert.True(t, e.Closed())
	}
}

func TestExecution_Duration(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour)
	closed := start.Add(30 * time.Minute)

	e := &Execution{CreatedAt: start, ClosedAt: &closed}
	assert.Equal(t, 30*time.Minute, e.Duration())

	// sin cierre, la duración sigue corriendo
	e.ClosedAt = nil
	assert.Greater(t, e.Duration(), time.Hour)
}
