package mocks

import (
	"context"
	"sync"
	"time"

	execDomain "github.com/davicafu/flowlab/internal/execution/domain"
)

// InMemoryAnalytics acumula los lotes archivados, para inspección en tests.
type InMemoryAnalytics struct {
	Logged []*execDomain.Execution
	Trend  []execDomain.DailyExecutionTrend
	mu     sync.Mutex
}

var _ execDomain.ExecutionAnalytics = (*InMemoryAnalytics)(nil)

func (a *InMemoryAnalytics) LogBatch(ctx context.Context, executions []*execDomain.Execution) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Logged = append(a.Logged, executions...)
	return nil
}

func (a *InMemoryAnalytics) GetDailyTrend(ctx context.Context, start, end time.Time) ([]execDomain.DailyExecutionTrend, error) {
	return a.Trend, nil
}

// LoggedCount es seguro frente al consumidor asíncrono.
func (a *InMemoryAnalytics) LoggedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Logged)
}
