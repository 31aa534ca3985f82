package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	delay time.Duration
	err   error
}

func (f fakePinger) Ping(ctx context.Context) (bool, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return false, f.err
	}
	return true, nil
}

func TestStatusPredicates(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		healthy   bool
		degraded  bool
		unhealthy bool
	}{
		{"healthy", Healthy("ok"), true, false, false},
		{"degraded", Degraded("slow", nil), false, true, false},
		{"unhealthy", Unhealthy("down", nil), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.healthy, tt.status.IsHealthy())
			assert.Equal(t, tt.degraded, tt.status.IsDegraded())
			assert.Equal(t, tt.unhealthy, tt.status.IsUnhealthy())
		})
	}
}

func TestBackendCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("reachable", func(t *testing.T) {
		status := BackendCheck(ctx, fakePinger{}, time.Second)
		assert.True(t, status.IsHealthy())
	})

	t.Run("ping error", func(t *testing.T) {
		status := BackendCheck(ctx, fakePinger{err: errors.New("connection refused")}, time.Second)
		require.True(t, status.IsUnhealthy())
		assert.Equal(t, "connection refused", status.Details["error"])
	})

	t.Run("slow ping", func(t *testing.T) {
		status := BackendCheck(ctx, fakePinger{delay: 20 * time.Millisecond}, time.Millisecond)
		require.True(t, status.IsDegraded())
		assert.Contains(t, status.Details, "latency_ms")
		assert.Equal(t, int64(1), status.Details["threshold_ms"])
	})

	t.Run("zero threshold never degrades", func(t *testing.T) {
		status := BackendCheck(ctx, fakePinger{delay: 5 * time.Millisecond}, 0)
		assert.True(t, status.IsHealthy())
	})
}

func TestCombine(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		assert.True(t, Combine(nil).IsHealthy())
	})

	t.Run("all healthy", func(t *testing.T) {
		status := Combine(map[string]Status{"a": Healthy("ok"), "b": Healthy("ok")})
		assert.True(t, status.IsHealthy())
		assert.Equal(t, "2 checks passing", status.Message)
		assert.Equal(t, Healthy("ok"), status.Details["a"])
	})

	t.Run("degraded wins over healthy", func(t *testing.T) {
		status := Combine(map[string]Status{"a": Healthy("ok"), "b": Degraded("slow", nil)})
		assert.True(t, status.IsDegraded())
		assert.Equal(t, "degraded: b", status.Message)
	})

	t.Run("unhealthy wins over degraded", func(t *testing.T) {
		status := Combine(map[string]Status{
			"c": Unhealthy("down", nil),
			"a": Degraded("slow", nil),
			"b": {Status: "unknown"},
		})
		assert.True(t, status.IsUnhealthy())
		assert.Equal(t, "failing: a, b, c", status.Message)
	})
}

func TestMonitorFreshness(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	m := NewMonitor(func(ctx context.Context) Status { return Healthy("up") }, time.Minute, nil, nil)
	m.now = func() time.Time { return now }

	assert.True(t, m.Freshness().IsUnhealthy())
	assert.True(t, m.Report().IsUnhealthy())

	m.CheckNow(context.Background())
	assert.True(t, m.Freshness().IsHealthy())
	assert.True(t, m.Report().IsHealthy())

	now = now.Add(3 * time.Minute)
	assert.True(t, m.Freshness().IsHealthy())

	now = now.Add(time.Second)
	report := m.Report()
	assert.True(t, report.IsDegraded())
	assert.Equal(t, "degraded: monitor", report.Message)
	assert.Equal(t, Healthy("up"), report.Details["backend"])
}

func TestMonitor(t *testing.T) {
	t.Run("reports changes only", func(t *testing.T) {
		var mu sync.Mutex
		current := Healthy("up")
		var seen []string

		m := NewMonitor(
			func(ctx context.Context) Status {
				mu.Lock()
				defer mu.Unlock()
				return current
			},
			time.Hour,
			func(s Status) { seen = append(seen, s.Status) },
			nil,
		)
		assert.True(t, m.Status().IsUnhealthy(), "unchecked monitor is not ready")

		ctx := context.Background()
		m.CheckNow(ctx)
		m.CheckNow(ctx)

		mu.Lock()
		current = Unhealthy("down", nil)
		mu.Unlock()
		m.CheckNow(ctx)

		assert.Equal(t, []string{StatusHealthy, StatusUnhealthy}, seen)
		assert.True(t, m.Status().IsUnhealthy())
	})

	t.Run("run stops with context", func(t *testing.T) {
		checked := make(chan struct{}, 1)
		m := NewMonitor(func(ctx context.Context) Status {
			select {
			case checked <- struct{}{}:
			default:
			}
			return Healthy("up")
		}, time.Hour, nil, nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			m.Run(ctx)
			close(done)
		}()

		<-checked
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("monitor did not stop")
		}
		assert.True(t, m.Status().IsHealthy())
	})
}
