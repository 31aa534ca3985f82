// Package health provides health checks for the conversation store and a
// monitor that keeps the latest result available to callers.
//
// BackendCheck pings the key-value backend and grades the round trip:
//
//	status := health.BackendCheck(ctx, adapter, 250*time.Millisecond)
//	if status.IsUnhealthy() {
//	    log.Println(status.Message)
//	}
//
// Monitor runs a check on an interval and notifies a callback when the
// status changes, which is how the daemon drives its gRPC health service.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

// BackendCheck pings p and returns unhealthy on error, degraded when the
// round trip exceeds slow (ignored when zero), healthy otherwise.
func BackendCheck(ctx context.Context, p Pinger, slow time.Duration) Status {
	start := time.Now()
	ok, err := p.Ping(ctx)
	elapsed := time.Since(start)

	if err != nil || !ok {
		details := map[string]any{"latency_ms": elapsed.Milliseconds()}
		if err != nil {
			details["error"] = err.Error()
		}
		return Unhealthy("backend unreachable", details)
	}

	if slow > 0 && elapsed > slow {
		return Degraded(
			fmt.Sprintf("backend ping took %s", elapsed.Round(time.Millisecond)),
			map[string]any{
				"latency_ms":   elapsed.Milliseconds(),
				"threshold_ms": slow.Milliseconds(),
			},
		)
	}

	return Healthy("backend reachable")
}

// Combine folds named checks into one status. The worst status wins, with
// any value other than healthy or degraded counting as unhealthy. Details
// maps each name to its own status.
func Combine(checks map[string]Status) Status {
	if len(checks) == 0 {
		return Healthy("no checks")
	}

	worst := StatusHealthy
	var failing []string
	details := make(map[string]any, len(checks))
	for _, name := range slices.Sorted(maps.Keys(checks)) {
		check := checks[name]
		details[name] = check
		if severity(check.Status) > severity(worst) {
			worst = check.Status
		}
		if !check.IsHealthy() {
			failing = append(failing, name)
		}
	}

	switch severity(worst) {
	case 0:
		return Status{Status: StatusHealthy, Message: fmt.Sprintf("%d checks passing", len(checks)), Details: details}
	case 1:
		return Degraded("degraded: "+strings.Join(failing, ", "), details)
	default:
		return Unhealthy("failing: "+strings.Join(failing, ", "), details)
	}
}

func severity(status string) int {
	switch status {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckFunc produces a health status.
type CheckFunc func(ctx context.Context) Status

// Monitor periodically runs a check and keeps the most recent result.
type Monitor struct {
	check    CheckFunc
	interval time.Duration
	timeout  time.Duration
	onChange func(Status)
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	status    Status
	checked   bool
	checkedAt time.Time
}

// NewMonitor creates a Monitor. onChange, if non-nil, is called whenever the
// status string changes, including after the first check.
func NewMonitor(check CheckFunc, interval time.Duration, onChange func(Status), logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		check:    check,
		interval: interval,
		timeout:  interval,
		onChange: onChange,
		logger:   logger.With("component", "health"),
		now:      time.Now,
		status:   Unhealthy("not checked yet", nil),
	}
}

// Status returns the latest result.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Freshness reports whether the monitor itself is keeping up: unhealthy
// before the first check, degraded once the last check is older than three
// intervals.
func (m *Monitor) Freshness() Status {
	m.mu.RLock()
	checked, at := m.checked, m.checkedAt
	m.mu.RUnlock()

	if !checked {
		return Unhealthy("no check completed", nil)
	}
	age := m.now().Sub(at)
	if limit := 3 * m.interval; age > limit {
		return Degraded(
			fmt.Sprintf("last check %s ago", age.Round(time.Second)),
			map[string]any{"age_ms": age.Milliseconds(), "limit_ms": limit.Milliseconds()},
		)
	}
	return Healthy("checked " + at.UTC().Format(time.RFC3339))
}

// Report combines the latest backend result with Freshness.
func (m *Monitor) Report() Status {
	return Combine(map[string]Status{
		"backend": m.Status(),
		"monitor": m.Freshness(),
	})
}

// CheckNow runs the check once and records the result.
func (m *Monitor) CheckNow(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	status := m.check(ctx)

	m.mu.Lock()
	changed := !m.checked || status.Status != m.status.Status
	m.status = status
	m.checked = true
	m.checkedAt = m.now()
	m.mu.Unlock()

	if changed {
		m.logger.Info("health status changed", "status", status.Status, "message", status.Message)
		if m.onChange != nil {
			m.onChange(status)
		}
	}
	return status
}

// Run checks immediately and then on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}
