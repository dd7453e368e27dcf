package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/tonatiuh/internal/testutil"
)

func newTestMonitor(goroutines *int, now *time.Time) *Monitor {
	m := NewMonitor(Config{AlertThreshold: 100, AlertCooldown: time.Minute}, testutil.NopLogger())
	m.numGoroutine = func() int { return *goroutines }
	m.now = func() time.Time { return *now }
	return m
}

func TestMonitor_CheckSamplesGauges(t *testing.T) {
	goroutines := 10
	now := time.Unix(0, 0)
	m := newTestMonitor(&goroutines, &now)

	sessions := 3
	m.Track("sessions", func() int { return sessions })
	m.Track("clients", func() int { return 0 })

	metrics, alert := m.Check()
	assert.False(t, alert)
	assert.Equal(t, 10, metrics.Goroutines)
	assert.Equal(t, map[string]int{"sessions": 3, "clients": 0}, metrics.Gauges)

	sessions = 5
	goroutines = 40
	m.Check()
	goroutines = 20
	metrics, _ = m.Check()
	assert.Equal(t, 5, metrics.Gauges["sessions"])
	assert.Equal(t, 20, metrics.Goroutines)
	assert.Equal(t, 40, metrics.Peak)
	assert.Equal(t, metrics, m.Metrics())
}

func TestMonitor_AlertCooldown(t *testing.T) {
	goroutines := 150
	now := time.Unix(0, 0)
	m := newTestMonitor(&goroutines, &now)

	_, alert := m.Check()
	assert.True(t, alert)

	now = now.Add(30 * time.Second)
	_, alert = m.Check()
	assert.False(t, alert, "still cooling down")

	now = now.Add(time.Minute)
	_, alert = m.Check()
	assert.True(t, alert)

	goroutines = 50
	now = now.Add(time.Hour)
	_, alert = m.Check()
	assert.False(t, alert, "below threshold")
}

func TestMonitor_PanickingGaugeIsRecovered(t *testing.T) {
	m := NewMonitor(Config{}, testutil.NopLogger())
	m.Track("broken", func() int { panic("boom") })
	assert.NotPanics(t, m.checkSafely)
}

func TestMonitor_RunStopsWithContext(t *testing.T) {
	m := NewMonitor(Config{CheckInterval: time.Millisecond}, testutil.NopLogger())
	calls := make(chan struct{}, 100)
	m.Track("calls", func() int {
		select {
		case calls <- struct{}{}:
		default:
		}
		return 0
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never checked")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "Run did not return")
	}
}
