package monitoring

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultCheckInterval  = 30 * time.Second
	DefaultAlertThreshold = 1000
	DefaultAlertCooldown  = 5 * time.Minute
)

// Gauge reports the current size of a component, e.g. live sessions.
type Gauge func() int

// Config tunes a Monitor. Zero fields take the defaults.
type Config struct {
	CheckInterval  time.Duration
	AlertThreshold int
	AlertCooldown  time.Duration
}

// Monitor samples the goroutine count and the registered gauges, and warns when the
// goroutine count passes the alert threshold.
type Monitor struct {
	mu        sync.RWMutex
	cfg       Config
	baseline  int
	current   int
	peak      int
	lastAlert time.Time
	gauges    map[string]Gauge
	last      map[string]int

	// injectable for tests
	numGoroutine func() int
	now          func() time.Time
	logger       zerolog.Logger
}

func NewMonitor(cfg Config, logger zerolog.Logger) *Monitor {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.AlertThreshold <= 0 {
		cfg.AlertThreshold = DefaultAlertThreshold
	}
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = DefaultAlertCooldown
	}
	baseline := runtime.NumGoroutine()
	return &Monitor{
		cfg:          cfg,
		baseline:     baseline,
		current:      baseline,
		peak:         baseline,
		gauges:       make(map[string]Gauge),
		last:         make(map[string]int),
		numGoroutine: runtime.NumGoroutine,
		now:          time.Now,
		logger:       logger.With().Str("component", "Monitor").Logger(),
	}
}

// Track registers a gauge sampled on every check.
func (m *Monitor) Track(name string, g Gauge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = g
}

// Run checks every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info().Int("baseline", m.baseline).Dur("interval", m.cfg.CheckInterval).Msg("Started monitoring")

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkSafely()
		}
	}
}

func (m *Monitor) checkSafely() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("Monitor check panicked")
		}
	}()
	m.Check()
}

// Check samples once and returns the metrics. It returns alert true when the
// goroutine count is over the threshold and the cooldown has passed.
func (m *Monitor) Check() (Metrics, bool) {
	current := m.numGoroutine()

	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	for name, g := range m.gauges {
		m.last[name] = g()
	}
	now := m.now()
	alert := current > m.cfg.AlertThreshold &&
		(m.lastAlert.IsZero() || now.Sub(m.lastAlert) > m.cfg.AlertCooldown)
	if alert {
		m.lastAlert = now
	}
	metrics := m.metricsLocked()
	m.mu.Unlock()

	ev := m.logger.Debug().
		Int("goroutines", metrics.Goroutines).
		Int("baseline", metrics.Baseline).
		Int("peak", metrics.Peak)
	for _, name := range sortedKeys(metrics.Gauges) {
		ev = ev.Int(name, metrics.Gauges[name])
	}
	ev.Msg("Runtime metrics")

	if alert {
		m.logger.Warn().
			Int("goroutines", current).
			Int("threshold", m.cfg.AlertThreshold).
			Msg("High goroutine count detected - possible leak")
	}
	return metrics, alert
}

// Metrics returns the last sample.
func (m *Monitor) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metricsLocked()
}

func (m *Monitor) metricsLocked() Metrics {
	gauges := make(map[string]int, len(m.last))
	for k, v := range m.last {
		gauges[k] = v
	}
	return Metrics{
		Goroutines: m.current,
		Baseline:   m.baseline,
		Peak:       m.peak,
		Growth:     m.current - m.baseline,
		Gauges:     gauges,
	}
}

// Metrics is one sample of the monitor.
type Metrics struct {
	Goroutines int            `json:"goroutines"`
	Baseline   int            `json:"baseline"`
	Peak       int            `json:"peak"`
	Growth     int            `json:"growth"`
	Gauges     map[string]int `json:"gauges"`
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
