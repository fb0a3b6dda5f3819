// Package health runs periodic liveness probes against the portal's
// external collaborators: the document store, the object store, and the
// vision API. A collaborator is marked degraded after consecutive failures
// and recovers on the first success.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one collaborator; it returns an error when the collaborator
// is unreachable or unhealthy.
type Probe func(ctx context.Context) error

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(name string, success bool)

// Config holds checker configuration.
type Config struct {
	CheckInterval time.Duration
	ProbeTimeout  time.Duration
	FailThreshold int
}

// Checker runs the probe loop and tracks per-collaborator state.
type Checker struct {
	probes     map[string]Probe
	failCounts map[string]int
	degraded   map[string]bool
	mu         sync.Mutex
	cfg        Config
	onMetrics  MetricsRecordFunc
	logger     *zap.Logger
}

// New creates a Checker.
func New(cfg Config, logger *zap.Logger) *Checker {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = 1 * time.Minute
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Checker{
		probes:     make(map[string]Probe),
		failCounts: make(map[string]int),
		degraded:   make(map[string]bool),
		cfg:        cfg,
		logger:     logger,
	}
}

// Register adds a named collaborator probe. Call before Start.
func (c *Checker) Register(name string, probe Probe) {
	c.probes[name] = probe
}

// SetMetricsRecord configures the metrics recording callback.
func (c *Checker) SetMetricsRecord(fn MetricsRecordFunc) {
	c.onMetrics = fn
}

// Start runs the probe loop until done is closed. Call from a goroutine.
func (c *Checker) Start(done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.CheckInterval)
	defer ticker.Stop()

	c.runOnce()
	for {
		select {
		case <-ticker.C:
			c.runOnce()
		case <-done:
			return
		}
	}
}

// Status returns the current degraded flag per collaborator.
func (c *Checker) Status() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]bool, len(c.probes))
	for name := range c.probes {
		out[name] = !c.degraded[name]
	}
	return out
}

func (c *Checker) runOnce() {
	for name, probe := range c.probes {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProbeTimeout)
		err := probe(ctx)
		cancel()

		if c.onMetrics != nil {
			c.onMetrics(name, err == nil)
		}
		c.record(name, err)
	}
}

func (c *Checker) record(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		if c.degraded[name] {
			c.logger.Info("collaborator recovered", zap.String("name", name))
		}
		c.failCounts[name] = 0
		c.degraded[name] = false
		return
	}

	c.failCounts[name]++
	c.logger.Warn("collaborator probe failed",
		zap.String("name", name),
		zap.Int("consecutive", c.failCounts[name]),
		zap.Error(err),
	)

	if c.failCounts[name] >= c.cfg.FailThreshold && !c.degraded[name] {
		c.degraded[name] = true
		c.logger.Error("collaborator marked degraded", zap.String("name", name))
	}
}
