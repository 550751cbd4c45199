package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

// defaultCheckInterval applies when monitoring.check_interval_secs is unset.
const defaultCheckInterval = 5 * time.Minute

// Checker periodically snapshots run history, publishes the snapshot as
// gauges and raises alerts. An alert that stays active across checks is
// sent once and is sent again only after it has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	metrics   *Metrics
	lookback  int
	interval  time.Duration

	mu     sync.Mutex
	active map[string]bool
}

// NewChecker creates a background checker. metrics may be nil.
func NewChecker(collector *Collector, alerter *Alerter, metrics *Metrics, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		metrics:   metrics,
		lookback:  cfg.LookbackWindowHours,
		interval:  interval,
		active:    make(map[string]bool),
	}
}

// Run checks once, then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: starting checker",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			c.Check(ctx)
		}
		select {
		case <-ctx.Done():
			log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects one snapshot, publishes it and sends the alerts that were
// not already active at the previous check. It returns those new alerts.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		log.Error("monitoring: failed to collect snapshot", zap.Error(err))
		return nil
	}
	c.metrics.Snapshot(snap)

	fields := []zap.Field{
		zap.Int("reported", snap.Reported),
		zap.Int("failed", snap.Failed),
		zap.String("avg_composite", snap.AvgComposite.String()),
	}
	for _, p := range model.Pillars {
		fields = append(fields, zap.Float64(string(p)+"_availability", snap.Availability[p]))
	}
	log.Debug("monitoring: snapshot collected", fields...)

	fresh := c.raise(c.alerter.Evaluate(snap))
	if len(fresh) == 0 {
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_raised", len(fresh)),
		zap.Int("alerts_sent", sent),
	)
	return fresh
}

// raise records alerts as the active set and returns those that were not
// active before.
func (c *Checker) raise(alerts []Alert) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := make(map[string]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		key := a.Key()
		now[key] = true
		if !c.active[key] {
			fresh = append(fresh, a)
		}
	}
	for key := range c.active {
		if !now[key] {
			zap.L().Info("monitoring: alert cleared", zap.String("alert", key))
		}
	}
	c.active = now
	return fresh
}
