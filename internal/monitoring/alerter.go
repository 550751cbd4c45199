package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate       AlertType = "dataset_failure_rate"
	AlertLowCompliance     AlertType = "low_compliance"
	AlertPillarUnavailable AlertType = "pillar_unavailable"
)

// minFinished is the number of finished runs required before rates are judged.
const minFinished = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Key identifies the condition an alert reports, stable across checks.
func (a Alert) Key() string {
	if p, ok := a.Details["pillar"].(string); ok {
		return string(a.Type) + ":" + p
	}
	return string(a.Type)
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.Reported + snap.Failed
	if finished >= minFinished && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Dataset failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.Failed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.Failed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MinCompositeScore > 0 && snap.AvgComposite.Valid && snap.AvgComposite.Float < a.cfg.MinCompositeScore {
		alerts = append(alerts, Alert{
			Type:     AlertLowCompliance,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Average composite score %.2f is below %.2f in last %dh",
				snap.AvgComposite.Float, a.cfg.MinCompositeScore, snap.LookbackHours,
			),
			Details: map[string]any{
				"avg_composite": snap.AvgComposite.Float,
				"threshold":     a.cfg.MinCompositeScore,
				"reported":      snap.Reported,
			},
			Timestamp: now,
		})
	}

	if snap.Reported >= minFinished {
		for _, p := range model.Pillars {
			if snap.Availability[p] > 0 {
				continue
			}
			alerts = append(alerts, Alert{
				Type:     AlertPillarUnavailable,
				Severity: "low",
				Message: fmt.Sprintf(
					"%s produced no score for any of %d reported datasets in last %dh",
					p.Title(), snap.Reported, snap.LookbackHours,
				),
				Details: map[string]any{
					"pillar":   string(p),
					"reported": snap.Reported,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
