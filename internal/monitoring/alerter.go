// Package monitoring evaluates finished batch runs and posts alerts to a
// webhook when they look unhealthy.
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

	"github.com/sells-group/phonelink/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertFailureRate AlertType = "batch_failure_rate"
	AlertStoreErrors AlertType = "batch_store_errors"
	AlertConflicts   AlertType = "batch_conflicts"
)

// minItemsForRate is the smallest batch the failure rate is judged on.
const minItemsForRate = 5

// Config holds alert thresholds and the delivery target.
type Config struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Operation string         `json:"operation"`
	RunID     string         `json:"runId"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a BatchResult against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    Config
	client *http.Client
}

// NewAlerter creates a new Alerter with the given config.
func NewAlerter(cfg Config) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks one run and returns any alerts. Dry runs never alert.
func (a *Alerter) Evaluate(op string, res *model.BatchResult) []Alert {
	if res == nil || res.DryRun || res.Processed == 0 {
		return nil
	}
	var alerts []Alert
	now := time.Now().UTC()
	alert := func(t AlertType, severity, msg string, details map[string]any) {
		alerts = append(alerts, Alert{
			Type:      t,
			Severity:  severity,
			Operation: op,
			RunID:     res.RunID,
			Message:   msg,
			Details:   details,
			Timestamp: now,
		})
	}

	rate := float64(res.Failures()) / float64(res.Processed)
	if a.cfg.FailureRateThreshold > 0 && res.Processed >= minItemsForRate && rate > a.cfg.FailureRateThreshold {
		alert(AlertFailureRate, "high", fmt.Sprintf(
			"%s failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d processed)",
			op, rate*100, a.cfg.FailureRateThreshold*100, res.Failures(), res.Processed,
		), map[string]any{
			"failure_rate": rate,
			"threshold":    a.cfg.FailureRateThreshold,
			"failed":       res.Failures(),
			"processed":    res.Processed,
		})
	}

	// Store errors usually mean the identity backend is down, not bad data.
	if res.Errors > 0 {
		alert(AlertStoreErrors, "high", fmt.Sprintf(
			"%d %s item(s) failed with store errors", res.Errors, op,
		), map[string]any{"errors": res.Errors})
	}

	if res.Conflicts > 0 {
		alert(AlertConflicts, "medium", fmt.Sprintf(
			"%d %s item(s) collide with existing accounts and need manual review", res.Conflicts, op,
		), map[string]any{"conflicts": res.Conflicts})
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
			zap.String("run_id", alert.RunID),
		)
		sent++
	}
	return sent
}

// Notify evaluates res and sends whatever it finds. A nil Alerter sends
// nothing.
func (a *Alerter) Notify(ctx context.Context, op string, res *model.BatchResult) int {
	if a == nil {
		return 0
	}
	return a.SendAlerts(ctx, a.Evaluate(op, res))
}

// sendWebhook posts a single alert to the webhook URL.
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
