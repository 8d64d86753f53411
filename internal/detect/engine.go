// Package detect runs the brute-force login detection rule against the
// event store and promotes IPs crossing the failure threshold to alerts.
package detect

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vigil-systems/vigil/internal/config"
	"github.com/vigil-systems/vigil/internal/eventstore"
	"github.com/vigil-systems/vigil/internal/metrics"
	"github.com/vigil-systems/vigil/internal/models"
)

// EventCounter is the aggregation query the rule needs from the event store.
type EventCounter interface {
	CountFailedLoginsByIP(ctx context.Context, now time.Time, lookback time.Duration, topN int) ([]eventstore.IPCount, error)
}

// AlertSink persists one alert candidate.
type AlertSink interface {
	Store(ctx context.Context, alert *models.Alert) error
}

// RunResult summarizes one detection run.
type RunResult struct {
	Candidates []models.Alert
	Created    int
}

type Engine struct {
	events    EventCounter
	sink      AlertSink
	lookback  time.Duration
	threshold int
	topIPs    int
	now       func() time.Time
}

func NewEngine(events EventCounter, sink AlertSink, cfg config.DetectionConfig) *Engine {
	return &Engine{
		events:    events,
		sink:      sink,
		lookback:  cfg.Lookback,
		threshold: cfg.Threshold,
		topIPs:    cfg.TopIPs,
		now:       time.Now,
	}
}

// Run executes one detection pass. A query failure is fatal to the run and
// produces zero alerts; a persistence failure for one candidate is logged
// and the run continues with the rest. Each run is independent: no state is
// kept across runs and an IP that stays above threshold alerts again.
//
// The ledger records the alert window as "last_24h" while the query scans a
// 30-day lookback; the mismatch is intentional and preserved.
func (e *Engine) Run(ctx context.Context) (*RunResult, error) {
	now := e.now().UTC()

	counts, err := e.events.CountFailedLoginsByIP(ctx, now, e.lookback, e.topIPs)
	if err != nil {
		metrics.DetectionRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed-login aggregation: %w", err)
	}

	result := &RunResult{}
	for _, c := range counts {
		if c.Count < e.threshold {
			continue
		}

		alert := models.Alert{
			Type:      models.AlertTypeBruteForce,
			IP:        c.IP,
			Failures:  c.Count,
			Window:    models.WindowLabel,
			CreatedAt: now,
			Status:    models.AlertStatusActive,
		}
		result.Candidates = append(result.Candidates, alert)

		if err := e.sink.Store(ctx, &alert); err != nil {
			metrics.AlertSinkErrors.Inc()
			log.Printf("Error storing alert for %s: %v", c.IP, err)
			continue
		}
		result.Created++
		metrics.AlertsCreatedTotal.Inc()
	}

	metrics.DetectionRunsTotal.WithLabelValues("ok").Inc()
	log.Printf("Detection run complete: %d candidates, %d alerts created", len(result.Candidates), result.Created)
	return result, nil
}
