package alerter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudops-tools/quota-notifier/pkg/compose"
	"github.com/cloudops-tools/quota-notifier/pkg/dispatch"
	"github.com/cloudops-tools/quota-notifier/pkg/evaluate"
	"github.com/cloudops-tools/quota-notifier/pkg/model"
	"github.com/cloudops-tools/quota-notifier/pkg/resolve"
	"github.com/cloudops-tools/quota-notifier/pkg/snapshot"
)

// Alerter runs one full evaluation pass: build snapshots, evaluate each
// organization against the threshold, resolve recipients, and dispatch
// notifications. Organizations are evaluated concurrently; all shared state
// lives behind the throttle store.
type Alerter struct {
	builder    *snapshot.Builder
	evaluator  *evaluate.Evaluator
	resolver   *resolve.Resolver
	dispatcher *dispatch.Dispatcher
	dryRun     bool
	logger     *slog.Logger

	mu     sync.Mutex
	last   model.PassStats
	hasRun bool
}

// New creates an alerter. With dryRun set, passes evaluate and log decisions
// but never send or record anything.
func New(builder *snapshot.Builder, evaluator *evaluate.Evaluator, resolver *resolve.Resolver, dispatcher *dispatch.Dispatcher, dryRun bool, logger *slog.Logger) *Alerter {
	return &Alerter{
		builder:    builder,
		evaluator:  evaluator,
		resolver:   resolver,
		dispatcher: dispatcher,
		dryRun:     dryRun,
		logger:     logger,
	}
}

// RunPass evaluates every organization once. The returned error is set when
// the organization list cannot be fetched at all, or when a throttle store
// failure forced the pass's remaining sends to be aborted; per-organization
// failures are logged and skipped.
func (a *Alerter) RunPass(ctx context.Context) (model.PassStats, error) {
	start := time.Now().UTC()
	stats := model.PassStats{StartedAt: start}

	snaps, skipped, err := a.builder.Build(ctx)
	if err != nil {
		return stats, err
	}
	stats.OrgsEvaluated = len(snaps)
	stats.OrgsSkipped = skipped

	// Canceled when a throttle store failure makes further sends unsafe.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		passErr error
	)

	for _, snap := range snaps {
		wg.Add(1)
		go func(snap model.OrgUsageSnapshot) {
			defer wg.Done()

			a.logger.Info("org usage",
				"org", snap.OrgName,
				"used", compose.FormatMB(snap.MemoryUsedMB),
				"limit", compose.FormatMB(snap.MemoryLimitMB),
				"percent_used", snap.PercentUsed)

			decision := a.evaluator.Evaluate(snap)
			if !decision.Eligible {
				return
			}
			mu.Lock()
			stats.OrgsAlerted++
			mu.Unlock()

			recipients, err := a.resolver.Resolve(ctx, snap.OrgID, snap.OrgName)
			if err != nil {
				a.logger.Error("skipping org after resolver error",
					"org", snap.OrgName, "error", err)
				return
			}
			decision.Recipients = recipients

			if a.dryRun {
				a.logger.Info("dry run: would notify",
					"org", snap.OrgName,
					"percent_used", decision.PercentUsed,
					"recipients", len(recipients))
				return
			}

			res, err := a.dispatcher.Dispatch(ctx, snap, recipients)
			mu.Lock()
			stats.SendsAttempted += res.Attempted
			stats.SendsSucceeded += res.Sent
			stats.SendsThrottled += res.Throttled
			stats.SendFailures += res.Failed
			if err != nil && passErr == nil {
				passErr = err
			}
			mu.Unlock()
			if err != nil {
				cancel()
			}
		}(snap)
	}
	wg.Wait()

	stats.DurationMS = time.Since(start).Milliseconds()
	a.mu.Lock()
	a.last = stats
	a.hasRun = true
	a.mu.Unlock()

	if passErr != nil {
		return stats, fmt.Errorf("throttle store failure aborted pass: %w", passErr)
	}
	return stats, nil
}

// Stats returns the most recent pass summary. ok is false before the first
// pass completes.
func (a *Alerter) Stats() (stats model.PassStats, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last, a.hasRun
}
