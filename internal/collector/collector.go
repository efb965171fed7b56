// Package collector iterates the active actor roster, applies the
// per-actor throttle, invokes the Reconciliation Engine, and fans out
// to the Risk Evaluator for every country touched.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/encasitacov19/CTI-PLATFORM/internal/model"
	"github.com/encasitacov19/CTI-PLATFORM/internal/reconcile"
	"github.com/encasitacov19/CTI-PLATFORM/internal/risk"
)

// ActorStore is the subset of store.Store the runner needs for
// enumerating actors.
type ActorStore interface {
	ActiveActors(ctx context.Context) ([]model.ThreatActor, error)
}

// ProgressFunc receives the running processed/total counts alongside a
// short event string per spec.md 4.6: "enumerated", "skip:<name>", or
// "scan:<name>:<status>". total is fixed once enumeration completes;
// processed advances as each actor is handled.
type ProgressFunc func(processed, total int, event string)

// Summary is the outcome of one collection pass.
type Summary struct {
	TotalActors       int
	Processed         int
	Scanned           int
	Skipped           int
	Errors            int
	CountriesEvaluated int
}

// Runner drives one collection pass over the active actor roster.
type Runner struct {
	actors  ActorStore
	engine  *reconcile.Engine
	risk    *risk.Evaluator
}

// New builds a Runner.
func New(actors ActorStore, engine *reconcile.Engine, riskEvaluator *risk.Evaluator) *Runner {
	return &Runner{actors: actors, engine: engine, risk: riskEvaluator}
}

// Run performs one full collection pass, reporting progress through
// report and returning a rolled-up summary plus any per-actor errors
// aggregated via multierror — the run continues past individual actor
// failures.
func (r *Runner) Run(ctx context.Context, now time.Time, report ProgressFunc) (Summary, error) {
	if report == nil {
		report = func(int, int, string) {}
	}

	actors, err := r.actors.ActiveActors(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load active actors: %w", err)
	}

	summary := Summary{TotalActors: len(actors)}
	report(0, summary.TotalActors, "enumerated")
	var errs *multierror.Error
	countriesTouched := make(map[string]struct{})

	for _, actor := range actors {
		summary.Processed++

		throttled, err := r.engine.ShouldThrottle(ctx, actor.ID, now)
		if err != nil {
			summary.Errors++
			errs = multierror.Append(errs, fmt.Errorf("throttle check for %s: %w", actor.Name, err))
			continue
		}
		if throttled {
			summary.Skipped++
			report(summary.Processed, summary.TotalActors, fmt.Sprintf("skip:%s", actor.Name))
			continue
		}

		result := r.engine.Reconcile(ctx, actor, now)
		report(summary.Processed, summary.TotalActors, fmt.Sprintf("scan:%s:%s", actor.Name, result.Status))

		switch result.Status {
		case reconcile.StatusOK:
			summary.Scanned++
			if actor.Country != "" {
				countriesTouched[actor.Country] = struct{}{}
			}
		case reconcile.StatusNotFound:
			summary.Skipped++
		case reconcile.StatusError:
			summary.Errors++
			errs = multierror.Append(errs, fmt.Errorf("reconcile %s: %w", actor.Name, result.Err))
		}
	}

	for country := range countriesTouched {
		if _, err := r.risk.Evaluate(ctx, country, now); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("risk evaluation for %s: %w", country, err))
			continue
		}
		summary.CountriesEvaluated++
	}

	return summary, errs.ErrorOrNil()
}
