package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/metrics"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/ratebudget"
	"github.com/sells-group/roster-cli/internal/reconcile"
	"github.com/sells-group/roster-cli/internal/state"
)

// StateStore loads and replaces the persisted enriched and rejected sets.
type StateStore interface {
	Load(ctx context.Context) (*state.State, error)
	Save(ctx context.Context, prev *state.State, matched []*model.MatchResult, rejected []model.IdentityRecord) (*state.State, error)
	Lock() error
	Unlock() error
}

// RunLedger records run history. It is optional.
type RunLedger interface {
	CreateRun(ctx context.Context, pending int) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, errMsg string) error
}

// Pipeline sequences reconcile, submit and persist for one run.
type Pipeline struct {
	store     StateStore
	submitter *Submitter
	ledger    RunLedger
	metrics   *metrics.Recorder
	log       *zap.Logger
	now       func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLedger records every run that reaches the submit phase.
func WithLedger(l RunLedger) PipelineOption {
	return func(p *Pipeline) {
		p.ledger = l
	}
}

// NewPipeline creates a pipeline. The submitter's metrics recorder is shared.
func NewPipeline(store StateStore, submitter *Submitter, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:     store,
		submitter: submitter,
		metrics:   submitter.metrics,
		log:       zap.L().With(zap.String("component", "pipeline")),
		now:       time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Metrics returns the recorder shared with the submitter.
func (p *Pipeline) Metrics() *metrics.Recorder {
	return p.metrics
}

// Run enriches records. When nothing is pending it returns a summary with
// NothingToDo set and performs no calls and no writes. Any error leaves the
// persisted sets exactly as they were.
func (p *Pipeline) Run(ctx context.Context, records []model.IdentityRecord) (*model.RunSummary, error) {
	start := p.now()

	prev, plan, err := p.reconcile(ctx, records)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return p.nothingToDo(prev), nil
	}

	if err := p.store.Lock(); err != nil {
		return nil, err
	}
	defer func() {
		if err := p.store.Unlock(); err != nil {
			p.log.Warn("failed to release state lock", zap.Error(err))
		}
	}()

	// Re-read under the lock; the first read only decided whether to lock.
	prev, plan, err = p.reconcile(ctx, records)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return p.nothingToDo(prev), nil
	}

	runID := p.startRun(ctx, len(plan.Working))

	outcome, err := p.submitter.Run(ctx, plan.Working)
	if err != nil {
		p.metrics.LastRunSuccess.Set(0)
		p.finishRun(ctx, runID, model.RunStatusFailed, nil, err)
		return nil, err
	}

	combined, err := p.store.Save(ctx, prev, outcome.Matched, outcome.Rejected)
	if err != nil {
		p.metrics.LastRunSuccess.Set(0)
		p.finishRun(ctx, runID, model.RunStatusFailed, nil, err)
		return nil, err
	}

	summary := &model.RunSummary{
		NewlyEnriched:    len(outcome.Matched),
		NewlyRejected:    len(outcome.Rejected),
		StillPending:     len(plan.Working) - outcome.Submitted,
		TotalEnriched:    len(combined.Enriched),
		TotalRejected:    len(combined.Rejected),
		Calls:            outcome.Calls,
		RecordsSubmitted: outcome.Submitted,
		DailyRemaining:   p.submitter.Budget().DailyRemaining(),
		StopReason:       outcome.StopReason,
		DurationMs:       p.now().Sub(start).Milliseconds(),
	}

	p.metrics.Pending.Set(float64(summary.StillPending))
	p.metrics.LastRunSuccess.Set(1)
	p.finishRun(ctx, runID, summary.Status(), summary, nil)

	p.log.Info("enrichment run complete",
		zap.Int("newly_enriched", summary.NewlyEnriched),
		zap.Int("newly_rejected", summary.NewlyRejected),
		zap.Int("still_pending", summary.StillPending),
		zap.Int("total_enriched", summary.TotalEnriched),
		zap.Int("total_rejected", summary.TotalRejected),
		zap.Int("daily_remaining", summary.DailyRemaining),
		zap.String("stop_reason", string(summary.StopReason)),
	)
	return summary, nil
}

func (p *Pipeline) reconcile(ctx context.Context, records []model.IdentityRecord) (*state.State, *reconcile.Plan, error) {
	prev, err := p.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	plan := reconcile.Reconcile(records, prev.Enriched, prev.Rejected)
	p.log.Info("reconciled input",
		zap.Int("records", plan.Total),
		zap.Int("already_enriched", plan.AlreadyEnriched),
		zap.Int("already_rejected", plan.AlreadyRejected),
		zap.Int("working_set", len(plan.Working)),
	)
	return prev, plan, nil
}

func (p *Pipeline) nothingToDo(prev *state.State) *model.RunSummary {
	p.log.Info("nothing to do: every record is already enriched or rejected")
	p.metrics.Pending.Set(0)
	p.metrics.LastRunSuccess.Set(1)
	return &model.RunSummary{
		NothingToDo:    true,
		TotalEnriched:  len(prev.Enriched),
		TotalRejected:  len(prev.Rejected),
		DailyRemaining: ratebudget.Unknown,
	}
}

func (p *Pipeline) startRun(ctx context.Context, pending int) string {
	if p.ledger == nil {
		return ""
	}
	run, err := p.ledger.CreateRun(ctx, pending)
	if err != nil {
		p.log.Warn("failed to record run start", zap.Error(err))
		return ""
	}
	return run.ID
}

func (p *Pipeline) finishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, runErr error) {
	if p.ledger == nil || runID == "" {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	// The run context may already be cancelled; the ledger write is bookkeeping.
	if err := p.ledger.FinishRun(context.WithoutCancel(ctx), runID, status, summary, msg); err != nil {
		p.log.Warn("failed to record run result", zap.String("run_id", runID), zap.Error(err))
	}
}
