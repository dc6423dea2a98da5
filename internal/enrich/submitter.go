// Package enrich drives harvested identity records through the rate-limited
// bulk match API and persists the settled results.
package enrich

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/metrics"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/ratebudget"
	"github.com/sells-group/roster-cli/internal/resilience"
	"github.com/sells-group/roster-cli/pkg/apollo"
)

// Outcome is what one submission run settled. Matched and Rejected are in
// submission order.
type Outcome struct {
	Matched    []*model.MatchResult
	Rejected   []model.IdentityRecord
	Calls      int
	Submitted  int
	StopReason model.StopReason
}

// Submitter slices the working set into minute windows and per-call batches
// and submits them strictly sequentially.
type Submitter struct {
	client  apollo.Client
	budget  *ratebudget.Budget
	retry   resilience.RetryConfig
	metrics *metrics.Recorder
	log     *zap.Logger
}

// NewSubmitter creates a submitter. A nil recorder gets a private one.
func NewSubmitter(client apollo.Client, budget *ratebudget.Budget, retry resilience.RetryConfig, rec *metrics.Recorder) *Submitter {
	if rec == nil {
		rec = metrics.New()
	}
	s := &Submitter{
		client:  client,
		budget:  budget,
		retry:   retry,
		metrics: rec,
		log:     zap.L().With(zap.String("component", "submitter")),
	}
	s.retry.ShouldRetry = retryable
	s.retry.OnRetry = resilience.RetryLogger("apollo", "bulk_match", s.metrics.Retries.Inc)
	return s
}

// Budget returns the submitter's rate budget.
func (s *Submitter) Budget() *ratebudget.Budget {
	return s.budget
}

// Run submits up to budget.PlanRunSize(len(working)) records. Running out of
// server-reported quota ends the run early without an error; the records not
// submitted stay pending.
func (s *Submitter) Run(ctx context.Context, working []model.IdentityRecord) (*Outcome, error) {
	runSize := s.budget.PlanRunSize(len(working))
	planned := working[:runSize]
	if err := validatePlan(planned, s.budget.Limits().PerCall); err != nil {
		return nil, err
	}

	limits := s.budget.Limits()
	out := &Outcome{StopReason: model.StopReasonDrained}

	s.log.Info("submitting records",
		zap.Int("working_set", len(working)),
		zap.Int("run_size", runSize),
		zap.Int("minute_limit", limits.Minute),
		zap.Int("per_call_limit", limits.PerCall),
	)

	for start := 0; start < len(planned); start += limits.Minute {
		if s.budget.Exhausted() {
			out.StopReason = model.StopReasonQuota
			break
		}
		if start > 0 {
			s.log.Info("waiting for next minute window",
				zap.Duration("pause", s.budget.MinutePause),
				zap.Int("submitted", out.Submitted),
			)
			if err := s.budget.WaitBetweenMinuteWindows(ctx); err != nil {
				return nil, eris.Wrap(err, "enrich: minute window pause")
			}
			s.metrics.MinutePauses.Inc()
		}

		group := planned[start:min(start+limits.Minute, len(planned))]
		stopped, err := s.submitGroup(ctx, group, out)
		if err != nil {
			return nil, err
		}
		if stopped {
			out.StopReason = model.StopReasonQuota
			break
		}
	}

	s.log.Info("submission finished",
		zap.Int("calls", out.Calls),
		zap.Int("submitted", out.Submitted),
		zap.Int("matched", len(out.Matched)),
		zap.Int("rejected", len(out.Rejected)),
		zap.String("stop_reason", string(out.StopReason)),
	)
	return out, nil
}

// submitGroup submits one minute window in per-call batches. It reports
// stopped when the budget ran out before the group was drained.
func (s *Submitter) submitGroup(ctx context.Context, group []model.IdentityRecord, out *Outcome) (bool, error) {
	perCall := s.budget.Limits().PerCall
	for off := 0; off < len(group); {
		if s.budget.Exhausted() {
			return true, nil
		}
		n := min(perCall, len(group)-off, s.budget.Remaining())
		batch := group[off : off+n]
		off += n
		if len(batch) == 0 {
			continue
		}

		res, err := s.call(ctx, batch)
		if err != nil {
			return false, err
		}

		out.Calls++
		out.Submitted += len(batch)
		s.budget.Consume(len(batch))
		s.budget.Observe(res.HourlyRemaining, res.DailyRemaining)
		s.metrics.Calls.Inc()
		s.metrics.Records.Add(float64(len(batch)))
		if res.DailyRemaining != ratebudget.Unknown {
			s.metrics.DailyRemaining.Set(float64(res.DailyRemaining))
		}

		for i, m := range res.Matches {
			if m != nil {
				out.Matched = append(out.Matched, m)
				s.metrics.Matched.Inc()
				continue
			}
			out.Rejected = append(out.Rejected, batch[i])
			s.metrics.Rejected.Inc()
		}

		s.log.Debug("batch settled",
			zap.Int("batch_size", len(batch)),
			zap.Int("submitted", out.Submitted),
			zap.Int("run_limit", s.budget.Limit()),
			zap.Int("hourly_left", res.HourlyRemaining),
			zap.Int("daily_left", res.DailyRemaining),
		)
	}
	return false, nil
}

func (s *Submitter) call(ctx context.Context, batch []model.IdentityRecord) (*apollo.BulkMatchResult, error) {
	req := requestFor(batch)
	res, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*apollo.BulkMatchResult, error) {
		res, err := s.client.BulkMatch(ctx, req)
		if err != nil {
			s.metrics.CallErrors.WithLabelValues(errorKind(err)).Inc()
			return nil, err
		}
		if len(res.Matches) != len(batch) {
			s.metrics.CallErrors.WithLabelValues("malformed").Inc()
			return nil, eris.Errorf("enrich: got %d matches for %d records", len(res.Matches), len(batch))
		}
		return res, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: bulk match of %d records", len(batch))
	}
	return res, nil
}

func requestFor(batch []model.IdentityRecord) apollo.BulkMatchRequest {
	req := apollo.BulkMatchRequest{Details: make([]apollo.PersonDetail, len(batch))}
	for i, r := range batch {
		req.Details[i] = apollo.DetailFromRecord(r)
	}
	return req
}

// validatePlan checks every planned record against the request limits before
// the first call. Batches cut short by the budget are subsets of these
// chunks, so they stay valid.
func validatePlan(planned []model.IdentityRecord, perCall int) error {
	for off := 0; off < len(planned); off += perCall {
		chunk := planned[off:min(off+perCall, len(planned))]
		for i, r := range chunk {
			if !r.HasUsableFields() {
				return eris.Wrapf(apollo.ErrEmptyRecord, "enrich: record %d (batch %q)", off+i, r.BatchTag)
			}
		}
		if err := apollo.Validate(requestFor(chunk)); err != nil {
			return eris.Wrapf(err, "enrich: records %d-%d", off, off+len(chunk)-1)
		}
	}
	return nil
}

// retryable reports whether a failed call may be attempted again. Status
// errors and transient transport errors are; configuration and validation
// errors are not.
func retryable(err error) bool {
	if errors.Is(err, apollo.ErrMissingAPIKey) ||
		errors.Is(err, apollo.ErrEmptyRecord) ||
		errors.Is(err, apollo.ErrInvalidRequest) {
		return false
	}
	var se *apollo.StatusError
	if errors.As(err, &se) {
		return true
	}
	return resilience.IsTransient(err)
}

func errorKind(err error) string {
	var se *apollo.StatusError
	switch {
	case errors.As(err, &se):
		return "status"
	case resilience.IsTransient(err):
		return "transient"
	default:
		return "other"
	}
}
