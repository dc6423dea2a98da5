// Package reconcile computes which harvested records still need enrichment.
package reconcile

import (
	"github.com/sells-group/roster-cli/internal/matcher"
	"github.com/sells-group/roster-cli/internal/model"
)

// Plan is the outcome of reconciling input records against persisted state.
type Plan struct {
	Total           int
	AlreadyRejected int
	AlreadyEnriched int
	Working         []model.IdentityRecord
}

// Empty reports whether nothing is left to submit.
func (p *Plan) Empty() bool {
	return len(p.Working) == 0
}

// Reconcile returns the ordered working set: every record that is neither
// structurally equal to a rejected record nor covered by an enriched result.
func Reconcile(records []model.IdentityRecord, enriched []*model.MatchResult, rejected []model.IdentityRecord) *Plan {
	plan := &Plan{Total: len(records)}

	for i := range records {
		r := &records[i]
		if isRejected(*r, rejected) {
			plan.AlreadyRejected++
			continue
		}
		if matcher.Covered(r, enriched) {
			plan.AlreadyEnriched++
			continue
		}
		plan.Working = append(plan.Working, *r)
	}

	return plan
}

// WorkingSet is a shorthand for Reconcile(...).Working.
func WorkingSet(records []model.IdentityRecord, enriched []*model.MatchResult, rejected []model.IdentityRecord) []model.IdentityRecord {
	return Reconcile(records, enriched, rejected).Working
}

func isRejected(r model.IdentityRecord, rejected []model.IdentityRecord) bool {
	for _, rej := range rejected {
		if r.Equal(rej) {
			return true
		}
	}
	return false
}
