package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/ratebudget"
	"github.com/sells-group/roster-cli/internal/resilience"
	"github.com/sells-group/roster-cli/pkg/apollo"
)

// fakeClient answers bulk match calls from a script. By default a record
// whose name starts with "match" is matched and everything else is not.
type fakeClient struct {
	mu      sync.Mutex
	batches [][]apollo.PersonDetail
	respond func(call int, req apollo.BulkMatchRequest) (*apollo.BulkMatchResult, error)
}

func (f *fakeClient) BulkMatch(_ context.Context, req apollo.BulkMatchRequest) (*apollo.BulkMatchResult, error) {
	f.mu.Lock()
	call := len(f.batches)
	f.batches = append(f.batches, req.Details)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(call, req)
	}
	return matchByName(req), nil
}

func (f *fakeClient) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	sizes := make([]int, len(f.batches))
	for i, b := range f.batches {
		sizes[i] = len(b)
	}
	return sizes
}

func (f *fakeClient) submitted() int {
	n := 0
	for _, s := range f.batchSizes() {
		n += s
	}
	return n
}

func matchByName(req apollo.BulkMatchRequest) *apollo.BulkMatchResult {
	res := &apollo.BulkMatchResult{
		Matches:         make([]*model.MatchResult, len(req.Details)),
		DailyRemaining:  ratebudget.Unknown,
		HourlyRemaining: ratebudget.Unknown,
		MinuteRemaining: ratebudget.Unknown,
	}
	for i, d := range req.Details {
		if strings.HasPrefix(d.Name, "match") {
			first, last, _ := strings.Cut(d.Name, " ")
			res.Matches[i] = &model.MatchResult{
				ID:           "id-" + d.Name,
				FirstName:    first,
				LastName:     last,
				Name:         d.Name,
				Organization: &model.Organization{Name: d.OrganizationName},
			}
		}
	}
	return res
}

// records builds n pending records named "<prefix> <i>".
func records(prefix string, n int) []model.IdentityRecord {
	out := make([]model.IdentityRecord, n)
	for i := range out {
		out[i] = model.IdentityRecord{
			Name:             fmt.Sprintf("%s %d", prefix, i),
			OrganizationName: fmt.Sprintf("Org %d", i),
			BatchTag:         "W24",
		}
	}
	return out
}

// pauseCounter replaces the minute pause with a counter.
type pauseCounter struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (p *pauseCounter) sleep(_ context.Context, d time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses = append(p.pauses, d)
	return nil
}

func (p *pauseCounter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pauses)
}

func newBudget(hourly, minute, perCall int, pauses *pauseCounter) *ratebudget.Budget {
	b := ratebudget.New(ratebudget.Limits{Daily: 600, Hourly: hourly, Minute: minute, PerCall: perCall})
	b.Sleep = pauses.sleep
	return b
}

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}
