// Package apollo is a client for the Apollo.io people bulk match API.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/ratebudget"
	"github.com/sells-group/roster-cli/internal/resilience"
)

const (
	defaultBaseURL = "https://api.apollo.io"
	bulkMatchPath  = "/api/v1/people/bulk_match"

	headerDailyLeft  = "x-24-hour-requests-left"
	headerHourlyLeft = "x-hourly-requests-left"
	headerMinuteLeft = "x-minute-requests-left"

	statusSuccess = "success"
)

var (
	// ErrMissingAPIKey is returned when the client has no credential.
	ErrMissingAPIKey = eris.New("apollo: missing API key (set APOLLO_IO_API_KEY or apollo.key)")
	// ErrEmptyRecord is returned for an empty batch or a detail with no usable field.
	ErrEmptyRecord = eris.New("apollo: batch contains no usable record")
)

// StatusError is returned when the API answers with a non-success status.
type StatusError struct {
	HTTPStatus int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("apollo: bulk_match failed (http %d) %s: %s", e.HTTPStatus, e.Code, e.Message)
}

// Client matches people against the Apollo database.
type Client interface {
	BulkMatch(ctx context.Context, req BulkMatchRequest) (*BulkMatchResult, error)
}

// BulkMatchRequest is the request body for POST /api/v1/people/bulk_match.
type BulkMatchRequest struct {
	RevealPersonalEmails bool           `json:"reveal_personal_emails,omitempty"`
	RevealPhoneNumber    bool           `json:"reveal_phone_number,omitempty"`
	Details              []PersonDetail `json:"details"`
}

// PersonDetail is one person to match.
type PersonDetail struct {
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Domain           string `json:"domain,omitempty"`
	LinkedInURL      string `json:"linkedin_url,omitempty"`
}

func (d PersonDetail) empty() bool {
	return d == PersonDetail{}
}

// DetailFromRecord builds the match payload for a harvested record. Only the
// name, organization name and professional-network URL are sent.
func DetailFromRecord(r model.IdentityRecord) PersonDetail {
	return PersonDetail{
		Name:             r.Name,
		OrganizationName: r.OrganizationName,
		LinkedInURL:      r.Social.ProfessionalNetwork,
	}
}

// BulkMatchResult is a successful bulk match. Matches is positionally aligned
// with the request details; nil entries mean no match. Remaining counters are
// ratebudget.Unknown when the API did not report them.
type BulkMatchResult struct {
	Matches         []*model.MatchResult
	Requested       int
	Enriched        int
	CreditsConsumed float64
	DailyRemaining  int
	HourlyRemaining int
	MinuteRemaining int
}

type bulkMatchResponse struct {
	Status                    string               `json:"status"`
	ErrorCode                 *string              `json:"error_code"`
	ErrorMessage              *string              `json:"error_message"`
	TotalRequestedEnrichments int                  `json:"total_requested_enrichments"`
	UniqueEnrichedRecords     int                  `json:"unique_enriched_records"`
	MissingRecords            int                  `json:"missing_records"`
	CreditsConsumed           float64              `json:"credits_consumed"`
	Matches                   []*model.MatchResult `json:"matches"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an Apollo API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Validate checks a request before it is sent.
func Validate(req BulkMatchRequest) error {
	if len(req.Details) == 0 {
		return ErrEmptyRecord
	}
	for i, d := range req.Details {
		if d.empty() {
			return eris.Wrapf(ErrEmptyRecord, "apollo: detail %d", i)
		}
	}
	return validateSchema(req)
}

func (c *httpClient) BulkMatch(ctx context.Context, req BulkMatchRequest) (*BulkMatchResult, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if err := Validate(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+bulkMatchPath, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: read response")
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("apollo: unexpected status %d: %s", resp.StatusCode, string(respBody)),
			resp.StatusCode,
		)
	}

	var parsed bulkMatchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{HTTPStatus: resp.StatusCode, Code: http.StatusText(resp.StatusCode), Message: string(respBody)}
		}
		return nil, eris.Wrap(err, "apollo: unmarshal response")
	}

	if resp.StatusCode != http.StatusOK || parsed.Status != statusSuccess {
		return nil, &StatusError{
			HTTPStatus: resp.StatusCode,
			Code:       deref(parsed.ErrorCode, parsed.Status),
			Message:    deref(parsed.ErrorMessage, string(respBody)),
		}
	}

	if len(parsed.Matches) != len(req.Details) {
		return nil, eris.Errorf("apollo: got %d matches for %d details", len(parsed.Matches), len(req.Details))
	}

	result := &BulkMatchResult{
		Matches:         parsed.Matches,
		Requested:       parsed.TotalRequestedEnrichments,
		Enriched:        parsed.UniqueEnrichedRecords,
		CreditsConsumed: parsed.CreditsConsumed,
		DailyRemaining:  ratebudget.ParseRemaining(resp.Header.Get(headerDailyLeft)),
		HourlyRemaining: ratebudget.ParseRemaining(resp.Header.Get(headerHourlyLeft)),
		MinuteRemaining: ratebudget.ParseRemaining(resp.Header.Get(headerMinuteLeft)),
	}

	zap.L().Debug("apollo: bulk match",
		zap.Int("enriched", result.Enriched),
		zap.Int("requested", result.Requested),
		zap.Float64("credits_consumed", result.CreditsConsumed),
		zap.Int("daily_left", result.DailyRemaining),
		zap.Int("hourly_left", result.HourlyRemaining),
		zap.Int("minute_left", result.MinuteRemaining),
	)

	return result, nil
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
