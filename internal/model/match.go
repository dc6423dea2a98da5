package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// EmploymentHistory is one entry of a matched person's work history.
type EmploymentHistory struct {
	ID               string `json:"id,omitempty"`
	OrganizationName string `json:"organization_name"`
	Title            string `json:"title,omitempty"`
	Current          bool   `json:"current"`
	StartDate        string `json:"start_date,omitempty"`
	EndDate          string `json:"end_date,omitempty"`
}

// Organization is the employer object attached to a match.
type Organization struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	WebsiteURL    string `json:"website_url,omitempty"`
	LinkedInURL   string `json:"linkedin_url,omitempty"`
	PrimaryDomain string `json:"primary_domain,omitempty"`
}

// MatchResult is the enriched profile returned by the identity-resolution
// service. The typed fields are a read-only view for the matcher and the
// exporters; a decoded result marshals back to the exact document it was
// decoded from, nested objects and nulls included. Extra holds the
// top-level keys the view does not cover.
type MatchResult struct {
	ID                string              `json:"id"`
	FirstName         string              `json:"first_name"`
	LastName          string              `json:"last_name"`
	Name              string              `json:"name"`
	Title             string              `json:"title,omitempty"`
	Email             string              `json:"email,omitempty"`
	LinkedInURL       string              `json:"linkedin_url"`
	TwitterURL        string              `json:"twitter_url"`
	GitHubURL         string              `json:"github_url"`
	Organization      *Organization       `json:"organization,omitempty"`
	EmploymentHistory []EmploymentHistory `json:"employment_history"`

	Extra map[string]json.RawMessage `json:"-"`

	raw json.RawMessage
}

// matchFields lists the JSON keys owned by the typed fields of MatchResult.
var matchFields = map[string]struct{}{
	"id": {}, "first_name": {}, "last_name": {}, "name": {}, "title": {},
	"email": {}, "linkedin_url": {}, "twitter_url": {}, "github_url": {},
	"organization": {}, "employment_history": {},
}

// matchAlias drops the custom marshalers to avoid recursion.
type matchAlias MatchResult

// UnmarshalJSON decodes the typed fields and keeps the rest in Extra.
func (m *MatchResult) UnmarshalJSON(data []byte) error {
	var a matchAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return eris.Wrap(err, "model: unmarshal match")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: unmarshal match extras")
	}
	for k := range matchFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		a.Extra = raw
	}
	a.raw = append(json.RawMessage(nil), data...)
	*m = MatchResult(a)
	return nil
}

// MarshalJSON returns the decoded document unchanged. Results built in
// code are written from the typed fields merged with Extra.
func (m MatchResult) MarshalJSON() ([]byte, error) {
	if m.raw != nil {
		return m.raw, nil
	}
	typed, err := json.Marshal(matchAlias(m))
	if err != nil {
		return nil, eris.Wrap(err, "model: marshal match")
	}
	if len(m.Extra) == 0 {
		return typed, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(typed, &merged); err != nil {
		return nil, eris.Wrap(err, "model: remarshal match")
	}
	for k, v := range m.Extra {
		if _, owned := matchFields[k]; owned {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// OrganizationName returns the current organization name, or "".
func (m *MatchResult) OrganizationName() string {
	if m == nil || m.Organization == nil {
		return ""
	}
	return m.Organization.Name
}
