// Package directory harvests organization member rosters from public
// profile pages and flattens them into identity records.
package directory

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
)

// DefaultRosterFile is the harvest cache file name under the output dir.
const DefaultRosterFile = "roster.json"

// Organization is one directory entry to harvest.
type Organization struct {
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url"`
	BatchTag   string `json:"batch"`
}

// Member is one person listed on an organization profile.
type Member struct {
	Name   string            `json:"name"`
	Social model.SocialLinks `json:"social"`
}

// OrganizationBatch groups the members harvested from one profile page.
type OrganizationBatch struct {
	OrganizationName string   `json:"organization_name"`
	ProfileURL       string   `json:"profile_url"`
	BatchTag         string   `json:"batch"`
	Members          []Member `json:"members"`
}

// Roster is the harvest output in organization order.
type Roster []OrganizationBatch

// Flatten turns a roster into identity records, preserving order.
func Flatten(roster Roster) []model.IdentityRecord {
	var out []model.IdentityRecord
	for _, org := range roster {
		for _, m := range org.Members {
			out = append(out, model.IdentityRecord{
				Name:             m.Name,
				OrganizationName: org.OrganizationName,
				Social:           m.Social,
				BatchTag:         org.BatchTag,
			})
		}
	}
	return out
}

// LoadRoster reads a roster file. ok is false when the file does not exist.
func LoadRoster(path string) (roster Roster, ok bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "directory: read %s", path)
	}
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, false, eris.Wrapf(err, "directory: decode %s", path)
	}
	return roster, true, nil
}

// SaveRoster writes roster as pretty-printed JSON, creating parent dirs.
func SaveRoster(path string, roster Roster) error {
	if roster == nil {
		roster = Roster{}
	}
	data, err := json.MarshalIndent(roster, "", "  ")
	if err != nil {
		return eris.Wrap(err, "directory: marshal roster")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "directory: create %s", filepath.Dir(path))
	}
	return eris.Wrapf(os.WriteFile(path, append(data, '\n'), 0o644), "directory: write %s", path)
}

// LoadOrganizations reads the JSON list of organizations to harvest.
func LoadOrganizations(path string) ([]Organization, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "directory: read %s", path)
	}
	var orgs []Organization
	if err := json.Unmarshal(data, &orgs); err != nil {
		return nil, eris.Wrapf(err, "directory: decode %s", path)
	}
	return orgs, nil
}
