// Package matcher decides whether a previously returned enrichment result
// already covers a harvested identity record.
package matcher

import (
	"strings"

	"github.com/sells-group/roster-cli/internal/model"
)

// Scoring weights.
const (
	Threshold       = 2
	NameFragmentHit = 1
	SocialURLHit    = 2
	OrganizationHit = 1
)

// IsMatch reports whether candidate should be treated as the enrichment of
// record. Scoring is additive and stops as soon as Threshold is reached:
// name fragments first, then social URLs, then organization.
func IsMatch(record *model.IdentityRecord, candidate *model.MatchResult) bool {
	if record == nil || candidate == nil {
		return false
	}

	score := nameScore(record, candidate)
	if score >= Threshold {
		return true
	}

	score += socialScore(record, candidate)
	if score >= Threshold {
		return true
	}

	score += organizationScore(record, candidate)
	return score >= Threshold
}

// Covered reports whether any of results matches record.
func Covered(record *model.IdentityRecord, results []*model.MatchResult) bool {
	for _, r := range results {
		if IsMatch(record, r) {
			return true
		}
	}
	return false
}

func nameScore(record *model.IdentityRecord, candidate *model.MatchResult) int {
	score := 0
	for _, fragment := range strings.Fields(record.Name) {
		if fragment == candidate.FirstName {
			score += NameFragmentHit
		}
		if fragment == candidate.LastName {
			score += NameFragmentHit
		}
	}
	return score
}

// socialScore compares URLs verbatim. An absent URL never matches.
func socialScore(record *model.IdentityRecord, candidate *model.MatchResult) int {
	score := 0
	if sameURL(record.Social.ProfessionalNetwork, candidate.LinkedInURL) {
		score += SocialURLHit
	}
	if sameURL(record.Social.Microblog, candidate.TwitterURL) {
		score += SocialURLHit
	}
	if sameURL(record.Social.CodeHosting, candidate.GitHubURL) {
		score += SocialURLHit
	}
	return score
}

func sameURL(a, b string) bool {
	return a != "" && a == b
}

func organizationScore(record *model.IdentityRecord, candidate *model.MatchResult) int {
	if record.OrganizationName == "" {
		return 0
	}
	if candidate.Organization != nil && record.OrganizationName == candidate.Organization.Name {
		return OrganizationHit
	}
	for _, job := range candidate.EmploymentHistory {
		if strings.Contains(job.OrganizationName, record.OrganizationName) {
			return OrganizationHit
		}
	}
	return 0
}
