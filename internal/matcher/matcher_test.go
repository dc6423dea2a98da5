package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/roster-cli/internal/model"
)

func founder() *model.IdentityRecord {
	return &model.IdentityRecord{
		Name:             "Grace Brewster Hopper",
		OrganizationName: "Cobol Labs",
		Social: model.SocialLinks{
			ProfessionalNetwork: "https://www.linkedin.com/in/grace",
			Microblog:           "https://x.com/grace",
			CodeHosting:         "https://github.com/grace",
		},
		BatchTag: "W24",
	}
}

func TestIsMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		record    *model.IdentityRecord
		candidate *model.MatchResult
		want      bool
	}{
		{
			name:      "nil record",
			record:    nil,
			candidate: &model.MatchResult{FirstName: "Grace"},
			want:      false,
		},
		{
			name:      "nil candidate",
			record:    founder(),
			candidate: nil,
			want:      false,
		},
		{
			name:      "first and last name",
			record:    founder(),
			candidate: &model.MatchResult{FirstName: "Grace", LastName: "Hopper"},
			want:      true,
		},
		{
			name:      "first name only",
			record:    founder(),
			candidate: &model.MatchResult{FirstName: "Grace", LastName: "Murray"},
			want:      false,
		},
		{
			name:      "same fragment counted for first and last",
			record:    &model.IdentityRecord{Name: "Li Li"},
			candidate: &model.MatchResult{FirstName: "Li", LastName: "Li"},
			want:      true,
		},
		{
			name:      "professional network url alone",
			record:    founder(),
			candidate: &model.MatchResult{LinkedInURL: "https://www.linkedin.com/in/grace"},
			want:      true,
		},
		{
			name:      "microblog url alone",
			record:    founder(),
			candidate: &model.MatchResult{TwitterURL: "https://x.com/grace"},
			want:      true,
		},
		{
			name:      "code hosting url alone",
			record:    founder(),
			candidate: &model.MatchResult{GitHubURL: "https://github.com/grace"},
			want:      true,
		},
		{
			name:      "absent urls never match",
			record:    &model.IdentityRecord{Name: "Alan Turing", OrganizationName: "Bletchley"},
			candidate: &model.MatchResult{FirstName: "Someone", LastName: "Else"},
			want:      false,
		},
		{
			name:   "first name plus organization",
			record: founder(),
			candidate: &model.MatchResult{
				FirstName:    "Grace",
				Organization: &model.Organization{Name: "Cobol Labs"},
			},
			want: true,
		},
		{
			name:   "first name plus employment history substring",
			record: founder(),
			candidate: &model.MatchResult{
				FirstName:    "Grace",
				Organization: &model.Organization{Name: "Navy"},
				EmploymentHistory: []model.EmploymentHistory{
					{OrganizationName: "Harvard"},
					{OrganizationName: "Cobol Labs Inc."},
				},
			},
			want: true,
		},
		{
			name:   "organization alone is not enough",
			record: founder(),
			candidate: &model.MatchResult{
				Organization: &model.Organization{Name: "Cobol Labs"},
				EmploymentHistory: []model.EmploymentHistory{
					{OrganizationName: "Cobol Labs"},
				},
			},
			want: false,
		},
		{
			name:   "empty organization never scores",
			record: &model.IdentityRecord{Name: "Grace"},
			candidate: &model.MatchResult{
				FirstName:         "Grace",
				EmploymentHistory: []model.EmploymentHistory{{OrganizationName: "Anything"}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsMatch(tt.record, tt.candidate))
		})
	}
}

func TestIsMatchDeterministic(t *testing.T) {
	t.Parallel()

	r := founder()
	c := &model.MatchResult{FirstName: "Grace", Organization: &model.Organization{Name: "Cobol Labs"}}

	first := IsMatch(r, c)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, IsMatch(r, c))
	}
}

func TestCovered(t *testing.T) {
	t.Parallel()

	r := founder()
	results := []*model.MatchResult{
		nil,
		{FirstName: "Someone", LastName: "Else"},
		{GitHubURL: "https://github.com/grace"},
	}
	assert.True(t, Covered(r, results))
	assert.False(t, Covered(r, results[:2]))
	assert.False(t, Covered(r, nil))
}
