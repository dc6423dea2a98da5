package directory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
)

func sampleRoster() Roster {
	return Roster{
		{
			OrganizationName: "Engines",
			BatchTag:         "W24",
			Members: []Member{
				{Name: "Ada Lovelace", Social: model.SocialLinks{ProfessionalNetwork: "https://linkedin.com/in/ada"}},
				{Name: "Charles Babbage"},
			},
		},
		{OrganizationName: "Empty", BatchTag: "W24"},
		{
			OrganizationName: "Bombe",
			BatchTag:         "S23",
			Members:          []Member{{Name: "Alan Turing"}},
		},
	}
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	records := Flatten(sampleRoster())
	require.Len(t, records, 3)
	assert.Equal(t, model.IdentityRecord{
		Name:             "Ada Lovelace",
		OrganizationName: "Engines",
		Social:           model.SocialLinks{ProfessionalNetwork: "https://linkedin.com/in/ada"},
		BatchTag:         "W24",
	}, records[0])
	assert.Equal(t, "Charles Babbage", records[1].Name)
	assert.Equal(t, "Bombe", records[2].OrganizationName)
	assert.Equal(t, "S23", records[2].BatchTag)
}

func TestRosterSaveLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", DefaultRosterFile)

	_, ok, err := LoadRoster(path)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, SaveRoster(path, sampleRoster()))

	loaded, ok, err := LoadRoster(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Flatten(sampleRoster()), Flatten(loaded))
}

func TestLoadOrganizations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "orgs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "Engines", "profile_url": "/companies/engines", "batch": "W24"}
	]`), 0o644))

	orgs, err := LoadOrganizations(path)
	require.NoError(t, err)
	assert.Equal(t, []Organization{{Name: "Engines", ProfileURL: "/companies/engines", BatchTag: "W24"}}, orgs)

	_, err = LoadOrganizations(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}
