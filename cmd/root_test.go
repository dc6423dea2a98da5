package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/config"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/ratebudget"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"harvest", "enrich", "status", "export", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "roster-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "20", flag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	require.NotNil(t, enrichCmd.Flags().Lookup("roster"))
	require.NotNil(t, enrichCmd.Flags().Lookup("json"))
	require.NotNil(t, harvestCmd.Flags().Lookup("orgs"))
	require.NotNil(t, harvestCmd.Flags().Lookup("refresh"))

	set := exportCmd.Flags().Lookup("set")
	require.NotNil(t, set)
	assert.Equal(t, "enriched", set.DefValue)
}

func TestPrintSummaryTable(t *testing.T) {
	var buf bytes.Buffer
	s := &model.RunSummary{
		NewlyEnriched:  3,
		StillPending:   17,
		TotalEnriched:  3,
		Calls:          1,
		DailyRemaining: ratebudget.Unknown,
		StopReason:     model.StopReasonQuota,
	}
	require.NoError(t, printSummary(&buf, s, false))

	out := buf.String()
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "Still pending")
	assert.Contains(t, out, "17")
	assert.Contains(t, out, "unknown")
}

func TestPrintSummaryNothingToDo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, &model.RunSummary{NothingToDo: true, TotalEnriched: 4, TotalRejected: 2}, false))
	assert.Equal(t, "Nothing to do: every member is already enriched (4) or rejected (2).\n", buf.String())
}

func TestPrintSummaryJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, &model.RunSummary{NewlyEnriched: 2, DailyRemaining: 580}, true))
	assert.Contains(t, buf.String(), `"newly_enriched": 2`)
	assert.Contains(t, buf.String(), `"daily_remaining": 580`)
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, nil)
	assert.Contains(t, out, "only")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestWriteEnrichedCSV(t *testing.T) {
	var buf bytes.Buffer
	results := []*model.MatchResult{
		{
			ID:           "p1",
			Name:         "Ada Lovelace",
			FirstName:    "Ada",
			LastName:     "Lovelace",
			Email:        "ada@engines.test",
			LinkedInURL:  "https://linkedin.com/in/ada",
			Organization: &model.Organization{Name: "Engines, Inc.", PrimaryDomain: "engines.test"},
		},
		nil,
		{ID: "p2", FirstName: "Alan"},
	}
	require.NoError(t, writeEnrichedCSV(&buf, results))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, enrichedHeader, rows[0])
	assert.Equal(t, "Engines, Inc.", rows[1][6])
	assert.Equal(t, "engines.test", rows[1][7])
	assert.Equal(t, "", rows[2][6])
}

func TestWriteRejectedCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRejectedCSV(&buf, []model.IdentityRecord{
		{Name: "Alan Turing", OrganizationName: "Bombe", BatchTag: "S23", Social: model.SocialLinks{CodeHosting: "https://github.com/alan"}},
	}))

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		rejectedHeader,
		{"S23", "Bombe", "Alan Turing", "", "", "https://github.com/alan"},
	}, rows)
}

func TestLazyLedgerOpensOnFirstRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "roster.db")
	prev := cfg
	cfg = &config.Config{Store: config.StoreConfig{Path: dbPath}}
	t.Cleanup(func() { cfg = prev })

	l := &lazyLedger{}
	t.Cleanup(func() { l.Close() }) //nolint:errcheck

	_, err := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err))
	assert.Error(t, l.FinishRun(context.Background(), "x", model.RunStatusComplete, nil, ""))

	run, err := l.CreateRun(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, l.FinishRun(context.Background(), run.ID, model.RunStatusComplete, &model.RunSummary{NewlyEnriched: 7}, ""))

	got, err := l.st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 7, got.Summary.NewlyEnriched)
}

func TestFormatRunsList(t *testing.T) {
	var buf bytes.Buffer
	now := time.Now()
	formatRunsList(&buf, []model.Run{{
		ID:        "0123456789abcdef",
		Status:    model.RunStatusPartial,
		Pending:   20,
		Summary:   &model.RunSummary{NewlyEnriched: 3, StillPending: 17},
		CreatedAt: now.Add(-2 * time.Minute),
		UpdatedAt: now,
	}})
	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "2m0s")
}
