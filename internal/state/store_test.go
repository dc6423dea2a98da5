package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/roster-cli/internal/model"
)

func TestLoadMissingFilesIsEmpty(t *testing.T) {
	t.Parallel()

	s := NewFileStore(filepath.Join(t.TempDir(), "out"), "", "")
	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Enriched)
	assert.Empty(t, st.Rejected)

	_, statErr := os.Stat(filepath.Dir(s.EnrichedPath()))
	assert.True(t, os.IsNotExist(statErr), "load must not create the output directory")
}

func TestSaveCreatesDirectoryAndRoundTrips(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "output", "enriched")
	s := NewFileStore(dir, "", "")
	ctx := context.Background()

	matched := []*model.MatchResult{{ID: "p1", FirstName: "Ada", LastName: "Lovelace"}}
	rejected := []model.IdentityRecord{{Name: "Alan Turing", OrganizationName: "Bombe"}}

	combined, err := s.Save(ctx, &State{}, matched, rejected)
	require.NoError(t, err)
	assert.Len(t, combined.Enriched, 1)
	assert.Len(t, combined.Rejected, 1)

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded.Enriched, 1)
	assert.Equal(t, "Ada", loaded.Enriched[0].FirstName)
	assert.Equal(t, rejected, loaded.Rejected)

	data, err := os.ReadFile(s.EnrichedPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {\n    \"id\": \"p1\"", "pretty-printed with two-space indent")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func TestSaveKeepsPreviousResultsVerbatim(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewFileStore(dir, "", "")
	ctx := context.Background()

	doc := `{"id":"p1","first_name":"Ada","linkedin_url":null,` +
		`"organization":{"id":"o1","name":"Acme","estimated_num_employees":42},` +
		`"employment_history":[{"organization_name":"Acme","kind":"founder","end_date":null}]}`
	require.NoError(t, os.WriteFile(s.EnrichedPath(), []byte("["+doc+"]"), 0o644))

	prev, err := s.Load(ctx)
	require.NoError(t, err)
	_, err = s.Save(ctx, prev, []*model.MatchResult{{ID: "p2", FirstName: "Grace"}}, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(s.EnrichedPath())
	require.NoError(t, err)

	var saved []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved, 2)
	assert.JSONEq(t, doc, string(saved[0]))
}

func TestSaveAppendsToPrevious(t *testing.T) {
	t.Parallel()

	s := NewFileStore(t.TempDir(), "e.json", "r.json")
	ctx := context.Background()

	first, err := s.Save(ctx, nil, []*model.MatchResult{{ID: "p1"}}, []model.IdentityRecord{{Name: "A"}})
	require.NoError(t, err)

	prev, err := s.Load(ctx)
	require.NoError(t, err)

	second, err := s.Save(ctx, prev, []*model.MatchResult{{ID: "p2"}}, nil)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(second.Enriched), len(first.Enriched))
	assert.GreaterOrEqual(t, len(second.Rejected), len(first.Rejected))
	require.Len(t, second.Enriched, 2)
	assert.Equal(t, "p1", second.Enriched[0].ID)
	assert.Equal(t, "p2", second.Enriched[1].ID)
	assert.Len(t, second.Rejected, 1)
}

func TestSaveWritesEmptyArrays(t *testing.T) {
	t.Parallel()

	s := NewFileStore(t.TempDir(), "", "")
	_, err := s.Save(context.Background(), nil, nil, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(s.RejectedPath())
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestMergeDoesNotMutatePrevious(t *testing.T) {
	t.Parallel()

	prev := &State{
		Enriched: make([]*model.MatchResult, 1, 10),
		Rejected: make([]model.IdentityRecord, 1, 10),
	}
	prev.Enriched[0] = &model.MatchResult{ID: "old"}

	out := Merge(prev, []*model.MatchResult{{ID: "new"}}, []model.IdentityRecord{{Name: "B"}})
	assert.Len(t, prev.Enriched, 1)
	assert.Len(t, prev.Rejected, 1)
	assert.Len(t, out.Enriched, 2)
	assert.Len(t, out.Rejected, 2)
}

func TestLoadCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := NewFileStore(dir, "", "")
	require.NoError(t, os.WriteFile(s.EnrichedPath(), []byte("{not json"), 0o644))

	_, err := s.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestLoadCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFileStore(t.TempDir(), "", "").Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLockIsExclusive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := NewFileStore(dir, "", "")
	b := NewFileStore(dir, "", "")

	require.NoError(t, a.Lock())
	assert.ErrorIs(t, b.Lock(), ErrLocked)

	require.NoError(t, a.Unlock())
	require.NoError(t, b.Lock())
	require.NoError(t, b.Unlock())
}
