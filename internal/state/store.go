// Package state persists the enriched and rejected sets between runs.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/model"
)

const (
	DefaultEnrichedFile = "enriched-members.json"
	DefaultRejectedFile = "rejected-members.json"

	lockFile = ".roster.lock"
)

// ErrLocked is returned when another run holds the output directory.
var ErrLocked = eris.New("state: output directory is locked by another run")

// State is the durable result of every run to date.
type State struct {
	Enriched []*model.MatchResult   `json:"enriched"`
	Rejected []model.IdentityRecord `json:"rejected"`
}

// Merge appends this run's settled records to prev without mutating it.
func Merge(prev *State, matched []*model.MatchResult, rejected []model.IdentityRecord) *State {
	if prev == nil {
		prev = &State{}
	}
	out := &State{
		Enriched: make([]*model.MatchResult, 0, len(prev.Enriched)+len(matched)),
		Rejected: make([]model.IdentityRecord, 0, len(prev.Rejected)+len(rejected)),
	}
	out.Enriched = append(append(out.Enriched, prev.Enriched...), matched...)
	out.Rejected = append(append(out.Rejected, prev.Rejected...), rejected...)
	return out
}

// FileStore keeps the two sets as pretty-printed JSON arrays in one directory.
type FileStore struct {
	dir          string
	enrichedPath string
	rejectedPath string
	lock         *flock.Flock
}

// NewFileStore creates a store rooted at dir. Empty file names fall back to
// the defaults. Nothing touches the disk until Lock or Save.
func NewFileStore(dir, enrichedFile, rejectedFile string) *FileStore {
	if enrichedFile == "" {
		enrichedFile = DefaultEnrichedFile
	}
	if rejectedFile == "" {
		rejectedFile = DefaultRejectedFile
	}
	return &FileStore{
		dir:          dir,
		enrichedPath: filepath.Join(dir, enrichedFile),
		rejectedPath: filepath.Join(dir, rejectedFile),
		lock:         flock.New(filepath.Join(dir, lockFile)),
	}
}

// EnrichedPath returns the enriched set file path.
func (s *FileStore) EnrichedPath() string { return s.enrichedPath }

// RejectedPath returns the rejected set file path.
func (s *FileStore) RejectedPath() string { return s.rejectedPath }

// Load reads both sets. Missing files are empty sets.
func (s *FileStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := &State{}
	if err := readJSON(s.enrichedPath, &st.Enriched); err != nil {
		return nil, err
	}
	if err := readJSON(s.rejectedPath, &st.Rejected); err != nil {
		return nil, err
	}

	zap.L().Debug("state: loaded",
		zap.String("dir", s.dir),
		zap.Int("enriched", len(st.Enriched)),
		zap.Int("rejected", len(st.Rejected)),
	)
	return st, nil
}

// Save writes prev ++ matched and prev ++ rejected, replacing both files,
// and returns the combined state.
func (s *FileStore) Save(ctx context.Context, prev *State, matched []*model.MatchResult, rejected []model.IdentityRecord) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	combined := Merge(prev, matched, rejected)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "state: create %s", s.dir)
	}
	if err := writeJSON(s.enrichedPath, combined.Enriched); err != nil {
		return nil, err
	}
	if err := writeJSON(s.rejectedPath, combined.Rejected); err != nil {
		return nil, err
	}

	zap.L().Info("state: saved",
		zap.String("enriched_path", s.enrichedPath),
		zap.Int("enriched", len(combined.Enriched)),
		zap.String("rejected_path", s.rejectedPath),
		zap.Int("rejected", len(combined.Rejected)),
	)
	return combined, nil
}

// Lock takes the advisory lock on the output directory.
func (s *FileStore) Lock() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return eris.Wrapf(err, "state: create %s", s.dir)
	}
	ok, err := s.lock.TryLock()
	if err != nil {
		return eris.Wrap(err, "state: acquire lock")
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the advisory lock.
func (s *FileStore) Unlock() error {
	return eris.Wrap(s.lock.Unlock(), "state: release lock")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "state: read %s", path)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "state: decode %s", path)
	}
	return nil
}

// writeJSON replaces path atomically via a temp file in the same directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "state: encode %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "state: create temp for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "state: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "state: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "state: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "state: replace %s", path)
	}
	return nil
}
