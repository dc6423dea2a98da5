package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/state"
	"github.com/sells-group/roster-cli/internal/store"
)

// initStore opens and migrates the SQLite ledger at cfg.Store.Path.
func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	if cfg.Store.Path == "" {
		return nil, eris.New("store.path is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "create %s", filepath.Dir(cfg.Store.Path))
	}
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func initFileStore() *state.FileStore {
	return state.NewFileStore(cfg.Output.Dir, cfg.Output.EnrichedFile, cfg.Output.RejectedFile)
}

// lazyLedger opens the ledger on the first recorded run so that a run with
// nothing to do touches no files.
type lazyLedger struct {
	st *store.SQLiteStore
}

func (l *lazyLedger) CreateRun(ctx context.Context, pending int) (*model.Run, error) {
	if l.st == nil {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		l.st = st
	}
	return l.st.CreateRun(ctx, pending)
}

func (l *lazyLedger) FinishRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary, errMsg string) error {
	if l.st == nil {
		return eris.New("run ledger is not open")
	}
	return l.st.FinishRun(ctx, runID, status, summary, errMsg)
}

func (l *lazyLedger) Close() error {
	if l.st == nil {
		return nil
	}
	return l.st.Close()
}
