package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/directory"
	"github.com/sells-group/roster-cli/internal/enrich"
	"github.com/sells-group/roster-cli/internal/metrics"
	"github.com/sells-group/roster-cli/internal/model"
	"github.com/sells-group/roster-cli/internal/ratebudget"
	"github.com/sells-group/roster-cli/internal/resilience"
	"github.com/sells-group/roster-cli/pkg/apollo"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich pending roster members through the Apollo bulk match API",
	Long:  "Reconciles the harvested roster against the enriched and rejected sets, submits what is still pending within the hourly quota, and persists the results.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("enrich"); err != nil {
			return err
		}

		rosterPath, _ := cmd.Flags().GetString("roster")
		if rosterPath == "" {
			rosterPath = cfg.Output.RosterFile
		}
		roster, ok, err := directory.LoadRoster(rosterPath)
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("roster %s not found; run harvest first", rosterPath)
		}
		records := directory.Flatten(roster)

		client := apollo.NewClient(cfg.Apollo.Key,
			apollo.WithBaseURL(cfg.Apollo.BaseURL),
			apollo.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Apollo.TimeoutSecs) * time.Second}),
		)

		budget := ratebudget.New(ratebudget.Limits{
			Daily:   cfg.Apollo.Limits.Daily,
			Hourly:  cfg.Apollo.Limits.Hourly,
			Minute:  cfg.Apollo.Limits.Minute,
			PerCall: cfg.Apollo.Limits.PerCall,
		})
		if cfg.Apollo.MinutePauseSecs > 0 {
			budget.MinutePause = time.Duration(cfg.Apollo.MinutePauseSecs) * time.Second
		}

		rec := metrics.New()
		retry := resilience.FromRetryConfig(cfg.Apollo.MaxAttempts, cfg.Apollo.InitialBackoff, cfg.Apollo.MaxBackoff)
		sub := enrich.NewSubmitter(client, budget, retry, rec)

		var opts []enrich.PipelineOption
		if cfg.Store.Path != "" {
			ledger := &lazyLedger{}
			defer ledger.Close() //nolint:errcheck
			opts = append(opts, enrich.WithLedger(ledger))
		}

		pipeline := enrich.NewPipeline(initFileStore(), sub, opts...)
		summary, runErr := pipeline.Run(ctx, records)

		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			zap.L().Warn("failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
		if runErr != nil {
			return runErr
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		return printSummary(os.Stdout, summary, asJSON)
	},
}

func init() {
	enrichCmd.Flags().String("roster", "", "roster file to enrich (default output.roster_file)")
	enrichCmd.Flags().Bool("json", false, "print the run summary as JSON")
	rootCmd.AddCommand(enrichCmd)
}

func printSummary(w io.Writer, s *model.RunSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	if s.NothingToDo {
		_, err := fmt.Fprintf(w, "Nothing to do: every member is already enriched (%d) or rejected (%d).\n",
			s.TotalEnriched, s.TotalRejected)
		return err
	}

	_, err := fmt.Fprintln(w, keyValueTable(summaryRows(s)))
	return err
}

func summaryRows(s *model.RunSummary) [][]string {
	return [][]string{
		{"Status", string(s.Status())},
		{"Newly enriched", strconv.Itoa(s.NewlyEnriched)},
		{"Newly rejected", strconv.Itoa(s.NewlyRejected)},
		{"Still pending", strconv.Itoa(s.StillPending)},
		{"Total enriched", strconv.Itoa(s.TotalEnriched)},
		{"Total rejected", strconv.Itoa(s.TotalRejected)},
		{"Calls", strconv.Itoa(s.Calls)},
		{"Daily requests left", remainingLabel(s.DailyRemaining)},
		{"Duration", (time.Duration(s.DurationMs) * time.Millisecond).String()},
	}
}

func remainingLabel(n int) string {
	if n == ratebudget.Unknown {
		return "unknown"
	}
	return strconv.Itoa(n)
}
