package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roster-cli/internal/directory"
	"github.com/sells-group/roster-cli/internal/resilience"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Collect member rosters from organization profile pages",
	Long:  "Fetches each organization's profile page, parses its member cards and writes the roster file that enrich consumes. An existing roster is reused unless --refresh is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("harvest"); err != nil {
			return err
		}
		log := zap.L().With(zap.String("command", "harvest"))

		refresh, _ := cmd.Flags().GetBool("refresh")
		if !refresh {
			existing, ok, err := directory.LoadRoster(cfg.Output.RosterFile)
			if err != nil {
				return err
			}
			if ok {
				log.Info("roster already present, reusing it", zap.String("path", cfg.Output.RosterFile))
				return printHarvest(existing)
			}
		}

		orgsPath, _ := cmd.Flags().GetString("orgs")
		orgs, err := directory.LoadOrganizations(orgsPath)
		if err != nil {
			return err
		}

		opts := directory.Options{
			BaseURL:       cfg.Directory.BaseURL,
			Concurrency:   cfg.Directory.Concurrency,
			RatePerSecond: cfg.Directory.RatePerSecond,
			Timeout:       time.Duration(cfg.Directory.TimeoutSecs) * time.Second,
			Retry:         resilience.FromRetryConfig(cfg.Directory.MaxAttempts, 0, 0),
			CacheTTL:      time.Duration(cfg.Directory.CacheTTLHours) * time.Hour,
		}
		opts.Retry.OnRetry = resilience.RetryLogger("directory", "get_profile", nil)

		noCache, _ := cmd.Flags().GetBool("no-cache")
		if !noCache && cfg.Store.Path != "" {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if n, err := st.DeleteExpiredPages(ctx); err != nil {
				log.Warn("failed to prune page cache", zap.Error(err))
			} else if n > 0 {
				log.Debug("pruned page cache", zap.Int("pages", n))
			}
			opts.Cache = st
		}

		roster, err := directory.NewCollector(opts).Collect(ctx, orgs)
		if err != nil {
			return err
		}
		if err := directory.SaveRoster(cfg.Output.RosterFile, roster); err != nil {
			return err
		}
		return printHarvest(roster)
	},
}

func init() {
	harvestCmd.Flags().String("orgs", "organizations.json", "JSON list of organizations to harvest")
	harvestCmd.Flags().Bool("refresh", false, "re-harvest even when the roster file exists")
	harvestCmd.Flags().Bool("no-cache", false, "bypass the page cache")
	rootCmd.AddCommand(harvestCmd)
}

func printHarvest(roster directory.Roster) error {
	rows := make([][]string, 0, len(roster))
	for _, org := range roster {
		rows = append(rows, []string{org.BatchTag, org.OrganizationName, fmt.Sprint(len(org.Members))})
	}
	_, err := fmt.Fprintln(os.Stdout, renderTable(
		[]string{"Batch", "Organization", "Members"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight},
	))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stdout, "%d members across %d organizations -> %s\n",
		len(directory.Flatten(roster)), len(roster), cfg.Output.RosterFile)
	return err
}
