package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sells-group/roster-cli/internal/directory"
	"github.com/sells-group/roster-cli/internal/reconcile"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show enriched, rejected and pending counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		st, err := initFileStore().Load(ctx)
		if err != nil {
			return err
		}

		rows := [][]string{
			{"Enriched", strconv.Itoa(len(st.Enriched))},
			{"Rejected", strconv.Itoa(len(st.Rejected))},
		}

		roster, ok, err := directory.LoadRoster(cfg.Output.RosterFile)
		if err != nil {
			return err
		}
		if ok {
			plan := reconcile.Reconcile(directory.Flatten(roster), st.Enriched, st.Rejected)
			rows = append(rows,
				[]string{"Roster members", strconv.Itoa(plan.Total)},
				[]string{"Pending", strconv.Itoa(len(plan.Working))},
			)
		} else {
			rows = append(rows, []string{"Pending", "no roster"})
		}

		_, err = fmt.Fprintln(os.Stdout, keyValueTable(rows))
		return err
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
