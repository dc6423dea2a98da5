package main

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/roster-cli/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the enriched or rejected set as CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		set, _ := cmd.Flags().GetString("set")
		outPath, _ := cmd.Flags().GetString("out")

		st, err := initFileStore().Load(ctx)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if outPath != "" && outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", outPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		switch set {
		case "enriched":
			return writeEnrichedCSV(out, st.Enriched)
		case "rejected":
			return writeRejectedCSV(out, st.Rejected)
		default:
			return eris.Errorf("export: unknown set %q (want enriched or rejected)", set)
		}
	},
}

func init() {
	exportCmd.Flags().String("set", "enriched", "which set to export: enriched or rejected")
	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(exportCmd)
}

var enrichedHeader = []string{
	"id", "name", "first_name", "last_name", "title", "email",
	"organization", "organization_domain", "linkedin_url", "twitter_url", "github_url",
}

func writeEnrichedCSV(w io.Writer, results []*model.MatchResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(enrichedHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		domain := ""
		if r.Organization != nil {
			domain = r.Organization.PrimaryDomain
		}
		row := []string{
			r.ID, r.Name, r.FirstName, r.LastName, r.Title, r.Email,
			r.OrganizationName(), domain, r.LinkedInURL, r.TwitterURL, r.GitHubURL,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

var rejectedHeader = []string{"batch", "organization", "name", "linkedin", "twitter", "github"}

func writeRejectedCSV(w io.Writer, records []model.IdentityRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rejectedHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range records {
		row := []string{
			r.BatchTag, r.OrganizationName, r.Name,
			r.Social.ProfessionalNetwork, r.Social.Microblog, r.Social.CodeHosting,
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}
