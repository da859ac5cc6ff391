package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/report"
	"github.com/sells-group/sports-qc/internal/reportstore"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect stored QC reports",
	Long:  "Commands for listing, viewing and purging reports in the configured report store.",
}

// -- reports list --

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent QC reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initReportStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		prefix, _ := cmd.Flags().GetString("prefix")
		limit, _ := cmd.Flags().GetInt("limit")

		reports, err := loadRecent(ctx, st, prefix, limit)
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}

		formatReportsList(cmd.OutOrStdout(), reports)
		return nil
	},
}

// -- reports show --

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show a stored QC report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name, _ := cmd.Flags().GetString("format")
		format, err := report.ParseFormat(name)
		if err != nil {
			return err
		}

		st, err := initReportStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		r, err := st.Get(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reports show")
		}
		if r == nil {
			return eris.Errorf("report %s not found", args[0])
		}

		b, err := report.Render(r, format)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

// -- reports purge --

var reportsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired reports from the SQLite store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initReportStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sq, ok := st.(*reportstore.SQLiteStore)
		if !ok {
			return eris.Errorf("purge applies to the sqlite driver; %s expires reports itself", cfg.ReportStore.Driver)
		}
		n, err := sq.DeleteExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired reports.\n", n)
		return nil
	},
}

// loadRecent lists ids and loads each report, skipping ones that expired in
// between.
func loadRecent(ctx context.Context, st reportstore.Store, prefix string, limit int) ([]*model.Report, error) {
	ids, err := st.ListRecent(ctx, prefix, limit)
	if err != nil {
		return nil, eris.Wrap(err, "reports list")
	}
	reports := make([]*model.Report, 0, len(ids))
	for _, id := range ids {
		r, err := st.Get(ctx, id)
		if err != nil {
			return nil, eris.Wrapf(err, "reports list: load %s", id)
		}
		if r != nil {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// formatReportsList writes a table of report summaries.
func formatReportsList(w io.Writer, reports []*model.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tGENERATED\tSOURCE\tTOTAL\tPASSED\tFLAGGED\tREJECTED\tREJECT %")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.1f%%\n",
			r.ID,
			r.GeneratedAt.Format("2006-01-02 15:04"),
			r.DataSource,
			r.TotalRecords,
			r.RecordsPassed,
			r.RecordsFlagged,
			r.RecordsRejected,
			r.RejectionRate()*100,
		)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	reportsListCmd.Flags().String("prefix", "", "only list report ids with this prefix")
	reportsListCmd.Flags().Int("limit", 20, "maximum number of reports to list")
	reportsShowCmd.Flags().StringP("format", "f", "text", "output format: json, text, html, console or xlsx")

	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsPurgeCmd)
	rootCmd.AddCommand(reportsCmd)
}
