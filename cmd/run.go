package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sports-qc/internal/fetcher"
	"github.com/sells-group/sports-qc/internal/ingest"
	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/qc"
	"github.com/sells-group/sports-qc/internal/report"
	"github.com/sells-group/sports-qc/internal/reportstore"
)

var (
	runFormat  string
	runOutput  string
	runSource  string
	runSave    bool
	runForward bool
)

// runOptions carries everything runFiles needs besides the inputs.
type runOptions struct {
	Format        report.Format
	Source        string
	Fetcher       fetcher.Fetcher // downloads http(s) inputs
	QC            qc.Config
	Workers       int
	Store         reportstore.Store // nil skips saving
	Sink          ingest.Sink       // nil skips forwarding
	MaxRejectRate float64
	SaveTimeout   time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run [file|url...]",
	Short: "Run QC over one or more batch files or URLs",
	Long: `Reads batches of {games, player_stats, simulations, data_source} from files,
http(s) URLs or - for stdin, runs the QC pipeline and prints the report.
A JSON array or a .csv file is read as a list of player stat lines.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(runFormat)
		if err != nil {
			return err
		}
		qcCfg, err := qcConfig(cfg.QC)
		if err != nil {
			return err
		}

		opts := runOptions{
			Format:        format,
			Source:        runSource,
			Fetcher:       initFetcher(cfg),
			QC:            qcCfg,
			Workers:       cfg.QC.Workers,
			MaxRejectRate: cfg.Ingest.MaxRejectRate,
			SaveTimeout:   time.Duration(cfg.Ingest.PersistTimeoutSecs) * time.Second,
		}

		if runSave {
			st, err := initReportStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			opts.Store = st
		}

		if runForward {
			sink, closeSink, err := initSink(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSink()
			if sink == nil {
				return eris.New("--forward requires ingest.database_url (SPORTSQC_INGEST_DATABASE_URL)")
			}
			opts.Sink = sink
		}

		out := cmd.OutOrStdout()
		if runOutput != "" {
			f, err := os.Create(runOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		return runFiles(ctx, cmd.InOrStdin(), out, args, opts)
	},
}

// runFiles validates each input and writes the rendered reports to out. A
// batch held back by the reject-rate gate is reported and then returned as
// an error once every batch has run.
func runFiles(ctx context.Context, in io.Reader, out io.Writer, paths []string, opts runOptions) error {
	batches, err := readBatches(ctx, opts.Fetcher, in, paths, opts.Source)
	if err != nil {
		return err
	}

	persister := reportstore.NewPersister(opts.Store, opts.SaveTimeout)
	var saveErrs atomic.Int32
	persister.OnError = func(string, error) { saveErrs.Add(1) }

	var reports []*model.Report
	var gated int
	if opts.Sink != nil {
		ing := ingest.New(opts.QC, ingest.Options{
			MaxRejectRate: opts.MaxRejectRate,
			Sink:          opts.Sink,
			Persister:     persister,
		})
		for i, b := range batches {
			res, err := ing.Ingest(ctx, b)
			var gate *ingest.RejectRateError
			switch {
			case errors.As(err, &gate):
				gated++
				zap.L().Warn("batch held back", zap.String("file", paths[i]), zap.String("report_id", gate.ReportID))
			case err != nil:
				return eris.Wrapf(err, "ingest %s", paths[i])
			}
			reports = append(reports, res.Report)
		}
		ing.Wait()
	} else {
		reports, err = runQC(ctx, batches, opts.QC, opts.Workers)
		if err != nil {
			return err
		}
		for _, r := range reports {
			persister.Persist(r)
		}
		persister.Wait()
	}

	if n := saveErrs.Load(); n > 0 {
		zap.L().Warn("some reports were not saved", zap.Int32("failed", n))
	}

	if err := writeReports(out, reports, opts.Format); err != nil {
		return err
	}
	if gated > 0 {
		return eris.Errorf("%d of %d batches exceeded the rejection rate limit and were not forwarded", gated, len(batches))
	}
	return nil
}

// runQC runs a single batch in chunks, or several batches concurrently.
func runQC(ctx context.Context, batches []model.Batch, cfg qc.Config, workers int) ([]*model.Report, error) {
	if len(batches) == 1 {
		res, err := qc.RunBatch(batches[0], cfg)
		if err != nil {
			return nil, err
		}
		return []*model.Report{res.Report}, nil
	}

	results, err := qc.RunConcurrent(ctx, batches, cfg, workers)
	if err != nil {
		return nil, err
	}
	reports := make([]*model.Report, len(results))
	for i, res := range results {
		reports[i] = res.Report
	}
	return reports, nil
}

// readBatches loads each path as a batch. source, when set, overrides the
// label of every batch.
func readBatches(ctx context.Context, f fetcher.Fetcher, in io.Reader, paths []string, source string) ([]model.Batch, error) {
	batches := make([]model.Batch, 0, len(paths))
	for _, p := range paths {
		b, err := fetcher.Load(ctx, f, p, in)
		if err != nil {
			return nil, err
		}
		if source != "" {
			b.DataSource = source
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// writeReports renders reports in format. Several JSON reports are written
// as one array; spreadsheets hold a single report.
func writeReports(w io.Writer, reports []*model.Report, format report.Format) error {
	if len(reports) > 1 {
		switch format {
		case report.FormatXLSX:
			return eris.New("xlsx output holds a single report; run one file at a time")
		case report.FormatJSON:
			b, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				return eris.Wrap(err, "marshal reports")
			}
			_, err = w.Write(append(b, '\n'))
			return eris.Wrap(err, "write reports")
		}
	}

	for i, r := range reports {
		b, err := report.Render(r, format)
		if err != nil {
			return err
		}
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return eris.Wrap(err, "write report")
			}
		}
		if _, err := w.Write(b); err != nil {
			return eris.Wrap(err, "write report")
		}
	}
	return nil
}

func init() {
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "console", "output format: json, text, html, console or xlsx")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the report to a file instead of stdout")
	runCmd.Flags().StringVar(&runSource, "source", "", "data source label, overriding the batch's data_source")
	runCmd.Flags().BoolVar(&runSave, "save", true, "save reports to the configured report store")
	runCmd.Flags().BoolVar(&runForward, "forward", false, "forward validated records to the warehouse")
	rootCmd.AddCommand(runCmd)
}
