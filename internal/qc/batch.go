package qc

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sports-qc/internal/model"
)

// RunBatch runs the pipeline over fixed-size chunks of each record list and
// merges the results, so a single run never holds validator state for an
// unbounded input. Chunks are processed sequentially.
func RunBatch(batch model.Batch, cfg Config) (*Result, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	size := cfg.BatchSize
	chunks := 0
	for _, n := range []int{len(batch.Games), len(batch.PlayerStats), len(batch.Simulations)} {
		if c := (n + size - 1) / size; c > chunks {
			chunks = c
		}
	}
	if chunks <= 1 {
		return Run(batch, cfg)
	}

	log := zap.L().With(zap.String("component", "qc.batch"), zap.String("data_source", batch.DataSource))
	log.Info("qc: chunked run", zap.Int("records", batch.Len()), zap.Int("chunks", chunks), zap.Int("batch_size", size))

	var merged *Result
	for i := 0; i < chunks; i++ {
		chunk := model.Batch{
			Games:       window(batch.Games, i, size),
			PlayerStats: window(batch.PlayerStats, i, size),
			Simulations: window(batch.Simulations, i, size),
			DataSource:  batch.DataSource,
		}
		res, err := Run(chunk, cfg)
		if err != nil {
			return nil, eris.Wrapf(err, "qc: run chunk %d", i)
		}
		log.Debug("qc: chunk complete", zap.Int("chunk", i), zap.String("report_id", res.Report.ID))
		merged = merge(merged, res)
	}

	now := cfg.Clock()
	merged.Report.ID = NewReportID(now)
	merged.Report.GeneratedAt = now.UTC()
	return merged, nil
}

func window[T any](items []T, i, size int) []T {
	start := i * size
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// merge folds next into acc. Counts are summed, lists concatenated, the
// first chunk's before-metrics and the last chunk's after-metrics kept.
func merge(acc, next *Result) *Result {
	if acc == nil {
		return next
	}
	a, n := acc.Report, next.Report

	a.TotalRecords += n.TotalRecords
	a.RecordsPassed += n.RecordsPassed
	a.RecordsFlagged += n.RecordsFlagged
	a.RecordsRejected += n.RecordsRejected
	a.Checks = append(a.Checks, n.Checks...)
	a.Outliers = append(a.Outliers, n.Outliers...)
	a.Recommendations = dedupe(append(a.Recommendations, n.Recommendations...))
	if !allClear(a) {
		a.Recommendations = dropLine(a.Recommendations, AllClear)
	}
	a.MetricsAfter = n.MetricsAfter

	appendBatch(&acc.Filtered, next.Filtered)
	appendBatch(&acc.Passed, next.Passed)
	appendBatch(&acc.Flagged, next.Flagged)
	appendBatch(&acc.Rejected, next.Rejected)
	return acc
}

// allClear reports whether r has no flagged or rejected records and no
// outlier above the ACCEPT tier.
func allClear(r *model.Report) bool {
	if r.RecordsFlagged > 0 || r.RecordsRejected > 0 {
		return false
	}
	for _, o := range r.Outliers {
		if o.Recommendation != model.RecommendAccept {
			return false
		}
	}
	return true
}

func dropLine(lines []string, line string) []string {
	out := lines[:0]
	for _, l := range lines {
		if l != line {
			out = append(out, l)
		}
	}
	return out
}

func appendBatch(dst *model.Batch, src model.Batch) {
	dst.Games = append(dst.Games, src.Games...)
	dst.PlayerStats = append(dst.PlayerStats, src.PlayerStats...)
	dst.Simulations = append(dst.Simulations, src.Simulations...)
}

// RunConcurrent runs independent batches in parallel, at most workers at a
// time (GOMAXPROCS when workers is zero). Results are returned in input
// order. Batches must not share records.
func RunConcurrent(ctx context.Context, batches []model.Batch, cfg Config, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, b := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := RunBatch(b, cfg)
			if err != nil {
				return eris.Wrapf(err, "qc: batch %d (%s)", i, b.DataSource)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
