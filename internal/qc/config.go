package qc

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/outlier"
	"github.com/sells-group/sports-qc/internal/validate"
)

// DefaultBatchSize is the chunk size RunBatch uses when none is configured.
const DefaultBatchSize = 1000

// Config controls one pipeline run. The zero value is usable: thresholds
// default to the professional profile, flagged records are included in the
// filtered output and nothing is auto-rejected.
type Config struct {
	// MADThreshold is the permissive MAD tier. Zero uses Thresholds.MADFlag.
	MADThreshold float64 `json:"mad_threshold"`
	// StrictMADThreshold is the REJECT tier. Zero uses Thresholds.MADReject.
	StrictMADThreshold float64 `json:"strict_mad_threshold"`

	AutoRejectFailures bool `json:"auto_reject_failures"`
	AutoRejectOutliers bool `json:"auto_reject_outliers"`
	ExcludeFlagged     bool `json:"exclude_flagged"`

	// MinConfidence fails any record whose source confidence is below it.
	MinConfidence float64 `json:"min_confidence"`

	BatchSize int `json:"batch_size"`

	Thresholds *validate.Thresholds `json:"-"`
	Clock      func() time.Time     `json:"-"`
}

// normalize fills defaults and rejects impossible settings.
func (c Config) normalize() (Config, error) {
	if c.Thresholds == nil {
		th := validate.DefaultThresholds()
		c.Thresholds = &th
	}
	if c.MADThreshold == 0 {
		c.MADThreshold = c.Thresholds.MADFlag
	}
	if c.StrictMADThreshold == 0 {
		c.StrictMADThreshold = c.Thresholds.MADReject
	}
	if c.StrictMADThreshold < c.MADThreshold {
		c.StrictMADThreshold = c.MADThreshold
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}

	switch {
	case c.MADThreshold < 0:
		return c, eris.Errorf("qc: mad threshold must be positive, got %v", c.MADThreshold)
	case c.BatchSize < 0:
		return c, eris.Errorf("qc: batch size must be positive, got %d", c.BatchSize)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return c, eris.Errorf("qc: min confidence must be in [0, 1], got %v", c.MinConfidence)
	}
	return c, nil
}

func (c Config) tiers() outlier.Tiers {
	return outlier.Tiers{Flag: c.MADThreshold, Reject: c.StrictMADThreshold}
}
