package reportstore

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sports-qc/internal/model"
)

// Persister saves reports in the background so the pipeline result never
// waits on, or fails because of, the store.
type Persister struct {
	store   Store
	timeout time.Duration
	// OnError, if set, is called after a failed save is logged.
	OnError func(id string, err error)

	wg sync.WaitGroup
}

// NewPersister wraps store. A zero timeout uses 10s per save.
func NewPersister(store Store, timeout time.Duration) *Persister {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Persister{store: store, timeout: timeout}
}

// Persist starts saving r and returns immediately.
func (p *Persister) Persist(r *model.Report) {
	if p == nil || p.store == nil || r == nil {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		start := time.Now()
		if err := p.store.Save(ctx, r); err != nil {
			zap.L().Error("reportstore: save failed",
				zap.String("report_id", r.ID),
				zap.Error(err),
			)
			if p.OnError != nil {
				p.OnError(r.ID, err)
			}
			return
		}
		zap.L().Debug("reportstore: report saved",
			zap.String("report_id", r.ID),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()
}

// Wait blocks until in-flight saves finish.
func (p *Persister) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}
