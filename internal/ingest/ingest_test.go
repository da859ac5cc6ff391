package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-qc/internal/config"
	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/monitoring"
	"github.com/sells-group/sports-qc/internal/qc"
	"github.com/sells-group/sports-qc/internal/reportstore"
)

var testNow = time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Forward(ctx context.Context, r *model.Report, batch model.Batch) (map[string]int64, error) {
	args := m.Called(ctx, r, batch)
	counts, _ := args.Get(0).(map[string]int64)
	return counts, args.Error(1)
}

func ptr[T any](v T) *T { return &v }

func lines(n int) []model.PlayerStatLine {
	out := make([]model.PlayerStatLine, n)
	for i := range out {
		out[i] = model.PlayerStatLine{
			ID:       fmt.Sprintf("l%02d", i),
			PlayerID: fmt.Sprintf("p%02d", i),
			TeamID:   "tex",
			Batting:  &model.BattingStats{AtBats: 4, Hits: 1, Avg: ptr(0.250 + float64(i)*0.0025)},
			Source:   model.SourceMetadata{Provider: model.ProviderOfficialAPI},
		}
	}
	return out
}

// withBadHits makes the first n lines claim more hits than at-bats.
func withBadHits(ls []model.PlayerStatLine, n int) []model.PlayerStatLine {
	for i := 0; i < n; i++ {
		ls[i].Batting.Hits = 6
	}
	return ls
}

func testQCConfig() qc.Config {
	return qc.Config{AutoRejectFailures: true, Clock: func() time.Time { return testNow }}
}

func TestIngest_Forwards(t *testing.T) {
	sink := new(mockSink)
	sink.On("Forward", mock.Anything, mock.AnythingOfType("*model.Report"),
		mock.MatchedBy(func(b model.Batch) bool { return len(b.PlayerStats) == 10 })).
		Return(map[string]int64{TablePlayerStats: 10}, nil)

	st := reportstore.NewMemory()
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	ing := New(testQCConfig(), Options{
		Sink:      sink,
		Persister: reportstore.NewPersister(st, time.Second),
		Metrics:   metrics,
	})

	res, err := ing.Ingest(context.Background(), model.Batch{PlayerStats: lines(10), DataSource: "official_api"})
	require.NoError(t, err)
	ing.Wait()

	assert.Equal(t, 10, res.TotalRecords)
	assert.Equal(t, 10, res.RecordsPassed)
	assert.Zero(t, res.RejectionRate)
	assert.Equal(t, map[string]int64{TablePlayerStats: 10}, res.Forwarded)
	assert.Regexp(t, `^qc_\d+_[0-9a-f]{12}$`, res.ReportID)
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.ForwardedRows.WithLabelValues(TablePlayerStats)))
	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.Records.WithLabelValues("official_api", "PASSED")))
	sink.AssertExpectations(t)

	saved, err := st.Get(context.Background(), res.ReportID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, res.TotalRecords, saved.TotalRecords)
}

func TestIngest_RejectRateGate(t *testing.T) {
	sink := new(mockSink)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	ing := New(testQCConfig(), Options{Sink: sink, Metrics: metrics})

	res, err := ing.Ingest(context.Background(), model.Batch{PlayerStats: withBadHits(lines(10), 3)})
	require.Error(t, err)

	var gate *RejectRateError
	require.True(t, errors.As(err, &gate))
	assert.InDelta(t, 0.3, gate.Rate, 1e-9)
	assert.Equal(t, DefaultMaxRejectRate, gate.Limit)
	assert.Equal(t, res.ReportID, gate.ReportID)
	assert.Equal(t, res.Recommendations, gate.Recommendations)
	assert.Contains(t, err.Error(), "30.0%")

	require.NotNil(t, res)
	assert.Equal(t, 3, res.RecordsRejected)
	assert.Nil(t, res.Forwarded)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GateRejections))
	sink.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_RateAtLimitForwards(t *testing.T) {
	sink := new(mockSink)
	sink.On("Forward", mock.Anything, mock.Anything, mock.Anything).Return(map[string]int64{TablePlayerStats: 8}, nil)

	ing := New(testQCConfig(), Options{Sink: sink, MaxRejectRate: 0.2})
	res, err := ing.Ingest(context.Background(), model.Batch{PlayerStats: withBadHits(lines(10), 2)})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, res.RejectionRate, 1e-9)
	sink.AssertExpectations(t)
}

func TestIngest_SinkError(t *testing.T) {
	sink := new(mockSink)
	sink.On("Forward", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("warehouse down"))

	ing := New(testQCConfig(), Options{Sink: sink})
	res, err := ing.Ingest(context.Background(), model.Batch{PlayerStats: lines(5)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest: forward report")
	assert.Contains(t, err.Error(), "warehouse down")
	require.NotNil(t, res)
	assert.Equal(t, 5, res.RecordsPassed)
}

func TestIngest_EmptyBatchSkipsSink(t *testing.T) {
	sink := new(mockSink)
	ing := New(testQCConfig(), Options{Sink: sink})

	res, err := ing.Ingest(context.Background(), model.Batch{DataSource: "manual"})
	require.NoError(t, err)
	assert.Zero(t, res.TotalRecords)
	assert.Equal(t, []string{qc.AllClear}, res.Recommendations)
	sink.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_InvalidConfig(t *testing.T) {
	cfg := testQCConfig()
	cfg.MinConfidence = 2
	ing := New(cfg, Options{})

	res, err := ing.Ingest(context.Background(), model.Batch{PlayerStats: lines(3)})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "ingest: qc run")
}

func TestIngest_SendsAlerts(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alerter := monitoring.NewAlerter(config.MonitoringConfig{
		WebhookURL:          srv.URL,
		RejectRateThreshold: 0.1,
		AlertsPerMinute:     60,
	}, nil)
	ing := New(testQCConfig(), Options{Alerter: alerter})

	_, err := ing.Ingest(context.Background(), model.Batch{PlayerStats: withBadHits(lines(10), 3)})
	require.Error(t, err)
	ing.Wait()
	assert.Equal(t, int32(1), received.Load())
}
