package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/sports-qc/internal/resilience"
)

func fastFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		Timeout:     5 * time.Second,
		Policy:      resilience.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
		DefaultRate: 1000,
	})
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "stdin", Label("-"))
	assert.Equal(t, "ncaa_week3", Label("/data/in/ncaa_week3.json"))
	assert.Equal(t, "boxscores", Label("https://stats.example.com/v1/boxscores.csv?date=2025-04-12"))
	assert.True(t, IsURL("https://statsapi.mlb.com/api/v1/game"))
	assert.False(t, IsURL("games.json"))
}

func TestLoad_BatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sec_scraper.json")
	body := `{"games": [{"id": "g1", "home_team": "LSU", "away_team": "Texas", "status": "FINAL"}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	b, err := Load(context.Background(), nil, path, nil)
	require.NoError(t, err)
	assert.Equal(t, "sec_scraper", b.DataSource)
	require.Len(t, b.Games, 1)
	assert.Equal(t, "g1", b.Games[0].ID)
}

func TestLoad_KeepsDeclaredSource(t *testing.T) {
	b, err := Load(context.Background(), nil, "-", strings.NewReader(`{"data_source": "mlb_api"}`))
	require.NoError(t, err)
	assert.Equal(t, "mlb_api", b.DataSource)
}

func TestLoad_StatLineArray(t *testing.T) {
	body := `
	[{"player_id": "p1", "team_id": "tex", "batting": {"at_bats": 4, "hits": 2}},
	 {"player_id": "p2", "team_id": "lsu", "pitching": {"innings_pitched": 6.1, "earned_runs": 2}}]`

	b, err := Load(context.Background(), nil, "-", strings.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "stdin", b.DataSource)
	require.Len(t, b.PlayerStats, 2)
	assert.Equal(t, 2, b.PlayerStats[0].Batting.Hits)
	assert.InDelta(t, 6.1, b.PlayerStats[1].Pitching.InningsPitched, 1e-9)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), nil, filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	_, err = Load(context.Background(), nil, "-", strings.NewReader("   "))
	assert.Error(t, err)

	_, err = Load(context.Background(), nil, "-", strings.NewReader(`[{"player_id": 1}]`))
	assert.Error(t, err)

	_, err = Load(context.Background(), nil, "https://stats.example.com/games.json", nil)
	assert.Error(t, err)
}

func TestLoad_URL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sports-qc/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "player_id,team_id,at_bats,hits\np1,tex,4,2\n")
	}))
	defer srv.Close()

	b, err := Load(context.Background(), fastFetcher(), srv.URL+"/week3.csv", nil)
	require.NoError(t, err)
	assert.Equal(t, "week3", b.DataSource)
	require.Len(t, b.PlayerStats, 1)
	assert.Equal(t, 4, b.PlayerStats[0].Batting.AtBats)
}

func TestHTTPFetcher_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"games": []}`)
	}))
	defer srv.Close()

	body, err := fastFetcher().Download(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"games": []}`, string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPFetcher_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastFetcher().Download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPFetcher_RateLimitSlowsHost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	f := fastFetcher()
	body, err := f.Download(context.Background(), srv.URL)
	require.NoError(t, err)
	_ = body.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	// Halved on the 429, then raised 20% on the success.
	assert.InDelta(t, 600, float64(f.limiterFor(host).Limit()), 1e-6)
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	a := NewAdaptiveLimiter(10, 10)
	for range 20 {
		a.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), a.Limit())

	for range 20 {
		a.OnRateLimit()
	}
	assert.Equal(t, rate.Limit(2.5), a.Limit())
}

func TestHTTPFetcher_HostRates(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, rate.Limit(1), f.limiterFor("stats.ncaa.org").Limit())
	assert.Equal(t, rate.Limit(20), f.limiterFor("scores.example.com").Limit())
	assert.Same(t, f.limiterFor("stats.ncaa.org"), f.limiterFor("stats.ncaa.org"))
}
