package healthmetrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"grantlens/domain/core"
	"grantlens/domain/outcomes"
	"grantlens/ports"
)

// silenceSleep replaces the retry sleep for the test's duration and
// records the requested backoffs
func silenceSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var backoffs []time.Duration
	original := sleepFunc
	sleepFunc = func(d time.Duration) {
		backoffs = append(backoffs, d)
	}
	t.Cleanup(func() { sleepFunc = original })
	return &backoffs
}

func testClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		Burst:             100,
		MaxRetries:        3,
	})
}

func singleMetricQuery() ports.OutcomeQuery {
	return ports.OutcomeQuery{
		Metrics:  []outcomes.Metric{"infant_mortality_rate"},
		States:   []string{"CA"},
		YearFrom: 2021,
		YearTo:   2021,
	}
}

func TestFetchOutcomesParsesObservations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("metric") != "infant_mortality_rate" || q.Get("state") != "CA" || q.Get("year") != "2021" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"state":"CA","year":2021,"metric":"infant_mortality_rate","value":"4.2","suppressed":false,"reported_at":"2022-03-01T00:00:00Z"},
			{"state":"CA","year":2021,"metric":"infant_mortality_rate","value":null,"suppressed":true,"reported_at":"2022-03-01T00:00:00Z"}
		]`))
	}))
	defer server.Close()

	raws, err := testClient(server.URL).FetchOutcomes(context.Background(), singleMetricQuery())
	if err != nil {
		t.Fatalf("FetchOutcomes: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("observations = %d, want 2", len(raws))
	}

	if raws[0].Value != "4.2" || raws[0].Suppressed {
		t.Errorf("first observation = %+v", raws[0])
	}
	if !raws[1].Suppressed || raws[1].Value != "" {
		t.Errorf("suppression must survive the wire: %+v", raws[1])
	}
	if raws[0].Geography != "CA" || raws[0].Year != 2021 {
		t.Errorf("geography/year = %s/%d", raws[0].Geography, raws[0].Year)
	}
	if raws[0].ReportedAt.IsZero() {
		t.Error("reported_at not parsed")
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	backoffs := silenceSleep(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"state":"CA","year":2021,"metric":"infant_mortality_rate","value":"4.2","suppressed":false,"reported_at":"2022-03-01T00:00:00Z"}]`))
	}))
	defer server.Close()

	raws, err := testClient(server.URL).FetchOutcomes(context.Background(), singleMetricQuery())
	if err != nil {
		t.Fatalf("expected recovery on third attempt, got %v", err)
	}
	if len(raws) != 1 {
		t.Fatalf("observations = %d, want 1", len(raws))
	}
	if calls.Load() != 3 {
		t.Errorf("requests = %d, want 3", calls.Load())
	}
	if len(*backoffs) != 2 || (*backoffs)[0] != 2*time.Second || (*backoffs)[1] != 4*time.Second {
		t.Errorf("backoffs = %v, want [2s 4s]", *backoffs)
	}
}

func TestFetchExhaustedRetriesIsFatal(t *testing.T) {
	silenceSleep(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchOutcomes(context.Background(), singleMetricQuery())
	if !core.IsFatalRunError(err) {
		t.Fatalf("exhausted retries must be fatal, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests = %d, want MaxRetries", calls.Load())
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	silenceSleep(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchOutcomes(context.Background(), singleMetricQuery())
	if err == nil {
		t.Fatal("expected error on 400")
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, a 400 must not retry", calls.Load())
	}
}

func TestFetchDoesNotRetryMalformedJSON(t *testing.T) {
	silenceSleep(t)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchOutcomes(context.Background(), singleMetricQuery())
	if err == nil {
		t.Fatal("expected decode error")
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, malformed payloads must not retry", calls.Load())
	}
}

func TestFetchServesRepeatsFromCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[{"state":"CA","year":2021,"metric":"infant_mortality_rate","value":"4.2","suppressed":false,"reported_at":"2022-03-01T00:00:00Z"}]`))
	}))
	defer server.Close()

	client := testClient(server.URL)
	query := singleMetricQuery()
	if _, err := client.FetchOutcomes(context.Background(), query); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := client.FetchOutcomes(context.Background(), query); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests = %d, repeat pull must hit the cache", calls.Load())
	}
}
