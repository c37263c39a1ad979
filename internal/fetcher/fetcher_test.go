package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mikeaa1983/mineralink-tiles/internal/arcgis"
	"github.com/mikeaa1983/mineralink-tiles/internal/planner"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFetcher(srv *httptest.Server, opts Options) *Fetcher {
	return New(arcgis.NewClient(srv.Client(), discardLogger()), opts, discardLogger())
}

func chunkPlan(t *testing.T, divs int) planner.Plan {
	t.Helper()
	bbox := planner.Envelope{XMin: -82.8, YMin: 37.0, XMax: -77.7, YMax: 40.6}
	return planner.New("test_layer", &bbox, divs, 100)
}

func pointBody(n int) string {
	body := `{"features":[`
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"attributes":{"id":%d},"geometry":{"x":-80.0,"y":38.0}}`, i)
	}
	return body + `]}`
}

func TestRetryThenSuccessContributesFeatures(t *testing.T) {
	var mu sync.Mutex
	failed := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("geometry")
		mu.Lock()
		first := !failed[key]
		failed[key] = true
		mu.Unlock()
		if first {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(pointBody(2)))
	}))
	defer srv.Close()

	f := newFetcher(srv, Options{Attempts: 2, Backoff: time.Millisecond, Workers: 2})
	feats, outcome, err := f.Run(context.Background(), srv.URL, chunkPlan(t, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(feats) != 8 {
		t.Fatalf("got %d features, want 8 (2 per chunk, 4 chunks)", len(feats))
	}
	if !outcome.Complete() {
		t.Fatalf("retried chunks must still count as complete: %+v", outcome)
	}
}

func TestExhaustedRetriesDoNotAbortSiblings(t *testing.T) {
	deadEnv := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env := r.URL.Query().Get("geometry")
		if deadEnv == "" || deadEnv == env {
			deadEnv = env
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(pointBody(1)))
	}))
	defer srv.Close()

	f := newFetcher(srv, Options{Attempts: 2, Backoff: time.Millisecond, Workers: 1})
	feats, outcome, err := f.Run(context.Background(), srv.URL, chunkPlan(t, 2))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(feats) != 3 {
		t.Fatalf("siblings of a dead chunk must still contribute; got %d features, want 3", len(feats))
	}
	if outcome.Failed != 1 {
		t.Fatalf("failed chunks got %d, want 1", outcome.Failed)
	}
	if outcome.Complete() {
		t.Fatal("an abandoned chunk must mark the layer incomplete")
	}
}

func TestMalformedResponseNotRetried(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	f := newFetcher(srv, Options{Attempts: 3, Backoff: time.Millisecond, Workers: 1})
	bbox := planner.Envelope{XMin: 0, YMin: 0, XMax: 1, YMax: 1}
	plan := planner.New("bad", &bbox, 1, 100)

	_, outcome, err := f.Run(context.Background(), srv.URL, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if hits != 1 {
		t.Fatalf("malformed responses must not be retried; server saw %d requests", hits)
	}
	if outcome.Failed != 1 {
		t.Fatalf("failed got %d, want 1", outcome.Failed)
	}
}

func TestPaginationStopsOnEmptyPage(t *testing.T) {
	const pageSize = 3
	var offsets []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("resultOffset"))
		offsets = append(offsets, offset)
		if offset >= 6 {
			_, _ = w.Write([]byte(`{"features":[]}`))
			return
		}
		_, _ = w.Write([]byte(pointBody(pageSize)))
	}))
	defer srv.Close()

	f := newFetcher(srv, Options{Attempts: 1, Workers: 1})
	plan := planner.New("paged_layer", nil, 5, pageSize)
	if !plan.Paged() {
		t.Fatal("layer without bbox must use pagination")
	}

	feats, outcome, err := f.Run(context.Background(), srv.URL, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(feats) != 6 {
		t.Fatalf("got %d features, want 6", len(feats))
	}
	want := []int{0, 3, 6}
	if len(offsets) != len(want) {
		t.Fatalf("server saw offsets %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("server saw offsets %v, want %v", offsets, want)
		}
	}
	if !outcome.Complete() {
		t.Fatalf("clean pagination must be complete: %+v", outcome)
	}
}

func TestBudgetExceededStopsNewChunks(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		_, _ = w.Write([]byte(pointBody(1)))
	}))
	defer srv.Close()

	f := newFetcher(srv, Options{Attempts: 1, Workers: 1, LayerBudget: time.Nanosecond})
	_, outcome, err := f.Run(context.Background(), srv.URL, chunkPlan(t, 5))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !outcome.BudgetExceeded {
		t.Fatal("outcome must record the exceeded budget")
	}
	if outcome.Complete() {
		t.Fatal("an exceeded budget must mark the layer incomplete")
	}
	mu.Lock()
	defer mu.Unlock()
	if hits != 0 {
		t.Fatalf("no new chunk fetch may start after the budget, server saw %d", hits)
	}
}

func TestFailedPageSkippedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("resultOffset"))
		switch {
		case offset == 0:
			_, _ = w.Write([]byte(`{"error":{"code":400,"message":"bad page"}}`))
		case offset >= 4:
			_, _ = w.Write([]byte(`{"features":[]}`))
		default:
			_, _ = w.Write([]byte(pointBody(2)))
		}
	}))
	defer srv.Close()

	f := newFetcher(srv, Options{Attempts: 1, Workers: 1})
	plan := planner.New("paged_layer", nil, 5, 2)
	feats, outcome, err := f.Run(context.Background(), srv.URL, plan)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(feats) != 2 {
		t.Fatalf("got %d features, want 2 from the surviving page", len(feats))
	}
	if outcome.Failed != 1 || outcome.Complete() {
		t.Fatalf("dead page must be recorded and mark the layer incomplete: %+v", outcome)
	}
}
