package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/voxproof/eval-console/internal/audiostore"
	"github.com/voxproof/eval-console/internal/evalapi"
	"github.com/voxproof/eval-console/internal/result"
	"github.com/voxproof/eval-console/internal/store"
	"github.com/voxproof/eval-console/internal/tracker"
)

// stubBackend serves canned results keyed by id.
type stubBackend struct {
	mu        sync.Mutex
	results   map[string]*result.EvaluationResult
	reevalErr error
	deleteErr error
	deleted   [][]string
}

func (b *stubBackend) GetResult(ctx context.Context, id string) (*result.EvaluationResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	res, ok := b.results[id]
	if !ok {
		return nil, &evalapi.APIError{StatusCode: http.StatusNotFound, Body: "no such result"}
	}
	return res, nil
}

func (b *stubBackend) ReEvaluate(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reevalErr
}

func (b *stubBackend) DeleteResults(ctx context.Context, ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.deleted = append(b.deleted, ids)
	return nil
}

type fixture struct {
	backend *stubBackend
	store   *store.Store
	srv     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := &stubBackend{results: map[string]*result.EvaluationResult{}}
	st := store.New(time.Minute)
	tr := tracker.New(backend, st, 50*time.Millisecond)

	resolver, err := audiostore.New(audiostore.Options{})
	if err != nil {
		t.Fatalf("audiostore.New: %v", err)
	}

	mux := http.NewServeMux()
	New(tr, resolver).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &fixture{backend: backend, store: st, srv: srv}
}

func getJSON(t *testing.T, url string, target interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestGetResultServesCachedView(t *testing.T) {
	f := newFixture(t)
	f.store.Put("r1", &result.EvaluationResult{ID: "r1", Status: result.StatusCompleted})

	var view tracker.View
	if code := getJSON(t, f.srv.URL+"/results/r1", &view); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if view.Status != result.StatusCompleted || view.Result == nil {
		t.Errorf("view = %+v", view)
	}
}

func TestGetResultTriggersFetchOnMiss(t *testing.T) {
	f := newFixture(t)
	f.backend.results["r2"] = &result.EvaluationResult{ID: "r2", Status: result.StatusCompleted}

	var view tracker.View
	if code := getJSON(t, f.srv.URL+"/results/r2", &view); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}

	// The miss kicks off a one-shot fetch; a later request sees the result.
	deadline := time.Now().Add(time.Second)
	for view.Result == nil {
		if time.Now().After(deadline) {
			t.Fatal("result never landed in the cache")
		}
		time.Sleep(10 * time.Millisecond)
		getJSON(t, f.srv.URL+"/results/r2", &view)
	}
	if view.Status != result.StatusCompleted {
		t.Errorf("status = %s", view.Status)
	}
}

func TestRefreshAccepted(t *testing.T) {
	f := newFixture(t)
	f.backend.results["r1"] = &result.EvaluationResult{ID: "r1", Status: result.StatusCompleted}

	resp, _ := postJSON(t, f.srv.URL+"/results/r1/refresh", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
}

func TestReEvaluate(t *testing.T) {
	f := newFixture(t)
	f.store.Put("r1", &result.EvaluationResult{ID: "r1", Status: result.StatusCompleted})

	resp, _ := postJSON(t, f.srv.URL+"/results/r1/reevaluate", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}

	var view tracker.View
	getJSON(t, f.srv.URL+"/results/r1", &view)
	if view.Status != result.StatusQueued {
		t.Errorf("status after re-evaluate = %s, want queued", view.Status)
	}
}

func TestReEvaluateBackendErrors(t *testing.T) {
	f := newFixture(t)

	f.backend.reevalErr = &evalapi.APIError{StatusCode: http.StatusNotFound, Body: "gone"}
	resp, _ := postJSON(t, f.srv.URL+"/results/ghost/reevaluate", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for a backend 404", resp.StatusCode)
	}

	f.backend.reevalErr = errors.New("connection refused")
	resp, _ = postJSON(t, f.srv.URL+"/results/r1/reevaluate", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 for a transport error", resp.StatusCode)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	f.store.Put("r1", &result.EvaluationResult{ID: "r1", Status: result.StatusCompleted})

	resp, body := postJSON(t, f.srv.URL+"/results/delete", map[string][]string{"ids": {"r1", "r2"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}

	if _, ok, _ := f.store.Get("r1"); ok {
		t.Error("deleted result still cached")
	}
	if len(f.backend.deleted) != 1 {
		t.Errorf("backend delete calls = %+v", f.backend.deleted)
	}
}

func TestDeleteRejectsBadRequests(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.srv.URL+"/results/delete", "application/json", bytes.NewBufferString("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", resp.StatusCode)
	}

	resp2, _ := postJSON(t, f.srv.URL+"/results/delete", map[string][]string{"ids": {}})
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("empty ids: status = %d, want 400", resp2.StatusCode)
	}
}

func TestAudio(t *testing.T) {
	f := newFixture(t)

	// Unknown result.
	if code := getJSON(t, f.srv.URL+"/results/ghost/audio", nil); code != http.StatusNotFound {
		t.Errorf("unknown result: status = %d, want 404", code)
	}

	// Known result without any recording.
	f.store.Put("silent", &result.EvaluationResult{ID: "silent", Status: result.StatusCompleted})
	var body map[string]string
	if code := getJSON(t, f.srv.URL+"/results/silent/audio", &body); code != http.StatusNotFound {
		t.Errorf("no audio: status = %d, want 404", code)
	}
	if body["error"] != "audio not available" {
		t.Errorf("no-audio body = %+v", body)
	}

	// Provider-hosted recording passes through.
	f.store.Put("hosted", &result.EvaluationResult{
		ID:               "hosted",
		Status:           result.StatusCompleted,
		ProviderPlatform: result.PlatformRetell,
		CallPayload:      json.RawMessage(`{"call_id": "c1", "recording_url": "https://r.example/a.wav"}`),
	})
	if code := getJSON(t, f.srv.URL+"/results/hosted/audio", &body); code != http.StatusOK {
		t.Fatalf("hosted audio: status = %d", code)
	}
	if body["url"] != "https://r.example/a.wav" {
		t.Errorf("url = %q", body["url"])
	}
}

func TestScorecard(t *testing.T) {
	f := newFixture(t)

	// Mid-pipeline with no scores yet: pending, not empty.
	f.store.Put("early", &result.EvaluationResult{ID: "early", Status: result.StatusEvaluating})
	var resp struct {
		Status  result.Status `json:"status"`
		Pending bool          `json:"pending"`
		Flat    []struct {
			Name    string `json:"name"`
			Display string `json:"display"`
		} `json:"flat"`
	}
	if code := getJSON(t, f.srv.URL+"/results/early/scorecard", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if !resp.Pending {
		t.Error("evaluating result with no scores should be pending")
	}

	// Completed with scores: rendered, not pending.
	var scores result.MetricScores
	if err := json.Unmarshal([]byte(`{
		"m1": {"metric_name": "Politeness", "type": "rating", "value": 0.8},
		"m2": {"metric_name": "Mean Pitch", "type": "number", "value": "n/a"}
	}`), &scores); err != nil {
		t.Fatal(err)
	}
	f.store.Put("done", &result.EvaluationResult{
		ID:           "done",
		Status:       result.StatusCompleted,
		MetricScores: scores,
	})
	if code := getJSON(t, f.srv.URL+"/results/done/scorecard", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Pending {
		t.Error("completed result reported pending")
	}
	if len(resp.Flat) != 2 || resp.Flat[1].Display != "N/A" {
		t.Errorf("flat = %+v, want the invalid metric as an N/A placeholder", resp.Flat)
	}
}
