package evalapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/voxproof/eval-console/internal/result"
)

func TestGetResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/results/res-1" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "res-1",
			"status": "evaluating",
			"metric_scores": {
				"b_metric": {"metric_name": "B", "type": "rating", "value": 0.5},
				"a_metric": {"metric_name": "A", "type": "rating", "value": 0.9}
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.GetResult(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if res.Status != result.StatusEvaluating {
		t.Errorf("status = %s", res.Status)
	}
	// The backend's metric ordering must survive the decode.
	if len(res.MetricScores.IDs) != 2 || res.MetricScores.IDs[0] != "b_metric" {
		t.Errorf("metric order = %v, want [b_metric a_metric]", res.MetricScores.IDs)
	}
}

func TestGetResultDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.GetResult(context.Background(), "res-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("error = %v, want *APIError with 502", err)
	}
	// Reads surface failures to the polling loop instead of retrying.
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("backend saw %d requests, want 1", n)
	}
}

func TestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetResult(context.Background(), "ghost")
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false", err)
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("IsNotFound matched a non-API error")
	}
}

func TestReEvaluateRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results/res-1/reevaluate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := New(srv.URL).ReEvaluate(context.Background(), "res-1"); err != nil {
		t.Fatalf("ReEvaluate: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("backend saw %d requests, want 2 (one retry)", n)
	}
}

func TestMutationsDoNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "already running", http.StatusConflict)
	}))
	defer srv.Close()

	err := New(srv.URL).ReEvaluate(context.Background(), "res-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("error = %v, want *APIError with 409", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("backend saw %d requests for a 4xx, want 1", n)
	}
}

func TestDeleteResultsBody(t *testing.T) {
	var got struct {
		IDs []string `json:"ids"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/results/delete" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL).DeleteResults(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("DeleteResults: %v", err)
	}
	if len(got.IDs) != 2 || got.IDs[0] != "a" || got.IDs[1] != "b" {
		t.Errorf("delete body ids = %v", got.IDs)
	}
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	healthy, err := New(srv.URL).HealthCheck(context.Background())
	if err != nil || !healthy {
		t.Errorf("HealthCheck = (%v, %v), want healthy", healthy, err)
	}

	srv.Close()
	if _, err := New(srv.URL).HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck against a dead server returned no error")
	}
}
