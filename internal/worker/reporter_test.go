package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"texturelab/internal/domain"
)

func TestHTTPReporterPostsWebhook(t *testing.T) {
	var got struct {
		payload webhookPayload
		auth    string
		ctype   string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.ctype = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got.payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reporter := NewHTTPReporter(srv.URL, "worker-secret", srv.Client())
	err := reporter.Report(context.Background(), "gen1", domain.JobStatusCompleted, domain.JobKindGenerate, []string{"https://img/out.png"})
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if got.auth != "Bearer worker-secret" {
		t.Fatalf("Authorization = %q", got.auth)
	}
	if got.ctype != "application/json" {
		t.Fatalf("Content-Type = %q", got.ctype)
	}
	if got.payload.JobID != "gen1" || got.payload.Status != "completed" || got.payload.Type != "generate" {
		t.Fatalf("payload = %+v", got.payload)
	}
	if len(got.payload.Result) != 1 || got.payload.Result[0] != "https://img/out.png" {
		t.Fatalf("result = %v", got.payload.Result)
	}
}

func TestHTTPReporterSurfacesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	reporter := NewHTTPReporter(srv.URL, "worker-secret", srv.Client())
	err := reporter.Report(context.Background(), "gen1", domain.JobStatusProcessing, domain.JobKindGenerate, nil)
	if err == nil {
		t.Fatal("Report returned nil for a 409 response")
	}
}
