package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nextlevelbuilder/eltorchestrator/internal/apperr"
)

func TestExtractor_Extract_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`))
	}))
	defer srv.Close()

	e := New()
	cfg, _ := json.Marshal(Config{Type: "api", URL: srv.URL})
	ds, err := e.Extract(context.Background(), cfg)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if ds.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", ds.NumRows())
	}
}

func TestExtractor_Extract_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := New()
	cfg, _ := json.Marshal(Config{Type: "api", URL: srv.URL})
	_, err := e.Extract(context.Background(), cfg)
	if err == nil {
		t.Fatal("want error for 503")
	}
	if !apperr.IsRetryable(err) {
		t.Error("5xx should be retryable")
	}
}

func TestExtractor_Extract_ClientErrorIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := New()
	cfg, _ := json.Marshal(Config{Type: "api", URL: srv.URL})
	_, err := e.Extract(context.Background(), cfg)
	if err == nil {
		t.Fatal("want error for 404")
	}
	if apperr.IsRetryable(err) {
		t.Error("4xx should not be retryable")
	}
}

func TestExtractor_Extract_MissingURL(t *testing.T) {
	e := New()
	cfg, _ := json.Marshal(Config{Type: "api"})
	if _, err := e.Extract(context.Background(), cfg); err == nil {
		t.Fatal("want error for missing url")
	}
}
