package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostLogSendsEntry(t *testing.T) {
	requireLocalListener(t)
	var got LogSubmission
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/logs" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	err := PostLog(server.Client(), server.URL, "token", LogSubmission{
		Level:   "warning",
		Message: "trigger decode failed",
		Context: map[string]string{
			"agent": "echo",
		},
	})
	if err != nil {
		t.Fatalf("post log: %v", err)
	}
	if got.Level != "warning" || got.Message != "trigger decode failed" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.Context["agent"] != "echo" {
		t.Fatalf("expected context forwarded, got %+v", got.Context)
	}
}

func TestPostLogRequiresMessage(t *testing.T) {
	if err := PostLog(nil, "http://localhost:1", "", LogSubmission{Level: "info"}); err == nil {
		t.Fatalf("expected error for empty message")
	}
}
