package together

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	c := New("secret", WithBaseURL(srv.URL))
	out, err := c.Complete(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected hello, got %q", out)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotReq["model"] != DefaultModel {
		t.Fatalf("expected model %s, got %v", DefaultModel, gotReq["model"])
	}
	if gotReq["max_tokens"] != float64(400) {
		t.Fatalf("expected max_tokens 400, got %v", gotReq["max_tokens"])
	}
	if gotReq["temperature"] != 0.7 || gotReq["top_p"] != 0.7 {
		t.Fatalf("unexpected sampling params: %v / %v", gotReq["temperature"], gotReq["top_p"])
	}
}

func TestComplete_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New("k", WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New("k", WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}
