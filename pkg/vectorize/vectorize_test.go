package vectorize

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQuery(t *testing.T) {
	var gotReq map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "/accounts/acc/vectorize/v2/indexes/perfume_index/query"
		if r.URL.Path != want {
			t.Errorf("path: got %s, want %s", r.URL.Path, want)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"result":{"matches":[{"id":"12"},{"id":"7"},{"id":"3"}]}}`))
	}))
	defer srv.Close()

	c := New("acc", "perfume_index", "e@x.com", "k", WithBaseURL(srv.URL))
	ids, err := c.Query(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 3 || ids[0] != "12" || ids[1] != "7" || ids[2] != "3" {
		t.Fatalf("order not preserved: %v", ids)
	}
	if gotReq["topK"] != float64(5) {
		t.Fatalf("expected topK 5, got %v", gotReq["topK"])
	}
}

func TestQuery_NoMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"result":{"matches":[]}}`))
	}))
	defer srv.Close()

	c := New("acc", "idx", "e", "k", WithBaseURL(srv.URL))
	ids, err := c.Query(context.Background(), []float32{0.5}, 5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}
}

func TestUpsert_NDJSON(t *testing.T) {
	var lines []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-ndjson" {
			t.Errorf("content type: %s", ct)
		}
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New("acc", "idx", "e", "k", WithBaseURL(srv.URL))
	err := c.Upsert(context.Background(), []Vector{
		{ID: "1", Values: []float32{0.1}},
		{ID: "2", Values: []float32{0.2}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d", len(lines))
	}
	var first Vector
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil || first.ID != "1" {
		t.Fatalf("bad first line %q: %v", lines[0], err)
	}
}
