package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/loqalabs/kadai/internal/shoperr"
)

func TestRunSearchPrintsItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "அரிசி" {
			_, _ = w.Write([]byte(`[{"Item Name":"Ponni Rice","Category":"Grains","Price (₹)":62.5,"Description":"1kg"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	t.Setenv("KADAI_CATALOG_BASE_URL", srv.URL)

	var out bytes.Buffer
	if err := runSearch("", "அரிசி", &out); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := out.String(); got != "Ponni Rice\tGrains\t₹62.5\t1kg\n" {
		t.Fatalf("unexpected output %q", got)
	}

	out.Reset()
	if err := runSearch("", "durian", &out); err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out.String(), "no items found") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunSearchRejectsEmptyTerm(t *testing.T) {
	t.Setenv("KADAI_CATALOG_BASE_URL", "http://127.0.0.1:1")
	err := runSearch("", "  ", &bytes.Buffer{})
	if kind, ok := shoperr.KindOf(err); !ok || kind != shoperr.EmptyQuery {
		t.Fatalf("expected empty query error, got %v", err)
	}
}
