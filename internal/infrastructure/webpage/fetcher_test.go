package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFetchExtractsTitleAndText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Alpha Coder</title>
		<script>ignored()</script></head>
		<body><nav>menu</nav><h1>Alpha Coder</h1>
		<p>An AI pair programmer   for the terminal.</p>
		<footer>legal</footer></body></html>`))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())
	page, err := fetcher.Fetch(context.Background(), server.URL+"/product")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if page.Title != "Alpha Coder" {
		t.Fatalf("unexpected title: %q", page.Title)
	}
	if !strings.Contains(page.Text, "An AI pair programmer for the terminal.") {
		t.Fatalf("text not extracted or whitespace not collapsed: %q", page.Text)
	}
	if strings.Contains(page.Text, "ignored()") || strings.Contains(page.Text, "menu") {
		t.Fatalf("script or nav content leaked: %q", page.Text)
	}
}

func TestFetchRejectsListingPages(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(nil)
	for _, path := range []string{"/search", "/category/ai", "/tools", "/browse/new"} {
		if _, err := fetcher.Fetch(context.Background(), "https://example.com"+path); err == nil {
			t.Fatalf("listing path %s must be rejected", path)
		}
	}
}

func TestFetchRejectsListingRedirect(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/product" {
			http.Redirect(w, r, "/search", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>results</body></html>`))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())
	if _, err := fetcher.Fetch(context.Background(), server.URL+"/product"); err == nil {
		t.Fatalf("redirect onto a listing page must be rejected")
	}
}

func TestFetchRejectsNonHTML(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())
	if _, err := fetcher.Fetch(context.Background(), server.URL+"/whitepaper"); err == nil {
		t.Fatalf("non-HTML response must be rejected")
	}
}

func TestFetchRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())
	if _, err := fetcher.Fetch(context.Background(), server.URL+"/missing"); err == nil {
		t.Fatalf("404 must be rejected")
	}
}
