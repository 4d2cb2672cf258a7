package webpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ToolCurator/internal/ports"
)

const maxBodyBytes = 2 << 20

// listingSegments mark aggregator pages that describe many tools at once.
// A candidate must point at a product page, not a directory of products.
var listingSegments = []string{"/search", "/category", "/categories", "/list", "/tools", "/browse", "/tag", "/collections"}

// Fetcher downloads candidate landing pages and extracts readable content
// for verification prompts.
type Fetcher struct {
	client *http.Client
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; a nil client gets a 20s-timeout default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads pageURL, follows redirects, and extracts the title plus
// visible text. Listing pages and non-HTML responses are rejected.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (ports.Page, error) {
	if err := rejectListing(pageURL); err != nil {
		return ports.Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ports.Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "ToolCurator/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return ports.Page{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.Page{}, fmt.Errorf("page returned %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return ports.Page{}, fmt.Errorf("unsupported content type %q", ct)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	// A redirect can land on a listing page even when the lead URL looked fine.
	if err := rejectListing(finalURL); err != nil {
		return ports.Page{}, err
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ports.Page{}, fmt.Errorf("parse page: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	text := collapseWhitespace(doc.Find("body").Text())
	if text == "" {
		return ports.Page{}, fmt.Errorf("page %s has no readable text", finalURL)
	}

	return ports.Page{
		FinalURL: finalURL,
		Title:    title,
		Text:     text,
	}, nil
}

func rejectListing(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	path := strings.ToLower(strings.TrimRight(u.Path, "/"))
	for _, seg := range listingSegments {
		if path == seg || strings.HasPrefix(path, seg+"/") {
			return fmt.Errorf("listing page %s rejected", rawURL)
		}
	}
	return nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
