package request

import (
	"strings"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func TestNewFiltersExcludedHeaders(t *testing.T) {
	r := New("GET", "https://api.example.com/v1/balance", []KV{
		{Name: "Authorization", Value: "Bearer abc"},
		{Name: "Cookie", Value: "sid=1"},
		{Name: "User-Agent", Value: "Mozilla/5.0"},
		{Name: "X-Request-Id", Value: "r-1"},
	}, nil, NoBody)

	if _, ok := r.HeaderGet("Cookie"); ok {
		t.Fatalf("Cookie header should have been filtered out")
	}
	if _, ok := r.HeaderGet("User-Agent"); ok {
		t.Fatalf("User-Agent header should have been filtered out")
	}
	if v, ok := r.HeaderGet("authorization"); !ok || v != "Bearer abc" {
		t.Fatalf("expected case-insensitive Authorization lookup to succeed, got %q, %v", v, ok)
	}
	if _, ok := r.HeaderGet("X-Request-Id"); !ok {
		t.Fatalf("X-Request-Id should have survived filtering")
	}
}

func TestCanonicalIsDeterministic(t *testing.T) {
	r := New("POST", "https://api.example.com/v1/charge", []KV{
		{Name: "Authorization", Value: "Bearer abc"},
		{Name: "X-Request-Id", Value: "r-1"},
	}, []KV{
		{Name: "account", Value: "42"},
	}, NewBody(`{"amount":100}`, "application/json"))

	first := r.Canonical()
	second := r.Canonical()
	if first != second {
		t.Fatalf("Canonical() is not deterministic: %q != %q", first, second)
	}

	want := "curl -X POST -H 'Authorization: Bearer abc' -H 'X-Request-Id: r-1' -H 'Content-Type: application/json' --data '{\"amount\":100}' 'https://api.example.com/v1/charge?account=42'"
	if first != want {
		t.Fatalf("unexpected canonical string:\n got: %s\nwant: %s", first, want)
	}
}

func TestCanonicalInjectsContentTypeForJSONBody(t *testing.T) {
	r := New("POST", "https://api.example.com/v1/charge", nil, nil, NewBody(`{"amount":100}`, "application/json"))
	got := r.Canonical()
	want := "curl -X POST -H 'Content-Type: application/json' --data '{\"amount\":100}' 'https://api.example.com/v1/charge'"
	if got != want {
		t.Fatalf("unexpected canonical string:\n got: %s\nwant: %s", got, want)
	}
}

func TestMinifiedOmitsRefererAndCookie(t *testing.T) {
	// New strips Referer as an excluded header, so the Request is built
	// directly to exercise Minified's own filtering.
	headers := orderedmap.New[string, string]()
	headers.Set("Referer", "https://example.com/dashboard")
	headers.Set("X-Request-Id", "r-1")
	r := &Request{Method: "GET", URL: "https://api.example.com/v1/balance", Headers: headers, Body: NoBody}

	minified := r.Minified()
	canonical := r.Canonical()

	if canonical == minified {
		t.Fatalf("expected Referer to change the rendering, canonical and minified were equal: %s", canonical)
	}
	if strings.Contains(minified, "Referer") {
		t.Fatalf("Minified() should not include Referer header: %s", minified)
	}
	if !strings.Contains(canonical, "Referer") {
		t.Fatalf("Canonical() should include Referer header: %s", canonical)
	}
}

func TestParseRoundTripsCanonical(t *testing.T) {
	cases := []*Request{
		New("GET", "https://api.example.com/v1/balance", []KV{
			{Name: "Authorization", Value: "Bearer abc"},
			{Name: "X-Request-Id", Value: "r-1"},
		}, []KV{
			{Name: "account", Value: "42"},
			{Name: "verbose", Value: "true"},
		}, NoBody),
		New("POST", "https://api.example.com/v1/charge", []KV{
			{Name: "Authorization", Value: "Bearer abc"},
		}, nil, NewBody(`{"amount":100}`, "application/json")),
		New("POST", "https://api.example.com/v1/webhook", nil, nil, TextBody("raw=1&form=2")),
	}

	for _, r := range cases {
		canonical := r.Canonical()
		parsed, err := Parse(canonical)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", canonical, err)
		}
		roundTripped := parsed.Canonical()
		if roundTripped != canonical {
			t.Fatalf("round trip mismatch:\n original: %s\nroundtrip: %s", canonical, roundTripped)
		}
	}
}
