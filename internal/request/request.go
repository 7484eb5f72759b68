package request

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// excludedHeaderKeywords are the header-name substrings New strips from
// every Request it builds (spec.md §6), whether the headers come from the
// HAR loader's ToRequest or from an ad-hoc caller such as a test.
var excludedHeaderKeywords = []string{
	"cookie", "sec-", "accept", "user-agent", "referer", "relic", "sentry",
	"datadog", "amplitude", "mixpanel", "segment", "heap", "hotjar",
	"fullstory", "pendo", "optimizely", "adobe", "analytics", "tracking",
	"telemetry", "clarity", "matomo", "plausible",
}

// minifiedOnlyHeaders are additionally dropped from the minified rendering
// shown to the oracle during dynamic-part extraction (spec.md §3, §4.2).
var minifiedOnlyHeaders = []string{"referer", "cookie"}

// Request is the immutable, normalized HTTP request record spec.md §3
// describes: method, URL, an ordered case-insensitive header mapping, an
// optional ordered query mapping, and a body. Two Requests are the same
// DAG node when their canonical forms are equal, so every field that
// participates in that equality is rendered deterministically.
type Request struct {
	Method  string
	URL     string
	Headers *orderedmap.OrderedMap[string, string]
	Query   *orderedmap.OrderedMap[string, string]
	Body    Body
}

// New builds a Request from already-split components, stripping excluded
// headers by keyword. headerPairs and queryPairs let callers hand in
// HAR-order slices directly.
func New(method, rawURL string, headerPairs []KV, queryPairs []KV, body Body) *Request {
	if method == "" {
		method = "GET"
	}
	headers := orderedmap.New[string, string]()
	for _, h := range headerPairs {
		if isExcludedHeader(h.Name) {
			continue
		}
		headers.Set(h.Name, h.Value)
	}

	var query *orderedmap.OrderedMap[string, string]
	if len(queryPairs) > 0 {
		query = orderedmap.New[string, string]()
		for _, q := range queryPairs {
			query.Set(q.Name, q.Value)
		}
	}

	return &Request{Method: method, URL: rawURL, Headers: headers, Query: query, Body: body}
}

// KV is a generic ordered name/value pair, used for both headers and
// query parameters so callers don't need two slice types.
type KV struct {
	Name  string
	Value string
}

func isExcludedHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range excludedHeaderKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// HeaderGet performs a case-insensitive header lookup, preserving the
// case-insensitive-equality / case-preserving-display contract of spec.md §3.
func (r *Request) HeaderGet(name string) (string, bool) {
	for pair := r.Headers.Oldest(); pair != nil; pair = pair.Next() {
		if strings.EqualFold(pair.Key, name) {
			return pair.Value, true
		}
	}
	return "", false
}

// Canonical renders the deterministic shell-invocation string used as the
// DAG node identity and as the oracle's default view of a request.
func (r *Request) Canonical() string {
	return r.render(false)
}

// Minified renders the same string with `referer` and `cookie` headers
// omitted, used only for the dynamic-part extraction oracle call.
func (r *Request) Minified() string {
	return r.render(true)
}

func (r *Request) render(minify bool) string {
	var b strings.Builder
	b.WriteString("curl -X ")
	b.WriteString(r.Method)

	hasContentType := false
	for pair := r.Headers.Oldest(); pair != nil; pair = pair.Next() {
		if minify && headerIn(pair.Key, minifiedOnlyHeaders) {
			continue
		}
		if strings.EqualFold(pair.Key, "content-type") {
			hasContentType = true
		}
		b.WriteString(" -H '")
		b.WriteString(pair.Key)
		b.WriteString(": ")
		b.WriteString(pair.Value)
		b.WriteString("'")
	}

	if text, ok := r.Body.Serialize(); ok {
		if r.Body.Kind == BodyJSON && !hasContentType {
			b.WriteString(" -H 'Content-Type: application/json'")
		}
		b.WriteString(" --data '")
		b.WriteString(text)
		b.WriteString("'")
	}

	b.WriteString(" '")
	b.WriteString(r.urlWithQuery())
	b.WriteString("'")
	return b.String()
}

func (r *Request) urlWithQuery() string {
	if r.Query == nil || r.Query.Len() == 0 {
		return r.URL
	}
	var qb strings.Builder
	first := true
	for pair := r.Query.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			qb.WriteByte('&')
		}
		first = false
		qb.WriteString(pair.Key)
		qb.WriteByte('=')
		qb.WriteString(pair.Value)
	}
	return r.URL + "?" + qb.String()
}

func headerIn(name string, set []string) bool {
	for _, s := range set {
		if strings.EqualFold(name, s) {
			return true
		}
	}
	return false
}
