package harmodel

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/integuru-go/integuru/internal/request"
)

// excludedKeywords mark hosts that are almost never the action the user is
// trying to trace (analytics/ad beacons), ported from the original loader's
// excluded_keywords list.
var excludedKeywords = []string{"google", "taboola", "datadog", "sentry"}

// excludedExtensions are static-asset suffixes that are never themselves
// the dynamic action url, even though they may still be traced as upstream
// producers once referenced by a dynamic part.
var excludedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".css",
	".woff", ".woff2", ".ttf", ".otf", ".eot", ".mp3", ".mp4", ".wav",
	".avi", ".mov", ".flv", ".wmv", ".webm", ".rar", ".7z", ".tar", ".gz",
	".exe", ".dmg",
}

// Index is a loaded HAR archive keyed for the two things the discovery
// engine needs: the ordered candidate-URL list shown to the user/oracle for
// action selection, and the last-entry-wins exchange lookup that resolves
// the chosen action URL to its captured exchange.
type Index struct {
	entries []*Entry
	byURL   map[string]*Entry
}

// Load parses a HAR file at path into an Index.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harmodel: reading %s: %w", path, err)
	}
	var har HAR
	if err := json.Unmarshal(raw, &har); err != nil {
		return nil, fmt.Errorf("harmodel: parsing %s: %w", path, err)
	}
	if har.Log == nil {
		return nil, fmt.Errorf("harmodel: %s has no log entry", path)
	}
	return buildIndex(har.Log.Entries), nil
}

func buildIndex(entries []*Entry) *Index {
	byURL := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		if e.Request == nil || e.Request.URL == "" {
			continue
		}
		byURL[e.Request.URL] = e // last entry for a URL wins, matching build_url_to_req_res_map
	}
	return &Index{entries: entries, byURL: byURL}
}

// Lookup returns the last-captured exchange for a URL, used by the
// discovery engine to seed the master node from the identified action URL.
func (idx *Index) Lookup(url string) (*Entry, bool) {
	e, ok := idx.byURL[url]
	return e, ok
}

// Entries returns every captured exchange, in capture order.
func (idx *Index) Entries() []*Entry {
	return idx.entries
}

// CandidateURL is one entry in the list offered to the oracle/user for
// action-url identification.
type CandidateURL struct {
	URL     string
	Method  string
	Status  int
	Preview string
}

// ListCandidateURLs returns the subset of captured URLs worth surfacing as
// an action-url candidate: excludes tracking hosts and static-asset
// extensions, and truncates the response body to a short preview, mirroring
// get_har_urls in the original loader.
func (idx *Index) ListCandidateURLs() []CandidateURL {
	var out []CandidateURL
	seen := make(map[string]bool, len(idx.entries))
	for _, e := range idx.entries {
		if e.Request == nil || e.Request.URL == "" {
			continue
		}
		url := e.Request.URL
		if seen[url] {
			continue
		}
		if isExcludedExtension(url) || isExcludedEntry(e) {
			continue
		}
		seen[url] = true
		out = append(out, CandidateURL{
			URL:     url,
			Method:  e.Request.Method,
			Status:  statusOf(e),
			Preview: previewOf(e),
		})
	}
	return out
}

func statusOf(e *Entry) int {
	if e.Response == nil {
		return 0
	}
	return e.Response.Status
}

func previewOf(e *Entry) string {
	if e.Response == nil || e.Response.Content == nil {
		return ""
	}
	text := e.Response.Content.Text
	const maxLen = 30
	if len(text) > maxLen {
		return text[:maxLen]
	}
	return text
}

// isExcludedExtension checks the URL path (query string stripped) against
// the static-asset suffix list. `.js`, `.pdf`, `.zip` and `.map` are
// intentionally not in that list, per spec.
func isExcludedExtension(url string) bool {
	path := url
	if i := strings.IndexByte(path, '?'); i != -1 {
		path = path[:i]
	}
	lower := strings.ToLower(path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// isExcludedEntry matches the tracking-keyword list against the URL, every
// header value, and the request body, mirroring the original loader's
// get_har_urls keyword scan across the full request text.
func isExcludedEntry(e *Entry) bool {
	if containsTrackingKeyword(e.Request.URL) {
		return true
	}
	for _, h := range e.Request.Headers {
		if containsTrackingKeyword(h.Value) {
			return true
		}
	}
	if e.Request.PostData != nil && containsTrackingKeyword(e.Request.PostData.Text) {
		return true
	}
	return false
}

func containsTrackingKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range excludedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ToRequest normalizes a HAR entry's request side into the engine's
// request.Request model.
func ToRequest(e *Entry) *request.Request {
	var headerPairs []request.KV
	for _, h := range e.Request.Headers {
		headerPairs = append(headerPairs, request.KV{Name: h.Name, Value: h.Value})
	}
	var queryPairs []request.KV
	for _, q := range e.Request.QueryString {
		queryPairs = append(queryPairs, request.KV{Name: q.Name, Value: q.Value})
	}

	body := request.NoBody
	if pd := e.Request.PostData; pd != nil && pd.Text != "" {
		body = request.NewBody(pd.Text, pd.MimeType)
	}

	return request.New(e.Request.Method, e.Request.URL, headerPairs, queryPairs, body)
}

// BuildCanonicalIndex maps every entry's canonical curl string back to its
// backing HAR entry, so a component that only holds a DAG node's stored
// canonical-curl Content (traversal, emission) can still recover the
// original response body without re-deriving the engine's own index.
func BuildCanonicalIndex(idx *Index) map[string]*Entry {
	out := make(map[string]*Entry, len(idx.entries))
	for _, e := range idx.entries {
		if e.Request == nil {
			continue
		}
		out[ToRequest(e).Canonical()] = e
	}
	return out
}

// LoadCookies parses a browser-exported cookie-jar JSON file into a flat
// list, matching parse_cookie_file_to_dict in the original loader.
func LoadCookies(path string) ([]Cookie, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harmodel: reading cookie file %s: %w", path, err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return nil, fmt.Errorf("harmodel: parsing cookie file %s: %w", path, err)
	}
	return cookies, nil
}
