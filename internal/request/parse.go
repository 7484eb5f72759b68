package request

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	methodPattern = regexp.MustCompile(`^curl -X (\S+)`)
	headerPattern = regexp.MustCompile(`-H '([^']*)'`)
	dataPattern   = regexp.MustCompile(`--data '([^']*)'`)
	urlPattern    = regexp.MustCompile(`'([^']*)'\s*$`)
)

// Parse re-parses a canonical curl string produced by Canonical back into a
// Request. It exists for the round-trip property test (spec.md §8):
// canonical(parse(canonical(r))) must equal canonical(r). It is not a
// general curl-syntax parser — only the exact grammar render() produces.
func Parse(curl string) (*Request, error) {
	m := methodPattern.FindStringSubmatch(curl)
	if m == nil {
		return nil, fmt.Errorf("request: not a canonical curl string: %q", curl)
	}
	method := m[1]

	var headerPairs []KV
	var contentType string
	for _, hm := range headerPattern.FindAllStringSubmatch(curl, -1) {
		name, value, ok := strings.Cut(hm[1], ": ")
		if !ok {
			continue
		}
		headerPairs = append(headerPairs, KV{Name: name, Value: value})
		if strings.EqualFold(name, "content-type") {
			contentType = value
		}
	}

	var body Body
	if dm := dataPattern.FindStringSubmatch(curl); dm != nil {
		body = NewBody(dm[1], contentType)
	}

	um := urlPattern.FindStringSubmatch(curl)
	if um == nil {
		return nil, fmt.Errorf("request: missing trailing URL in %q", curl)
	}
	rawURL := um[1]
	baseURL, queryPairs := splitQuery(rawURL)

	return New(method, baseURL, headerPairs, queryPairs, body), nil
}

func splitQuery(rawURL string) (string, []KV) {
	base, query, found := strings.Cut(rawURL, "?")
	if !found {
		return rawURL, nil
	}
	var pairs []KV
	for _, part := range strings.Split(query, "&") {
		name, value, _ := strings.Cut(part, "=")
		pairs = append(pairs, KV{Name: name, Value: value})
	}
	return base, pairs
}
