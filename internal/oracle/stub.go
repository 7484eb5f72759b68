package oracle

import (
	"context"
	"fmt"
)

// Stub is the deterministic, scripted oracle spec.md §209 calls for: "in
// tests, replace it with a deterministic stub that reads scripted
// responses — the engine contains no intrinsic randomness." Each field is
// consulted in call order; a keyed lookup falls back to a default when the
// specific input wasn't scripted, which keeps test setup terse for cases
// that only care about one or two calls.
type Stub struct {
	// ActionURL is returned by IdentifyActionURL regardless of candidates,
	// unless ActionURLErr is set.
	ActionURL    string
	ActionURLErr error

	// DynamicParts maps a minified curl string to the parts that call
	// should return.
	DynamicParts map[string][]DynamicPart

	// InputVariableMatches maps a canonical curl string to the matches
	// that call should return.
	InputVariableMatches map[string]map[string]string

	// SimplestIndex maps a joined-candidates key (see SimplestKey) to the
	// index to return. Defaults to 0 when unscripted.
	SimplestIndex map[string]int

	// Snippets maps a request curl to the snippet EmitSnippet returns.
	Snippets map[string]string
	// StitchedProgram is returned verbatim by StitchProgram.
	StitchedProgram string

	alternate bool
}

var _ Client = (*Stub)(nil)
var _ EmissionClient = (*Stub)(nil)

func (s *Stub) IdentifyActionURL(_ context.Context, candidates []string, _ string) (string, error) {
	if s.ActionURLErr != nil {
		return "", s.ActionURLErr
	}
	for _, c := range candidates {
		if c == s.ActionURL {
			return s.ActionURL, nil
		}
	}
	return "", fmt.Errorf("oracle stub: scripted ActionURL %q is not among the %d candidates given", s.ActionURL, len(candidates))
}

func (s *Stub) IdentifyDynamicParts(_ context.Context, minifiedCurl string) ([]DynamicPart, error) {
	return s.DynamicParts[minifiedCurl], nil
}

func (s *Stub) IdentifyInputVariables(_ context.Context, curl string, inputVariables map[string]string) (map[string]string, error) {
	if matches, ok := s.InputVariableMatches[curl]; ok {
		return matches, nil
	}
	return map[string]string{}, nil
}

func (s *Stub) ChooseSimplestRequest(_ context.Context, candidates []string) (int, error) {
	key := SimplestKey(candidates)
	if idx, ok := s.SimplestIndex[key]; ok {
		if idx < 0 || idx >= len(candidates) {
			return 0, fmt.Errorf("oracle stub: scripted index %d out of range for %d candidates", idx, len(candidates))
		}
		return idx, nil
	}
	return 0, nil
}

func (s *Stub) UseAlternateModel() { s.alternate = true }
func (s *Stub) UseDefaultModel()   { s.alternate = false }

// UsingAlternateModel reports which model is currently "active", so tests
// can assert the emission stage actually switched.
func (s *Stub) UsingAlternateModel() bool { return s.alternate }

func (s *Stub) EmitSnippet(_ context.Context, req SnippetRequest) (string, error) {
	if snippet, ok := s.Snippets[req.Curl]; ok {
		return snippet, nil
	}
	return "// replay: " + req.Curl, nil
}

func (s *Stub) StitchProgram(_ context.Context, snippets []string) (string, error) {
	if s.StitchedProgram != "" {
		return s.StitchedProgram, nil
	}
	joined := ""
	for _, snip := range snippets {
		joined += snip + "\n"
	}
	return joined, nil
}

// SimplestKey joins a candidate list into the map key Stub.SimplestIndex
// uses, exported so tests can script a tie-break without duplicating the
// join logic.
func SimplestKey(candidates []string) string {
	key := ""
	for _, c := range candidates {
		key += c + "\x00"
	}
	return key
}
