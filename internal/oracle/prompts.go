package oracle

import (
	"fmt"
	"strings"

	"github.com/integuru-go/integuru/internal/request"
)

func buildActionURLPrompt(candidates []string, userPrompt string) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}

	return fmt.Sprintf(
		`You are helping trace which network request performs a specific action a user described.

=== USER REQUEST ===
%s

=== CANDIDATE URLS (captured from the browser session) ===
%s

=== INSTRUCTIONS ===
1. Pick the single URL from the candidate list that most directly performs the described action.
2. Return the URL copied EXACTLY as it appears in the candidate list above, character for character.
3. Do not invent a URL that isn't in the list.

== CRITICAL OUTPUT RULES ==
Return ONLY valid JSON, no text before or after, no markdown fences.

Return JSON:
{"url": "the chosen URL, copied verbatim"}`,
		userPrompt, b.String(),
	)
}

func buildDynamicPartsPrompt(minifiedCurl string) string {
	return fmt.Sprintf(
		`You are tracing which values inside an HTTP request were produced by the server rather than typed by a user.

=== REQUEST ===
%s

=== WHAT COUNTS AS A DYNAMIC PART ===
- Session tokens, CSRF tokens, signatures, nonces
- Server-assigned IDs (order ids, resource ids, request ids)
- Any value whose exact bytes you'd expect to see echoed back from an earlier response

=== WHAT DOES NOT COUNT ===
- Literal constants baked into the client (API keys shipped in the app, fixed route segments)
- Arbitrary user-entered data (search text, form values the user chose)
- Cookie headers and common tracking/analytics headers — these were already stripped from the request shown to you, ignore any you still see

=== INSTRUCTIONS ===
Return only VALUES, never key names. Return only values you are confident are server-produced.

== CRITICAL OUTPUT RULES ==
Return ONLY valid JSON, no text before or after, no markdown fences.

Return JSON:
{"parts": [{"value": "exact literal substring", "description": "short description of what it looks like"}]}`,
		minifiedCurl,
	)
}

func buildInputVariablesPrompt(curl string, inputVariables map[string]string) string {
	var b strings.Builder
	for name, value := range inputVariables {
		fmt.Fprintf(&b, "- %s = %q\n", name, value)
	}

	return fmt.Sprintf(
		`You are checking whether caller-supplied named values appear literally inside an HTTP request.

=== REQUEST ===
%s

=== CALLER-SUPPLIED VARIABLES ===
%s

=== INSTRUCTIONS ===
For each variable above, check whether its literal value appears somewhere in the request shown. Only
report variables that are actually present — do not guess or report a variable whose value does not
appear verbatim in the request.

== CRITICAL OUTPUT RULES ==
Return ONLY valid JSON, no text before or after, no markdown fences.

Return JSON:
{"matches": {"variable_name": "the literal substring as it appears in the request"}}`,
		curl, b.String(),
	)
}

func buildChooseSimplestPrompt(candidates []string) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i, c)
	}

	return fmt.Sprintf(
		`Multiple earlier requests could plausibly have produced the same value. Pick the one that is
easiest to replay standalone: the fewest further dependencies on other requests, tokens, or state.

=== CANDIDATES ===
%s

== CRITICAL OUTPUT RULES ==
Return ONLY valid JSON, no text before or after, no markdown fences.

Return JSON:
{"index": 0-based index of the simplest candidate}`,
		b.String(),
	)
}

// buildSnippetPrompt and buildStitchPrompt are the two emission-stage
// prompts; per spec.md §4.6 these are "templated prompts to the oracle, not
// algorithmic", so they're rendered from the raymond templates in
// templates.go rather than built with fmt.Sprintf like the four reasoning
// prompts above.
func buildSnippetPrompt(req SnippetRequest) string {
	return renderSnippetTemplate(req)
}

func buildStitchPrompt(snippets []string) string {
	return renderStitchTemplate(snippets)
}

// RenderForOracle produces the view of a request.Request the discovery
// engine hands to the oracle for a given call: the minified form for
// dynamic-part extraction, the full canonical form otherwise.
func RenderForOracle(r *request.Request, minified bool) string {
	if minified {
		return r.Minified()
	}
	return r.Canonical()
}
