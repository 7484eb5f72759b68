package oracle

import (
	"fmt"

	"github.com/mbleigh/raymond"
)

// Code-emission is the one stage spec.md §4.6 calls "templated prompts to
// the oracle, not algorithmic" — so unlike the four reasoning prompts in
// prompts.go, these two are genuine Handlebars-style templates rendered through
// raymond (pulled in transitively by genkit's dotprompt stack; used here
// directly for the one place the spec frames as template-driven).
const snippetPromptTemplate = `Generate a small, callable code snippet that replays a single HTTP request and extracts the
values other steps in a larger replay program will need.

=== REQUEST ===
{{curl}}

=== RESPONSE CONTENT TYPE ===
{{responseType}}

=== VALUES THIS REQUEST'S RESPONSE MUST PRODUCE ===
{{#each extractedParts}}{{this}}, {{/each}}

=== SUGGESTED JSON KEY PATHS FOR THOSE VALUES ===
{{#each suggestedPaths}}- {{@key}} is found at response JSON path {{this}}
{{/each}}

=== VALUES STILL UNRESOLVED ON THIS REQUEST ===
{{#each remainingDynamic}}{{this}}, {{/each}}

=== RESPONSE SHAPE (literals already replaced with safe identifiers) ===
{{responsePreview}}

== CRITICAL OUTPUT RULES ==
Return ONLY valid JSON, no text before or after, no markdown fences.

Return JSON:
{"code": "the snippet as a single string"}`

const stitchPromptTemplate = `Stitch the following snippets, already produced in dependency order (each one's inputs come from
an earlier snippet's outputs), into a single runnable program.

{{#each snippets}}
--- snippet {{@index}} ---
{{this}}
{{/each}}

== CRITICAL OUTPUT RULES ==
Return ONLY valid JSON, no text before or after, no markdown fences.

Return JSON:
{"code": "the full stitched program as a single string"}`

func renderSnippetTemplate(req SnippetRequest) string {
	out, err := raymond.Render(snippetPromptTemplate, map[string]interface{}{
		"curl":             req.Curl,
		"responseType":     req.ResponseType,
		"extractedParts":   req.ExtractedParts,
		"suggestedPaths":   req.SuggestedPaths,
		"remainingDynamic": req.RemainingDynamic,
		"responsePreview":  req.ResponsePreview,
	})
	if err != nil {
		// raymond only errors on a malformed template, which is a
		// programmer error here (the template is a constant), not a
		// runtime condition — fall back to a minimal prompt rather than
		// panic mid-emission.
		return fmt.Sprintf("Generate a snippet replaying: %s", req.Curl)
	}
	return out
}

func renderStitchTemplate(snippets []string) string {
	out, err := raymond.Render(stitchPromptTemplate, map[string]interface{}{"snippets": snippets})
	if err != nil {
		return "Stitch these snippets into one program:\n" + fmt.Sprint(snippets)
	}
	return out
}
