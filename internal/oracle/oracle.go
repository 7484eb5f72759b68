// Package oracle abstracts the remote LLM function-calling endpoint the
// discovery engine treats as its only side-effecting dependency (spec.md
// §4.4, §209). Everything downstream depends on the Client interface, never
// on the Genkit types directly, so the engine can be driven by a
// deterministic stub in tests.
package oracle

import "context"

// DynamicPart is a literal the oracle judged to be server-produced inside a
// request: a token, an id, a signature.
type DynamicPart struct {
	Value       string `json:"value" jsonschema:"description=The literal substring, exactly as it appears in the curl command"`
	Description string `json:"description" jsonschema:"description=A short description of what this value appears to represent"`
}

// Client is the four-call oracle interface spec.md §4.4 requires. Every
// call is a single request/response round trip; retries and fallback are
// the caller's responsibility (the Discovery Engine does not retry — spec
// §4.5's cancellation rules treat oracle failure as fatal).
type Client interface {
	// IdentifyActionURL picks the action URL the user described out of the
	// filtered candidate list. The returned URL is guaranteed (by the
	// implementation) to be a member of candidates.
	IdentifyActionURL(ctx context.Context, candidates []string, userPrompt string) (string, error)

	// IdentifyDynamicParts finds literal substrings of a minified canonical
	// curl string that look server-produced rather than literal/user data.
	IdentifyDynamicParts(ctx context.Context, minifiedCurl string) ([]DynamicPart, error)

	// IdentifyInputVariables maps caller-supplied variable names to the
	// literal substring of curl they correspond to, for names actually
	// present in curl.
	IdentifyInputVariables(ctx context.Context, curl string, inputVariables map[string]string) (map[string]string, error)

	// ChooseSimplestRequest picks, by index, the candidate (rendered as a
	// canonical curl string) with the fewest further dependencies.
	ChooseSimplestRequest(ctx context.Context, candidates []string) (int, error)

	// UseAlternateModel switches subsequent calls to the "stronger" model
	// configured for the emission stage (spec §4.4, §4.6). UseDefaultModel
	// reverts. Implementations that have no alternate model configured
	// treat UseAlternateModel as a no-op.
	UseAlternateModel()
	UseDefaultModel()
}

// EmissionClient is the subset of oracle calls the traversal/emission stage
// needs beyond the four core calls: prompting for a per-node code snippet
// and stitching snippets into one program (spec §4.6). Kept separate from
// Client so a minimal discovery-only stub doesn't need to implement it.
type EmissionClient interface {
	EmitSnippet(ctx context.Context, req SnippetRequest) (string, error)
	StitchProgram(ctx context.Context, snippets []string) (string, error)

	// UseAlternateModel/UseDefaultModel let the emission stage switch to the
	// "stronger" model for its two calls and revert afterward — spec §4.6 is
	// explicit that code emission is "the only one where the alternate model
	// selection applies".
	UseAlternateModel()
	UseDefaultModel()
}

// SnippetRequest carries everything spec §4.6 says the per-node emission
// prompt needs: the node's curl, its response's content type, which parts
// of it were extracted as dependency values, suggested JSON key paths for
// those values, and the dynamic parts still outstanding.
type SnippetRequest struct {
	Curl             string
	ResponseType     string
	ExtractedParts   []string
	SuggestedPaths   map[string]string // literal -> dotted JSON path in the response
	RemainingDynamic []string

	// ResponsePreview is the node's JSON response body with every known
	// dynamic-part literal already replaced by its obfuscated identifier,
	// so the oracle can see the exact response shape without ever being
	// shown a real captured token (spec.md §4.6's obfuscation guarantee).
	// Empty when the response wasn't JSON or carried no known literals.
	ResponsePreview string
}
