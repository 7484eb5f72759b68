package oracle

import (
	"context"
	"fmt"
	"log"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitClient is the production oracle.Client/EmissionClient, backed by
// Firebase Genkit flows the way BetterCallFirewall-Hackerecon's
// internal/llm package wires GenerateData[T] calls: one DefineFlow per
// oracle call, a lookupExchange tool registered through
// EnableExchangeLookup, and plain
// fmt.Errorf-wrapped errors rather than a custom error type.
type GenkitClient struct {
	g              *genkit.Genkit
	defaultModel   string
	alternateModel string
	activeModel    string

	identifyActionURL    func(ctx context.Context, req *actionURLRequest) (*actionURLResponse, error)
	identifyDynamicParts func(ctx context.Context, req *dynamicPartsRequest) (*dynamicPartsResponse, error)
	identifyInputVars    func(ctx context.Context, req *inputVarsRequest) (*inputVarsResponse, error)
	chooseSimplest       func(ctx context.Context, req *chooseSimplestRequest) (*chooseSimplestResponse, error)
	emitSnippet          func(ctx context.Context, req *snippetGenRequest) (*snippetGenResponse, error)
	stitchProgram        func(ctx context.Context, req *stitchRequest) (*stitchResponse, error)

	lookupTool ai.ToolRef
}

// ExchangeLookup is implemented by whatever holds the HAR index, so the
// lookupExchange tool can pull full request/response bodies by node ID
// instead of requiring the caller to inline every exchange in-prompt
// (spec.md's DOMAIN STACK note on the getExchange tool grounding).
type ExchangeLookup interface {
	LookupExchangeByNodeID(nodeID string) (curl string, responseBody string, found bool)
}

// NewGenkitClient wires the four required oracle flows plus the two
// emission-stage flows onto g, mirroring
// DefineAnalystFlow/DefineLeadGenerationFlow's one-function-per-flow shape.
// lookup may be nil at construction time — the discovery stage's node-ID
// index doesn't exist yet when the client is built, since the client is a
// constructor argument to discovery.Engine itself. Call EnableExchangeLookup
// once the DAG exists, before the emission stage's first call.
func NewGenkitClient(g *genkit.Genkit, defaultModel, alternateModel string, lookup ExchangeLookup) *GenkitClient {
	c := &GenkitClient{g: g, defaultModel: defaultModel, alternateModel: alternateModel, activeModel: defaultModel}

	if lookup != nil {
		c.EnableExchangeLookup(lookup)
	}

	c.identifyActionURL = defineFlow(g, "identifyActionURL", func(ctx context.Context, req *actionURLRequest) (*actionURLResponse, error) {
		prompt := buildActionURLPrompt(req.Candidates, req.UserPrompt)
		result, _, err := genkit.GenerateData[actionURLResponse](ctx, g, ai.WithModelName(c.activeModel), ai.WithPrompt(prompt))
		if err != nil {
			return nil, fmt.Errorf("oracle: identify_action_url failed: %w", err)
		}
		return result, nil
	})

	c.identifyDynamicParts = defineFlow(g, "identifyDynamicParts", func(ctx context.Context, req *dynamicPartsRequest) (*dynamicPartsResponse, error) {
		prompt := buildDynamicPartsPrompt(req.MinifiedCurl)
		result, _, err := genkit.GenerateData[dynamicPartsResponse](ctx, g, ai.WithModelName(c.activeModel), ai.WithPrompt(prompt))
		if err != nil {
			return nil, fmt.Errorf("oracle: identify_dynamic_parts failed: %w", err)
		}
		return result, nil
	})

	c.identifyInputVars = defineFlow(g, "identifyInputVariables", func(ctx context.Context, req *inputVarsRequest) (*inputVarsResponse, error) {
		prompt := buildInputVariablesPrompt(req.Curl, req.InputVariables)
		result, _, err := genkit.GenerateData[inputVarsResponse](ctx, g, ai.WithModelName(c.activeModel), ai.WithPrompt(prompt))
		if err != nil {
			return nil, fmt.Errorf("oracle: identify_input_variables failed: %w", err)
		}
		return result, nil
	})

	c.chooseSimplest = defineFlow(g, "chooseSimplestRequest", func(ctx context.Context, req *chooseSimplestRequest) (*chooseSimplestResponse, error) {
		prompt := buildChooseSimplestPrompt(req.Candidates)
		result, _, err := genkit.GenerateData[chooseSimplestResponse](ctx, g, ai.WithModelName(c.activeModel), ai.WithPrompt(prompt))
		if err != nil {
			return nil, fmt.Errorf("oracle: choose_simplest_request failed: %w", err)
		}
		return result, nil
	})

	c.emitSnippet = defineFlow(g, "emitSnippet", func(ctx context.Context, req *snippetGenRequest) (*snippetGenResponse, error) {
		prompt := buildSnippetPrompt(req.Req)
		opts := []ai.GenerateOption{ai.WithModelName(c.activeModel), ai.WithPrompt(prompt)}
		if c.lookupTool != nil {
			opts = append(opts, ai.WithTools(c.lookupTool))
		}
		result, _, err := genkit.GenerateData[snippetGenResponse](ctx, g, opts...)
		if err != nil {
			return nil, fmt.Errorf("oracle: emit_snippet failed: %w", err)
		}
		return result, nil
	})

	c.stitchProgram = defineFlow(g, "stitchProgram", func(ctx context.Context, req *stitchRequest) (*stitchResponse, error) {
		prompt := buildStitchPrompt(req.Snippets)
		result, _, err := genkit.GenerateData[stitchResponse](ctx, g, ai.WithModelName(c.activeModel), ai.WithPrompt(prompt))
		if err != nil {
			return nil, fmt.Errorf("oracle: stitch_program failed: %w", err)
		}
		return result, nil
	})

	return c
}

// defineFlow is a small wrapper around genkit.DefineFlow that throws away
// the *core.Flow handle and returns just its callable Run function, since
// every oracle call here is invoked directly rather than composed into a
// larger traced flow graph the way detective_flow.go chains sub-flows.
func defineFlow[I, O any](g *genkit.Genkit, name string, fn func(ctx context.Context, req I) (O, error)) func(ctx context.Context, req I) (O, error) {
	flow := genkit.DefineFlow(g, name, fn)
	return func(ctx context.Context, req I) (O, error) {
		return flow.Run(ctx, req)
	}
}

// EnableExchangeLookup registers the lookupExchange tool against lookup,
// replacing any previously registered one. Safe to call after construction,
// once the discovery stage has produced a DAG to look nodes up in — the
// tool is only ever consulted from the emitSnippet flow, and c.lookupTool
// is read fresh on every emitSnippet call rather than captured at
// DefineFlow registration time, so a late call here still takes effect.
func (c *GenkitClient) EnableExchangeLookup(lookup ExchangeLookup) {
	c.lookupTool = genkit.DefineTool(
		c.g,
		"lookupExchange",
		"Retrieves the canonical curl command and response body for a previously discovered node, by node ID. Use this instead of asking the caller to repeat full request/response bodies in the prompt.",
		func(toolCtx *ai.ToolContext, input lookupExchangeInput) (lookupExchangeOutput, error) {
			curl, body, found := lookup.LookupExchangeByNodeID(input.NodeID)
			if !found {
				return lookupExchangeOutput{}, fmt.Errorf("oracle: no such node %s", input.NodeID)
			}
			return lookupExchangeOutput{Curl: curl, ResponseBody: body}, nil
		},
	)
}

func (c *GenkitClient) UseAlternateModel() {
	if c.alternateModel == "" {
		log.Printf("⚠️ oracle: no alternate model configured, staying on %s", c.defaultModel)
		return
	}
	c.activeModel = c.alternateModel
	log.Printf("🔀 oracle: switched to alternate model %s", c.alternateModel)
}

func (c *GenkitClient) UseDefaultModel() {
	c.activeModel = c.defaultModel
}

func (c *GenkitClient) IdentifyActionURL(ctx context.Context, candidates []string, userPrompt string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("oracle: identify_action_url called with an empty candidate list")
	}
	resp, err := c.identifyActionURL(ctx, &actionURLRequest{Candidates: candidates, UserPrompt: userPrompt})
	if err != nil {
		return "", err
	}
	for _, cand := range candidates {
		if cand == resp.URL {
			return resp.URL, nil
		}
	}
	return "", fmt.Errorf("oracle: identify_action_url returned %q, which is not in the candidate list", resp.URL)
}

func (c *GenkitClient) IdentifyDynamicParts(ctx context.Context, minifiedCurl string) ([]DynamicPart, error) {
	resp, err := c.identifyDynamicParts(ctx, &dynamicPartsRequest{MinifiedCurl: minifiedCurl})
	if err != nil {
		return nil, err
	}
	return resp.Parts, nil
}

func (c *GenkitClient) IdentifyInputVariables(ctx context.Context, curl string, inputVariables map[string]string) (map[string]string, error) {
	if len(inputVariables) == 0 {
		return map[string]string{}, nil
	}
	resp, err := c.identifyInputVars(ctx, &inputVarsRequest{Curl: curl, InputVariables: inputVariables})
	if err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (c *GenkitClient) ChooseSimplestRequest(ctx context.Context, candidates []string) (int, error) {
	if len(candidates) == 0 {
		return 0, fmt.Errorf("oracle: choose_simplest_request called with no candidates")
	}
	resp, err := c.chooseSimplest(ctx, &chooseSimplestRequest{Candidates: candidates})
	if err != nil {
		return 0, err
	}
	if resp.Index < 0 || resp.Index >= len(candidates) {
		return 0, fmt.Errorf("oracle: choose_simplest_request returned out-of-range index %d for %d candidates", resp.Index, len(candidates))
	}
	return resp.Index, nil
}

func (c *GenkitClient) EmitSnippet(ctx context.Context, req SnippetRequest) (string, error) {
	resp, err := c.emitSnippet(ctx, &snippetGenRequest{Req: req})
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

func (c *GenkitClient) StitchProgram(ctx context.Context, snippets []string) (string, error) {
	resp, err := c.stitchProgram(ctx, &stitchRequest{Snippets: snippets})
	if err != nil {
		return "", err
	}
	return resp.Code, nil
}

type lookupExchangeInput struct {
	NodeID string `json:"nodeID"`
}

type lookupExchangeOutput struct {
	Curl         string `json:"curl"`
	ResponseBody string `json:"responseBody"`
}

type actionURLRequest struct {
	Candidates []string
	UserPrompt string
}

type actionURLResponse struct {
	URL string `json:"url" jsonschema:"description=The candidate URL, copied verbatim, that best matches the user's described action"`
}

type dynamicPartsRequest struct {
	MinifiedCurl string
}

type dynamicPartsResponse struct {
	Parts []DynamicPart `json:"parts" jsonschema:"description=Literal values inside the curl command that look server-produced (tokens, ids, signatures), excluding cookie and tracking headers"`
}

type inputVarsRequest struct {
	Curl           string
	InputVariables map[string]string
}

type inputVarsResponse struct {
	Matches map[string]string `json:"matches" jsonschema:"description=Caller-supplied variable name to the literal substring of curl it corresponds to, for names actually present in curl"`
}

type chooseSimplestRequest struct {
	Candidates []string
}

type chooseSimplestResponse struct {
	Index int `json:"index" jsonschema:"description=0-based index into the candidate list of the request with the fewest further dependencies"`
}

type snippetGenRequest struct {
	Req SnippetRequest
}

type snippetGenResponse struct {
	Code string `json:"code" jsonschema:"description=A callable code snippet replaying this single request"`
}

type stitchRequest struct {
	Snippets []string
}

type stitchResponse struct {
	Code string `json:"code" jsonschema:"description=A single runnable program stitching the snippets together in order"`
}
