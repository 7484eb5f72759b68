package traversal

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/integuru-go/integuru/internal/dag"
	"github.com/integuru-go/integuru/internal/harmodel"
	"github.com/integuru-go/integuru/internal/htmlforms"
	"github.com/integuru-go/integuru/internal/oracle"
)

// snippetConcurrency bounds how many per-node snippet prompts run at once.
// Spec §5 keeps discovery itself strictly sequential; this is the one stage
// spec §5 explicitly leaves unconstrained, since each node's snippet prompt
// only needs that node's own curl/response/parts (spec §4.6).
const snippetConcurrency = 4

// Emitter drives spec.md §4.6's optional code-emission stage over an
// already-discovered DAG: one snippet prompt per replay-order node, fanned
// out concurrently, then a single stitching call over the ordered results.
type Emitter struct {
	store      *dag.Store
	canonical  map[string]*harmodel.Entry
	client     oracle.EmissionClient
	obfuscated *ObfuscationMap
}

// NewEmitter builds an Emitter over a finished discovery Store and the HAR
// index it was discovered from.
func NewEmitter(store *dag.Store, har *harmodel.Index, client oracle.EmissionClient) *Emitter {
	return &Emitter{
		store:      store,
		canonical:  harmodel.BuildCanonicalIndex(har),
		client:     client,
		obfuscated: BuildObfuscationMap(store),
	}
}

// Obfuscation exposes the literal->identifier map the emitter built, so a
// caller can apply it to anything emitted outside the Emit call itself
// (e.g. the tree dump).
func (em *Emitter) Obfuscation() *ObfuscationMap { return em.obfuscated }

// Emit generates a snippet for every master/curl node in order (cookie and
// not_found leaves carry no request to replay and are skipped), substitutes
// every dynamic-part literal with its obfuscated identifier, and stitches
// the result into one program via a final oracle call. It returns the
// stitched program and the individual (already-obfuscated) snippets in
// replay order, mirroring the original project's per-node-then-stitch
// emission flow.
func (em *Emitter) Emit(ctx context.Context, order []string) (program string, snippets []string, err error) {
	em.client.UseAlternateModel()
	defer em.client.UseDefaultModel()

	var replayIDs []string
	for _, id := range order {
		n, ok := em.store.GetNode(id)
		if !ok || (n.Kind != dag.KindMaster && n.Kind != dag.KindCurl) {
			continue
		}
		replayIDs = append(replayIDs, id)
	}

	results := make([]string, len(replayIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snippetConcurrency)

	for i, id := range replayIDs {
		i, id := i, id
		g.Go(func() error {
			req, err := em.buildSnippetRequest(id)
			if err != nil {
				return fmt.Errorf("traversal: building snippet request for node %s: %w", id, err)
			}
			code, err := em.client.EmitSnippet(gctx, req)
			if err != nil {
				return fmt.Errorf("traversal: emit_snippet for node %s: %w", id, err)
			}
			results[i] = em.obfuscated.Substitute(code)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	stitched, err := em.client.StitchProgram(ctx, results)
	if err != nil {
		return "", nil, fmt.Errorf("traversal: stitch_program: %w", err)
	}
	return em.obfuscated.Substitute(stitched), results, nil
}

func (em *Emitter) buildSnippetRequest(id string) (oracle.SnippetRequest, error) {
	node, ok := em.store.GetNode(id)
	if !ok {
		return oracle.SnippetRequest{}, fmt.Errorf("no such node %s", id)
	}

	entry := em.canonical[node.Content]
	responseType, responseText := "", ""
	if entry != nil && entry.Response != nil && entry.Response.Content != nil {
		responseType = entry.Response.Content.MimeType
		responseText = entry.Response.Content.Text
	}

	remaining := make([]string, len(node.DynamicParts))
	for i, dp := range node.DynamicParts {
		remaining[i] = dp.Value
	}

	suggested := SuggestedPaths(responseText, node.ExtractedParts)
	for i, hidden := range htmlforms.ExtractHiddenValues(responseText) {
		for _, part := range node.ExtractedParts {
			if hidden.Value == part {
				if _, already := suggested[part]; !already {
					suggested[part] = fmt.Sprintf("form[%d].hidden.%s", i, hidden.Name)
				}
			}
		}
	}

	var responsePreview string
	if responseText != "" && gjson.Valid(responseText) {
		responsePreview = em.obfuscated.SubstituteJSON(responseText)
	}

	return oracle.SnippetRequest{
		Curl:             node.Content,
		ResponseType:     responseType,
		ExtractedParts:   node.ExtractedParts,
		SuggestedPaths:   suggested,
		RemainingDynamic: remaining,
		ResponsePreview:  responsePreview,
	}, nil
}
