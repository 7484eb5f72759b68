// Package discovery implements the fixed-point dependency-graph expansion
// described by spec.md §4.5: seed a master node from the identified action
// URL, then repeatedly extract dynamic parts from the node at the top of a
// LIFO worklist and search upstream for their producers until every node's
// dynamic parts are resolved.
package discovery

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/integuru-go/integuru/internal/dag"
	"github.com/integuru-go/integuru/internal/harmodel"
	"github.com/integuru-go/integuru/internal/oracle"
	"github.com/integuru-go/integuru/internal/progress"
	"github.com/integuru-go/integuru/internal/request"
)

// DefaultMaxSteps is the budget spec.md §4.5 names: "caps oracle spend on
// adversarial captures".
const DefaultMaxSteps = 15

// Config bundles the engine's inputs for one discovery run.
type Config struct {
	UserPrompt     string
	InputVariables map[string]string // caller-supplied name -> literal value
	MaxSteps       int               // 0 means DefaultMaxSteps
}

// Engine runs the single-threaded cooperative expansion loop. It owns no
// goroutines and holds no lock: spec §5 calls the core "single-threaded
// cooperative" and the oracle call is the only suspension point.
type Engine struct {
	har     *harmodel.Index
	cookies harmodel.CookieJar
	oracle  oracle.Client
	store   *dag.Store

	curlIndex   map[string]string // canonical curl -> node id
	cookieIndex map[string]string // cookie name -> node id

	entryByCanonical map[string]*harmodel.Entry // canonical curl -> backing HAR entry

	progress *progress.Hub // optional; nil is a valid no-op sink
}

// WithProgress attaches a progress.Hub that receives discovery milestones
// as they happen, for an optional live viewer. Passing nil (the default)
// leaves the engine silent.
func (e *Engine) WithProgress(hub *progress.Hub) *Engine {
	e.progress = hub
	return e
}

func (e *Engine) notify(eventType progress.EventType, data interface{}) {
	if e.progress == nil {
		return
	}
	e.progress.Broadcast(eventType, data)
}

// New constructs an Engine over an already-loaded HAR index and cookie jar.
func New(har *harmodel.Index, cookies []harmodel.Cookie, client oracle.Client) *Engine {
	e := &Engine{
		har:              har,
		cookies:          cookies,
		oracle:           client,
		store:            dag.New(),
		curlIndex:        make(map[string]string),
		cookieIndex:      make(map[string]string),
		entryByCanonical: make(map[string]*harmodel.Entry),
	}
	for _, entry := range har.Entries() {
		if entry.Request == nil {
			continue
		}
		e.entryByCanonical[harmodel.ToRequest(entry).Canonical()] = entry
	}
	return e
}

// Store exposes the underlying DAG for traversal once Run completes.
func (e *Engine) Store() *dag.Store { return e.store }

// LookupExchangeByNodeID satisfies oracle.ExchangeLookup, letting the
// emission stage's lookupExchange tool pull a node's canonical curl and
// captured response body by ID instead of requiring every exchange to be
// inlined in the snippet prompt. Only meaningful after Run has populated
// the store.
func (e *Engine) LookupExchangeByNodeID(nodeID string) (curl string, responseBody string, found bool) {
	node, ok := e.store.GetNode(nodeID)
	if !ok {
		return "", "", false
	}
	entry := e.entryByCanonical[node.Content]
	if entry == nil || entry.Response == nil || entry.Response.Content == nil {
		return node.Content, "", true
	}
	return node.Content, entry.Response.Content.Text, true
}

// Result is what Run returns: the populated store plus bookkeeping useful
// to the caller (whether the budget was exhausted, etc).
type Result struct {
	MasterID       string
	StepsTaken     int
	BudgetExceeded bool
}

// Run executes the full protocol of spec.md §4.5: action identification,
// master seeding, then iterating the todo stack until it's empty or the
// step budget is exhausted.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	candidates := e.har.ListCandidateURLs()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("discovery: no candidate action URLs in the capture (configuration error)")
	}
	candidateURLs := make([]string, len(candidates))
	for i, c := range candidates {
		candidateURLs[i] = c.URL
	}

	actionURL, err := e.oracle.IdentifyActionURL(ctx, candidateURLs, cfg.UserPrompt)
	if err != nil {
		return nil, fmt.Errorf("discovery: identifying action url: %w", err)
	}

	entry, ok := e.har.Lookup(actionURL)
	if !ok {
		return nil, fmt.Errorf("discovery: action url %q was identified but has no captured exchange", actionURL)
	}

	masterID := e.seedNode(dag.KindMaster, entry)
	todo := []string{masterID}

	steps := 0
	budgetExceeded := false
	for len(todo) > 0 {
		if steps >= maxSteps {
			budgetExceeded = true
			log.Printf("⏱️ discovery: max_steps (%d) reached, emitting partial DAG", maxSteps)
			e.notify(progress.EventBudgetExceeded, map[string]int{"max_steps": maxSteps, "steps_taken": steps})
			break
		}
		steps++

		id := todo[len(todo)-1]
		todo = todo[:len(todo)-1]

		next, err := e.expand(ctx, id, cfg.InputVariables)
		if err != nil {
			return nil, err
		}
		todo = append(todo, next...)

		if cycle := e.store.DetectCycles(); cycle != nil {
			e.notify(progress.EventCycleDetected, map[string]any{"cycle": cycle})
			return nil, fmt.Errorf("discovery: cycle detected after expanding node %s: %v", id, cycle)
		}
	}

	return &Result{MasterID: masterID, StepsTaken: steps, BudgetExceeded: budgetExceeded}, nil
}

// seedNode creates a master/curl node for a freshly-looked-up exchange and
// registers it in curlIndex, coalescing on canonical curl equality.
func (e *Engine) seedNode(kind dag.Kind, entry *harmodel.Entry) string {
	req := harmodel.ToRequest(entry)
	canonical := req.Canonical()

	if existing, ok := e.curlIndex[canonical]; ok {
		return existing
	}

	id := e.store.AddNode(kind, canonical, nil)
	e.curlIndex[canonical] = id
	e.notify(progress.EventNodeCreated, map[string]string{"id": id, "kind": string(kind)})
	return id
}

// expand performs one full protocol iteration (spec §4.5 step 3) over node
// id and returns the ids of newly-discovered producer nodes to push onto
// todo.
func (e *Engine) expand(ctx context.Context, id string, inputVariables map[string]string) ([]string, error) {
	node, ok := e.store.GetNode(id)
	if !ok {
		return nil, fmt.Errorf("discovery: node %s vanished from the store mid-expansion", id)
	}

	entry := e.entryByCanonical[node.Content]
	if entry != nil && strings.HasSuffix(strings.ToLower(urlPath(entry.Request.URL)), ".js") {
		log.Printf("⚪️ discovery: node %s is a .js asset, clearing its dynamic parts", id)
		e.store.UpdateNode(id, func(n *dag.Node) { n.DynamicParts = nil })
		return nil, nil
	}

	req := requestOf(node, entry)

	parts, err := e.oracle.IdentifyDynamicParts(ctx, req.Minified())
	if err != nil {
		return nil, fmt.Errorf("discovery: identify_dynamic_parts on node %s: %w", id, err)
	}

	matches, err := e.oracle.IdentifyInputVariables(ctx, req.Canonical(), inputVariables)
	if err != nil {
		return nil, fmt.Errorf("discovery: identify_input_variables on node %s: %w", id, err)
	}

	remaining := reconcile(parts, matches)

	var newlyEnqueued []string
	for _, part := range remaining {
		_, enqueued, err := e.resolvePart(ctx, id, part.Value)
		if err != nil {
			return nil, err
		}
		if enqueued != "" {
			newlyEnqueued = append(newlyEnqueued, enqueued)
		}
	}

	e.store.UpdateNode(id, func(n *dag.Node) {
		n.DynamicParts = nil
		if len(matches) > 0 {
			n.InputVariables = matches
		}
	})
	e.notify(progress.EventNodeResolved, map[string]string{"id": id})

	return newlyEnqueued, nil
}

// reconcile drops any oracle-identified dynamic part whose literal also
// appears among the caller's input-variable matches (spec §4.5.3.c–d: those
// move to input_variables instead).
func reconcile(parts []oracle.DynamicPart, matches map[string]string) []oracle.DynamicPart {
	matched := make(map[string]bool, len(matches))
	for _, literal := range matches {
		matched[literal] = true
	}
	out := make([]oracle.DynamicPart, 0, len(parts))
	for _, p := range parts {
		if matched[p.Value] {
			continue
		}
		out = append(out, p)
	}
	return out
}

// resolvePart performs the upstream search of spec §4.5.3.e for a single
// literal: cookie match first, then response search, then (if ambiguous)
// the "choose simplest" oracle tie-break. Returns the producer node id
// (always set unless dropped as a .js/html shell) and, separately, the id
// to push onto todo if this is a newly-created curl node.
func (e *Engine) resolvePart(ctx context.Context, consumerID, literal string) (producerID string, enqueued string, err error) {
	if len(literal) < 3 {
		log.Printf("⚠️ discovery: searching for short literal %q, substring matches may be false positives", literal)
	}
	if cookieName, ok := e.findCookieMatch(literal); ok {
		id := e.getOrCreateCookieNode(cookieName, literal)
		if err := e.store.AddEdge(consumerID, id); err != nil {
			return "", "", err
		}
		return id, "", nil
	}

	candidates := e.findResponseCandidates(literal)
	if len(candidates) == 0 {
		id := e.store.AddNode(dag.KindNotFound, literal, nil)
		if err := e.store.AddEdge(consumerID, id); err != nil {
			return "", "", err
		}
		log.Printf("❓ discovery: no producer found for %q", literal)
		e.notify(progress.EventNotFound, map[string]string{"literal": literal, "id": id})
		return id, "", nil
	}

	var chosen *harmodel.Entry
	if len(candidates) == 1 {
		chosen = candidates[0]
	} else {
		rendered := make([]string, len(candidates))
		for i, c := range candidates {
			rendered[i] = harmodel.ToRequest(c).Canonical()
		}
		idx, err := e.oracle.ChooseSimplestRequest(ctx, rendered)
		if err != nil {
			return "", "", fmt.Errorf("discovery: choose_simplest_request: %w", err)
		}
		chosen = candidates[idx]
	}

	if isShellProducer(chosen) {
		return "", "", nil
	}

	producerReq := harmodel.ToRequest(chosen)
	canonical := producerReq.Canonical()

	if existingID, ok := e.curlIndex[canonical]; ok {
		if err := e.store.UpdateNode(existingID, func(n *dag.Node) {
			n.AddExtractedPart(literal)
		}); err != nil {
			return "", "", err
		}
		if err := e.store.AddEdge(consumerID, existingID); err != nil {
			return "", "", err
		}
		return existingID, "", nil
	}

	id := e.store.AddNode(dag.KindCurl, canonical, nil)
	e.curlIndex[canonical] = id
	e.notify(progress.EventNodeCreated, map[string]string{"id": id, "kind": string(dag.KindCurl)})
	if err := e.store.UpdateNode(id, func(n *dag.Node) {
		n.AddExtractedPart(literal)
	}); err != nil {
		return "", "", err
	}
	if err := e.store.AddEdge(consumerID, id); err != nil {
		return "", "", err
	}
	return id, id, nil
}

func (e *Engine) findCookieMatch(literal string) (string, bool) {
	return e.cookies.FindByValue(literal)
}

func (e *Engine) getOrCreateCookieNode(name, literal string) string {
	if id, ok := e.cookieIndex[name]; ok {
		e.store.UpdateNode(id, func(n *dag.Node) {
			n.AddExtractedPart(literal)
		})
		return id
	}
	id := e.store.AddNode(dag.KindCookie, name, nil)
	e.store.UpdateNode(id, func(n *dag.Node) {
		n.AddExtractedPart(literal)
	})
	e.cookieIndex[name] = id
	e.notify(progress.EventNodeCreated, map[string]string{"id": id, "kind": string(dag.KindCookie)})
	return id
}

// findResponseCandidates implements spec §4.5.3.e's two-branch substring
// search: plain-text match in the response but absent from the producer's
// own curl, or a URL-decoded match present in the curl but absent from the
// response (the encoded-in-a-later-URL case).
func (e *Engine) findResponseCandidates(literal string) []*harmodel.Entry {
	lowerLiteral := strings.ToLower(literal)
	decoded, decodeErr := url.QueryUnescape(literal)
	lowerDecoded := strings.ToLower(decoded)

	var out []*harmodel.Entry
	for _, entry := range e.har.Entries() {
		if entry.Request == nil {
			continue
		}
		curl := harmodel.ToRequest(entry).Canonical()
		lowerCurl := strings.ToLower(curl)

		respText := ""
		if entry.Response != nil && entry.Response.Content != nil {
			respText = entry.Response.Content.Text
		}
		lowerResp := strings.ToLower(respText)

		branchA := strings.Contains(lowerResp, lowerLiteral) && !strings.Contains(lowerCurl, lowerLiteral)
		branchB := decodeErr == nil && decoded != literal &&
			strings.Contains(lowerCurl, lowerDecoded) && !strings.Contains(lowerResp, lowerDecoded)

		if branchA || branchB {
			out = append(out, entry)
		}
	}
	return out
}

// isShellProducer drops .js responses and text/html responses from
// consideration as real producers (spec §4.5.3.e, §8 boundary behaviors).
func isShellProducer(entry *harmodel.Entry) bool {
	if strings.HasSuffix(strings.ToLower(urlPath(entry.Request.URL)), ".js") {
		return true
	}
	if entry.Response != nil && entry.Response.Content != nil {
		if strings.Contains(strings.ToLower(entry.Response.Content.MimeType), "text/html") {
			return true
		}
	}
	return false
}

func urlPath(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i != -1 {
		return rawURL[:i]
	}
	return rawURL
}

// requestOf recovers the request.Request view of a node either from its
// backing HAR entry (preferred, keeps full fidelity) or by re-parsing its
// stored canonical curl string as a fallback.
func requestOf(n *dag.Node, entry *harmodel.Entry) *request.Request {
	if entry != nil {
		return harmodel.ToRequest(entry)
	}
	r, err := request.Parse(n.Content)
	if err != nil {
		return request.New("GET", n.Content, nil, nil, request.NoBody)
	}
	return r
}
