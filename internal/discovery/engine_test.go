package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/integuru-go/integuru/internal/dag"
	"github.com/integuru-go/integuru/internal/harmodel"
	"github.com/integuru-go/integuru/internal/oracle"
)

func loadHARFixture(t *testing.T, entriesJSON string) *harmodel.Index {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.har")
	content := `{"log":{"version":"1.2","entries":[` + entriesJSON + `]}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture HAR: %v", err)
	}
	idx, err := harmodel.Load(path)
	if err != nil {
		t.Fatalf("loading fixture HAR: %v", err)
	}
	return idx
}

// Scenario A: a single-hop action whose one dynamic part is produced by
// exactly one earlier exchange.
func TestScenarioASingleHopAction(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"GET","url":"https://api.example.com/login","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"token\":\"T1\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:01.000Z","request":{"method":"POST","url":"https://api.example.com/do","headers":[],"queryString":[{"name":"t","value":"T1"}]},"response":{"status":200}}
	`)

	stub := &oracle.Stub{
		ActionURL: "https://api.example.com/do",
		DynamicParts: map[string][]oracle.DynamicPart{
			"curl -X POST 'https://api.example.com/do?t=T1'": {{Value: "T1", Description: "login token"}},
		},
	}

	eng := New(har, nil, stub)
	result, err := eng.Run(context.Background(), Config{UserPrompt: "perform the action"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	master, _ := eng.Store().GetNode(result.MasterID)
	if master.Kind != dag.KindMaster {
		t.Fatalf("expected master kind, got %s", master.Kind)
	}

	successors := eng.Store().Successors(result.MasterID)
	if len(successors) != 1 {
		t.Fatalf("expected exactly one producer for T1, got %d", len(successors))
	}
	producer, _ := eng.Store().GetNode(successors[0])
	if len(producer.ExtractedParts) != 1 || producer.ExtractedParts[0] != "T1" {
		t.Fatalf("expected producer's extracted_parts to be [T1], got %+v", producer.ExtractedParts)
	}

	for _, n := range eng.Store().All() {
		if n.Kind == dag.KindNotFound {
			t.Fatalf("did not expect any not_found nodes, got one for %q", n.Content)
		}
	}
}

// Scenario B: a dynamic part traced to a cookie-jar entry rather than
// another request.
func TestScenarioBCookieSource(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"POST","url":"https://api.example.com/do","headers":[{"name":"X-CSRF","value":"abc"}]},"response":{"status":200}}
	`)

	stub := &oracle.Stub{
		ActionURL: "https://api.example.com/do",
		DynamicParts: map[string][]oracle.DynamicPart{
			"curl -X POST -H 'X-CSRF: abc' 'https://api.example.com/do'": {{Value: "abc", Description: "csrf token"}},
		},
	}

	eng := New(har, []harmodel.Cookie{{Name: "csrf", Value: "abc"}}, stub)
	result, err := eng.Run(context.Background(), Config{UserPrompt: "do the thing"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	successors := eng.Store().Successors(result.MasterID)
	if len(successors) != 1 {
		t.Fatalf("expected exactly one cookie producer, got %d", len(successors))
	}
	cookieNode, _ := eng.Store().GetNode(successors[0])
	if cookieNode.Kind != dag.KindCookie || cookieNode.Content != "csrf" {
		t.Fatalf("expected a cookie node for csrf, got kind=%s content=%s", cookieNode.Kind, cookieNode.Content)
	}
	if len(cookieNode.ExtractedParts) != 1 || cookieNode.ExtractedParts[0] != "abc" {
		t.Fatalf("expected cookie node's extracted_parts to be [abc], got %+v", cookieNode.ExtractedParts)
	}
}

// Scenario C: dynamic parts that are actually caller-supplied input
// variables never trigger an upstream search.
func TestScenarioCInputVariable(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"POST","url":"https://api.example.com/transfer","headers":[],"queryString":[{"name":"amount","value":"100"},{"name":"to","value":"alice"}]},"response":{"status":200}}
	`)

	curl := "curl -X POST 'https://api.example.com/transfer?amount=100&to=alice'"
	stub := &oracle.Stub{
		ActionURL:    "https://api.example.com/transfer",
		DynamicParts: map[string][]oracle.DynamicPart{curl: {{Value: "100"}, {Value: "alice"}}},
		InputVariableMatches: map[string]map[string]string{
			curl: {"amount": "100", "recipient": "alice"},
		},
	}

	eng := New(har, nil, stub)
	result, err := eng.Run(context.Background(), Config{
		UserPrompt:     "transfer money",
		InputVariables: map[string]string{"amount": "100", "recipient": "alice"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	master, _ := eng.Store().GetNode(result.MasterID)
	if len(master.InputVariables) != 2 || master.InputVariables["amount"] != "100" || master.InputVariables["recipient"] != "alice" {
		t.Fatalf("expected both input variables recorded, got %+v", master.InputVariables)
	}
	if len(eng.Store().Successors(result.MasterID)) != 0 {
		t.Fatalf("expected no upstream search once all dynamic parts are reconciled to input variables")
	}
}

// Scenario D: when several earlier exchanges could equally have produced a
// literal, the oracle's tie-break picks one and only one edge is added.
func TestScenarioDMultiCandidateTieBreak(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"GET","url":"https://api.example.com/a","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"v\":\"ZVAL77\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:01.000Z","request":{"method":"GET","url":"https://api.example.com/b","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"v\":\"ZVAL77\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:02.000Z","request":{"method":"GET","url":"https://api.example.com/c","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"v\":\"ZVAL77\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:03.000Z","request":{"method":"POST","url":"https://api.example.com/do","headers":[],"queryString":[{"name":"x","value":"ZVAL77"}]},"response":{"status":200}}
	`)

	candidates := []string{
		"curl -X GET 'https://api.example.com/a'",
		"curl -X GET 'https://api.example.com/b'",
		"curl -X GET 'https://api.example.com/c'",
	}

	stub := &oracle.Stub{
		ActionURL: "https://api.example.com/do",
		DynamicParts: map[string][]oracle.DynamicPart{
			"curl -X POST 'https://api.example.com/do?x=ZVAL77'": {{Value: "ZVAL77"}},
		},
		SimplestIndex: map[string]int{oracle.SimplestKey(candidates): 1},
	}

	eng := New(har, nil, stub)
	result, err := eng.Run(context.Background(), Config{UserPrompt: "do the thing"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	successors := eng.Store().Successors(result.MasterID)
	if len(successors) != 1 {
		t.Fatalf("expected exactly one producer edge after tie-break, got %d", len(successors))
	}
	producer, _ := eng.Store().GetNode(successors[0])
	if producer.Content != candidates[1] {
		t.Fatalf("expected the oracle's chosen candidate (index 1: %s) to be the producer, got %s", candidates[1], producer.Content)
	}
}

// Scenario E: a literal that appears in no response and no cookie becomes
// a not_found leaf instead of looping or erroring.
func TestScenarioENotFound(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"POST","url":"https://api.example.com/do","headers":[],"queryString":[{"name":"z","value":"ZZNONE"}]},"response":{"status":200}}
	`)

	stub := &oracle.Stub{
		ActionURL: "https://api.example.com/do",
		DynamicParts: map[string][]oracle.DynamicPart{
			"curl -X POST 'https://api.example.com/do?z=ZZNONE'": {{Value: "ZZNONE"}},
		},
	}

	eng := New(har, nil, stub)
	result, err := eng.Run(context.Background(), Config{UserPrompt: "do the thing"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	successors := eng.Store().Successors(result.MasterID)
	if len(successors) != 1 {
		t.Fatalf("expected a single not_found edge, got %d", len(successors))
	}
	notFound, _ := eng.Store().GetNode(successors[0])
	if notFound.Kind != dag.KindNotFound || notFound.Content != "ZZNONE" {
		t.Fatalf("expected a not_found node for ZZNONE, got kind=%s content=%s", notFound.Kind, notFound.Content)
	}
}

// Scenario F: two separate consumers that both need the same upstream
// literal coalesce onto one producer node instead of duplicating it.
func TestScenarioFCoalescedProducer(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"GET","url":"https://api.example.com/init","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"k\":\"SESSKEY9\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:01.000Z","request":{"method":"POST","url":"https://api.example.com/step1","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"c\":\"CSRFZ\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:02.000Z","request":{"method":"POST","url":"https://api.example.com/do","headers":[],"queryString":[{"name":"k","value":"SESSKEY9"},{"name":"c","value":"CSRFZ"}]},"response":{"status":200}}
	`)

	stub := &oracle.Stub{
		ActionURL: "https://api.example.com/do",
		DynamicParts: map[string][]oracle.DynamicPart{
			"curl -X POST 'https://api.example.com/do?k=SESSKEY9&c=CSRFZ'": {{Value: "SESSKEY9"}, {Value: "CSRFZ"}},
			"curl -X POST 'https://api.example.com/step1'":                 {{Value: "SESSKEY9"}},
		},
	}

	eng := New(har, nil, stub)
	_, err := eng.Run(context.Background(), Config{UserPrompt: "do the thing"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var initNodeID string
	for _, n := range eng.Store().All() {
		if n.Content == "curl -X GET 'https://api.example.com/init'" {
			initNodeID = n.ID
		}
	}
	if initNodeID == "" {
		t.Fatalf("expected a single coalesced node for the init producer")
	}

	predecessors := eng.Store().Predecessors(initNodeID)
	if len(predecessors) != 2 {
		t.Fatalf("expected two consumers to point at the coalesced producer, got %d", len(predecessors))
	}

	node, _ := eng.Store().GetNode(initNodeID)
	if len(node.ExtractedParts) != 1 || node.ExtractedParts[0] != "SESSKEY9" {
		t.Fatalf("expected deduplicated extracted_parts [SESSKEY9], got %+v", node.ExtractedParts)
	}
}

func TestEmptyCandidateListIsConfigurationError(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"GET","url":"https://static.example.com/app.css","headers":[]},"response":{"status":200}}
	`)
	eng := New(har, nil, &oracle.Stub{})
	_, err := eng.Run(context.Background(), Config{UserPrompt: "do the thing"})
	if err == nil {
		t.Fatalf("expected a configuration error when no candidate URLs survive filtering")
	}
}

// The max_steps budget must cut the run off and report a partial DAG
// instead of erroring or looping forever.
func TestMaxStepsBudgetStopsRunWithPartialDAG(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"GET","url":"https://api.example.com/more","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"q\":\"Q1\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:01.000Z","request":{"method":"POST","url":"https://api.example.com/do","headers":[],"queryString":[{"name":"q","value":"Q1"}]},"response":{"status":200}}
	`)

	stub := &oracle.Stub{
		ActionURL: "https://api.example.com/do",
		DynamicParts: map[string][]oracle.DynamicPart{
			"curl -X POST 'https://api.example.com/do?q=Q1'": {{Value: "Q1"}},
		},
	}

	eng := New(har, nil, stub)
	result, err := eng.Run(context.Background(), Config{UserPrompt: "do the thing", MaxSteps: 1})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.StepsTaken != 1 {
		t.Fatalf("expected exactly 1 step taken before the budget cut the run off, got %d", result.StepsTaken)
	}
	if !result.BudgetExceeded {
		t.Fatalf("expected BudgetExceeded to be true")
	}

	successors := eng.Store().Successors(result.MasterID)
	if len(successors) != 1 {
		t.Fatalf("expected the one producer discovered before the cutoff to still be recorded, got %d", len(successors))
	}
}
