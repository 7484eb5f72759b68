package traversal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integuru-go/integuru/internal/dag"
	"github.com/integuru-go/integuru/internal/harmodel"
	"github.com/integuru-go/integuru/internal/oracle"
)

func loadHARFixture(t *testing.T, entriesJSON string) *harmodel.Index {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.har")
	content := `{"log":{"version":"1.2","entries":[` + entriesJSON + `]}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	idx, err := harmodel.Load(path)
	require.NoError(t, err)
	return idx
}

func TestEmitterProducesOneSnippetPerReplayableNodeThenStitches(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"GET","url":"https://api.example.com/login","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"token\":\"T1\"}"}}},
		{"startedDateTime":"2026-07-01T10:00:01.000Z","request":{"method":"POST","url":"https://api.example.com/do","headers":[],"queryString":[{"name":"t","value":"T1"}]},"response":{"status":200}}
	`)

	store := dag.New()
	master := store.AddNode(dag.KindMaster, "curl -X POST 'https://api.example.com/do?t=T1'", nil)
	producer := store.AddNode(dag.KindCurl, "curl -X GET 'https://api.example.com/login'", nil)
	require.NoError(t, store.AddEdge(master, producer))
	require.NoError(t, store.UpdateNode(producer, func(n *dag.Node) { n.AddExtractedPart("T1") }))
	cookie := store.AddNode(dag.KindCookie, "session", nil)
	require.NoError(t, store.AddEdge(master, cookie))

	stub := &oracle.Stub{
		Snippets: map[string]string{
			"curl -X GET 'https://api.example.com/login'":    "token := fetchLogin() // T1",
			"curl -X POST 'https://api.example.com/do?t=T1'": "doAction(token) // T1",
		},
		StitchedProgram: "func main() { /* stitched */ }",
	}

	em := NewEmitter(store, har, stub)
	order := ReplayOrder(store)
	program, snippets, err := em.Emit(context.Background(), order)
	require.NoError(t, err)

	assert.Len(t, snippets, 2, "cookie leaf has no request to replay and should be skipped")
	for _, snip := range snippets {
		assert.NotContains(t, snip, "T1", "the real literal must not leak into emitted code")
	}
	assert.Equal(t, "func main() { /* stitched */ }", program)
}

func TestEmitterSuggestsJSONPathForExtractedLiteral(t *testing.T) {
	har := loadHARFixture(t, `
		{"startedDateTime":"2026-07-01T10:00:00.000Z","request":{"method":"GET","url":"https://api.example.com/login","headers":[]},"response":{"status":200,"content":{"mimeType":"application/json","text":"{\"token\":\"T1\"}"}}}
	`)

	store := dag.New()
	producer := store.AddNode(dag.KindCurl, "curl -X GET 'https://api.example.com/login'", nil)
	require.NoError(t, store.UpdateNode(producer, func(n *dag.Node) { n.AddExtractedPart("T1") }))

	var capturedPaths map[string]string
	stub := &captureClient{
		Stub: oracle.Stub{},
		onEmitSnippet: func(req oracle.SnippetRequest) {
			capturedPaths = req.SuggestedPaths
		},
	}

	em := NewEmitter(store, har, stub)
	_, _, err := em.Emit(context.Background(), []string{producer})
	require.NoError(t, err)
	assert.Equal(t, "token", capturedPaths["T1"])
}

// captureClient wraps oracle.Stub to observe the SnippetRequest the emitter
// builds, without needing a full fake EmissionClient implementation.
type captureClient struct {
	oracle.Stub
	onEmitSnippet func(oracle.SnippetRequest)
}

func (c *captureClient) EmitSnippet(ctx context.Context, req oracle.SnippetRequest) (string, error) {
	if c.onEmitSnippet != nil {
		c.onEmitSnippet(req)
	}
	return c.Stub.EmitSnippet(ctx, req)
}
