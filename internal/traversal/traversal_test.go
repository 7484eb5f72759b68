package traversal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/integuru-go/integuru/internal/dag"
)

// buildChain wires master -> producer -> leaf, mirroring a two-hop
// discovery result, and returns the three node ids in that order.
func buildChain(t *testing.T) (*dag.Store, string, string, string) {
	t.Helper()
	store := dag.New()
	master := store.AddNode(dag.KindMaster, "curl -X POST 'https://api.example.com/do'", nil)
	producer := store.AddNode(dag.KindCurl, "curl -X GET 'https://api.example.com/login'", nil)
	leaf := store.AddNode(dag.KindCookie, "csrf", nil)
	require.NoError(t, store.AddEdge(master, producer))
	require.NoError(t, store.AddEdge(master, leaf))
	return store, master, producer, leaf
}

func TestReplayOrderVisitsProducersBeforeConsumer(t *testing.T) {
	store, master, producer, leaf := buildChain(t)
	order := ReplayOrder(store)

	require.Len(t, order, 3)
	posOf := func(id string) int {
		for i, o := range order {
			if o == id {
				return i
			}
		}
		return -1
	}
	assert.Less(t, posOf(producer), posOf(master), "producer must be replayed before its consumer")
	assert.Less(t, posOf(leaf), posOf(master), "leaf must be replayed before its consumer")
}

func TestReplayOrderVisitsEveryNodeExactlyOnce(t *testing.T) {
	store, _, _, _ := buildChain(t)
	order := ReplayOrder(store)
	seen := make(map[string]int)
	for _, id := range order {
		seen[id]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "node %s visited %d times, want 1", id, count)
	}
}

func TestReplayOrderHandlesCoalescedProducerWithTwoConsumers(t *testing.T) {
	store := dag.New()
	master := store.AddNode(dag.KindMaster, "curl -X POST 'https://api.example.com/do'", nil)
	step1 := store.AddNode(dag.KindCurl, "curl -X POST 'https://api.example.com/step1'", nil)
	shared := store.AddNode(dag.KindCurl, "curl -X GET 'https://api.example.com/init'", nil)
	require.NoError(t, store.AddEdge(master, step1))
	require.NoError(t, store.AddEdge(master, shared))
	require.NoError(t, store.AddEdge(step1, shared))

	order := ReplayOrder(store)
	assert.Len(t, order, 3)

	posOf := func(id string) int {
		for i, o := range order {
			if o == id {
				return i
			}
		}
		return -1
	}
	assert.Less(t, posOf(shared), posOf(step1))
	assert.Less(t, posOf(step1), posOf(master))
}

func TestPrintTreeMarksRevisitedNodeWithoutReExpanding(t *testing.T) {
	store := dag.New()
	master := store.AddNode(dag.KindMaster, "curl -X POST 'https://api.example.com/do'", nil)
	step1 := store.AddNode(dag.KindCurl, "curl -X POST 'https://api.example.com/step1'", nil)
	shared := store.AddNode(dag.KindCurl, "curl -X GET 'https://api.example.com/init'", nil)
	require.NoError(t, store.AddEdge(master, step1))
	require.NoError(t, store.AddEdge(master, shared))
	require.NoError(t, store.AddEdge(step1, shared))

	tree := PrintTree(store, master)
	assert.Contains(t, tree, "already visited")
	assert.Contains(t, tree, string(dag.KindMaster))
}
