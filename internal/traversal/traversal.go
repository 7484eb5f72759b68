// Package traversal walks the discovery engine's finished DAG Store and
// drives the two things spec.md §4.6 asks for: a reverse-topological replay
// order, and (optionally) code emission over that order. It also carries
// the supplemental DAG text dump from the original Python project's
// integuru/util/print.py (print_dag), kept for operator review.
package traversal

import (
	"fmt"
	"strings"

	"github.com/integuru-go/integuru/internal/dag"
)

// ReplayOrder performs the reverse-topological DFS spec.md §4.6 describes:
// starting from the DAG's sources (normally just the master node), visit a
// node only after every one of its successors (producers) has already been
// visited. The result is a dependency-first list — the order a replay
// script must execute requests in.
func ReplayOrder(store *dag.Store) []string {
	visited := make(map[string]bool)
	var order []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, succ := range store.Successors(id) {
			visit(succ)
		}
		order = append(order, id)
	}

	for _, src := range sortedSources(store) {
		visit(src)
	}
	// Any node unreachable from a source (shouldn't occur in a well-formed
	// graph per spec.md §3's invariants, but traversal must still terminate
	// and account for every node) is appended last.
	for _, n := range store.All() {
		visit(n.ID)
	}
	return order
}

// sortedSources returns Store.Sources() with the master node first, if one
// exists, so the replay order is walked from the master rather than from
// whichever source map iteration yields first.
func sortedSources(store *dag.Store) []string {
	sources := store.Sources()
	for i, id := range sources {
		if n, ok := store.GetNode(id); ok && n.Kind == dag.KindMaster {
			sources[0], sources[i] = sources[i], sources[0]
			break
		}
	}
	return sources
}

// Visited returns the ids in order (typically ReplayOrder's result) as a
// set, for membership checks. ReplayOrder includes every node in the
// store, so this set does not by itself distinguish orphaned nodes.
func Visited(store *dag.Store, order []string) map[string]bool {
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		seen[id] = true
	}
	return seen
}

// PrintTree renders the forward DAG (consumer -> producer, rooted at the
// master node) as a `└──`/`├──` connector tree, matching print_dag's visual
// layout. Cycles are impossible in a terminated run (the engine halts on
// one), but a node revisited through a second edge is still marked
// "(already visited)" rather than re-expanded, exactly as the original does.
func PrintTree(store *dag.Store, rootID string) string {
	var b strings.Builder
	visited := make(map[string]bool)
	printNode(&b, store, rootID, "", true, visited)
	return b.String()
}

func printNode(b *strings.Builder, store *dag.Store, id, prefix string, isLast bool, visited map[string]bool) {
	connector := "├── "
	newPrefix := prefix + "│   "
	if isLast {
		connector = "└── "
		newPrefix = prefix + "    "
	}

	node, ok := store.GetNode(id)
	if !ok {
		fmt.Fprintf(b, "%s%s(missing node %s)\n", prefix, connector, id)
		return
	}

	fmt.Fprintf(b, "%s%s[%s] [node_id: %s]\n", prefix, connector, node.Kind, id)
	if len(node.InputVariables) > 0 {
		fmt.Fprintf(b, "%s    [input_variables: %v]\n", newPrefix, node.InputVariables)
	}
	if len(node.DynamicParts) > 0 {
		fmt.Fprintf(b, "%s    [dynamic_parts: %v]\n", newPrefix, node.DynamicParts)
	}
	if len(node.ExtractedParts) > 0 {
		fmt.Fprintf(b, "%s    [extracted_parts: %v]\n", newPrefix, node.ExtractedParts)
	}
	fmt.Fprintf(b, "%s    [%s]\n", newPrefix, node.Content)

	visited[id] = true

	children := store.Successors(id)
	for i, childID := range children {
		childIsLast := i == len(children)-1
		if visited[childID] {
			connector := "├── "
			if childIsLast {
				connector = "└── "
			}
			fmt.Fprintf(b, "%s%s(already visited) [node_id: %s]\n", newPrefix, connector, childID)
			continue
		}
		printNode(b, store, childID, newPrefix, childIsLast, visited)
	}
}
