// Package dag holds the discovery engine's dependency graph: the nodes
// found while tracing an action back to its inputs, and the edges recording
// which node supplied a dynamic part to which.
package dag

import "github.com/google/uuid"

// Kind discriminates the four node shapes spec.md §4 describes.
type Kind string

const (
	// KindMaster is the root node: the action the user asked to trace.
	KindMaster Kind = "master"
	// KindCurl is a request discovered while tracing a dynamic part back
	// to the exchange that produced it.
	KindCurl Kind = "curl"
	// KindCookie is a leaf node: a dynamic part traced to a cookie jar
	// entry rather than another request.
	KindCookie Kind = "cookie"
	// KindNotFound is a leaf node recorded when no producer could be
	// found for a dynamic part, so the engine can report the gap instead
	// of silently dropping it.
	KindNotFound Kind = "not_found"
)

// DynamicPart is one value inside a request that the oracle judged to be
// produced somewhere else (a token, an id, a signature) rather than a
// literal or user-supplied input.
type DynamicPart struct {
	Value       string
	Description string
	JSONPath    string // set when the value lives inside a JSON body/response
}

// Node is a single vertex of the graph: either the traced action itself, a
// request discovered as a producer, or a leaf (cookie / not-found).
type Node struct {
	ID             string
	Kind           Kind
	Content        string // canonical curl string, cookie name, or (not_found) the unresolved literal
	DynamicParts   []DynamicPart
	ExtractedParts []string          // literals this node exposes to its consumers, insertion order, deduped
	InputVariables map[string]string // caller-supplied variable name -> the literal as it appears in this request
}

// AddExtractedPart appends literal to ExtractedParts unless it's already
// present, preserving first-seen order per spec.md §3/§5's ordering
// guarantees for extracted_parts.
func (n *Node) AddExtractedPart(literal string) {
	for _, existing := range n.ExtractedParts {
		if existing == literal {
			return
		}
	}
	n.ExtractedParts = append(n.ExtractedParts, literal)
}

func newID() string {
	return uuid.NewString()
}
