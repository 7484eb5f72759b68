package traversal

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/integuru-go/integuru/internal/dag"
)

// ObfuscationMap maps a literal dynamic-part value to a safe identifier,
// and back, so emitted code can reference a value by name without the real
// captured token ever appearing in generated output (spec.md §4.6).
type ObfuscationMap struct {
	forward map[string]string // literal -> var_<hash>
	inverse map[string]string // var_<hash> -> literal
}

// BuildObfuscationMap collects every distinct dynamic-part literal recorded
// across store's nodes (DynamicParts still outstanding plus ExtractedParts
// already resolved — both are the same kind of per-session literal, spec.md
// §9 — and the values of InputVariables) and assigns each a deterministic
// `var_<hash>` identifier.
func BuildObfuscationMap(store *dag.Store) *ObfuscationMap {
	seen := make(map[string]bool)
	var literals []string
	collect := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		literals = append(literals, s)
	}

	for _, n := range store.All() {
		for _, dp := range n.DynamicParts {
			collect(dp.Value)
		}
		for _, ep := range n.ExtractedParts {
			collect(ep)
		}
		for _, v := range n.InputVariables {
			collect(v)
		}
	}
	sort.Strings(literals)

	m := &ObfuscationMap{forward: make(map[string]string, len(literals)), inverse: make(map[string]string, len(literals))}
	for _, lit := range literals {
		id := safeIdentifier(lit)
		m.forward[lit] = id
		m.inverse[id] = lit
	}
	return m
}

func safeIdentifier(literal string) string {
	sum := sha256.Sum256([]byte(literal))
	return fmt.Sprintf("var_%x", sum)[:32]
}

// Identifier returns the safe identifier for a literal, or "", false if the
// literal was never registered.
func (m *ObfuscationMap) Identifier(literal string) (string, bool) {
	id, ok := m.forward[literal]
	return id, ok
}

// Substitute replaces every occurrence of a known literal in text with its
// safe identifier. Longer literals are substituted first so one literal
// that happens to be a substring of another doesn't get partially masked,
// and the replacement is a single pass, so an identifier already written
// into the output is never masked again by a shorter literal.
func (m *ObfuscationMap) Substitute(text string) string {
	literals := make([]string, 0, len(m.forward))
	for lit := range m.forward {
		literals = append(literals, lit)
	}
	sort.Slice(literals, func(i, j int) bool { return len(literals[i]) > len(literals[j]) })

	pairs := make([]string, 0, 2*len(literals))
	for _, lit := range literals {
		pairs = append(pairs, lit, m.forward[lit])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// SubstituteJSON is Substitute's path-aware counterpart for JSON request and
// response bodies: rather than a blind string replace (which can corrupt a
// literal that contains JSON-significant characters once it's re-embedded),
// it walks jsonText with gjson and rewrites each matching leaf value in
// place with sjson.Set, so the result stays valid JSON. Falls back to the
// plain text Substitute if jsonText doesn't parse as JSON.
func (m *ObfuscationMap) SubstituteJSON(jsonText string) string {
	if !gjson.Valid(jsonText) {
		return m.Substitute(jsonText)
	}

	out := jsonText
	var walk func(value gjson.Result, path string)
	walk = func(value gjson.Result, path string) {
		switch {
		case value.IsObject():
			value.ForEach(func(key, v gjson.Result) bool {
				walk(v, joinPath(path, key.String()))
				return true
			})
		case value.IsArray():
			i := 0
			value.ForEach(func(_, v gjson.Result) bool {
				walk(v, path+"."+strconv.Itoa(i))
				i++
				return true
			})
		default:
			if id, ok := m.forward[value.String()]; ok {
				if updated, err := sjson.Set(out, path, id); err == nil {
					out = updated
				}
			}
		}
	}
	walk(gjson.Parse(jsonText), "")
	return out
}

// Invert reverses Substitute: every safe identifier in text is replaced
// back with the literal it stands for. Applying Substitute then Invert to
// any string is a no-op (spec.md §8's round-trip property).
func (m *ObfuscationMap) Invert(text string) string {
	ids := make([]string, 0, len(m.inverse))
	for id := range m.inverse {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return len(ids[i]) > len(ids[j]) })

	out := text
	for _, id := range ids {
		out = strings.ReplaceAll(out, id, m.inverse[id])
	}
	return out
}
