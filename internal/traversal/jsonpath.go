package traversal

import (
	"strconv"

	"github.com/tidwall/gjson"
)

// FindJSONPath walks jsonText looking for a scalar value equal to literal
// and returns the dotted gjson path at which it was found, ported from the
// original project's find_json_path (integuru/util/print.py) onto gjson's
// result tree instead of hand-rolled dict/list recursion.
func FindJSONPath(jsonText, literal string) (string, bool) {
	if !gjson.Valid(jsonText) {
		return "", false
	}
	return walkJSONPath(gjson.Parse(jsonText), literal, "")
}

func walkJSONPath(value gjson.Result, literal, path string) (string, bool) {
	switch {
	case value.IsObject():
		var foundPath string
		var found bool
		value.ForEach(func(key, v gjson.Result) bool {
			if p, ok := walkJSONPath(v, literal, joinPath(path, key.String())); ok {
				foundPath, found = p, true
				return false
			}
			return true
		})
		return foundPath, found

	case value.IsArray():
		var foundPath string
		var found bool
		i := 0
		value.ForEach(func(_, v gjson.Result) bool {
			childPath := path + "." + strconv.Itoa(i)
			i++
			if p, ok := walkJSONPath(v, literal, childPath); ok {
				foundPath, found = p, true
				return false
			}
			return true
		})
		return foundPath, found

	default:
		if value.String() == literal {
			return path, true
		}
		return "", false
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// SuggestedPaths builds the literal -> JSON-path map the emission stage's
// snippet prompt wants (spec.md §4.6's "suggested JSON key paths"), given a
// response body and the set of literals a node extracts from it.
func SuggestedPaths(responseText string, literals []string) map[string]string {
	out := make(map[string]string, len(literals))
	for _, lit := range literals {
		if path, ok := FindJSONPath(responseText, lit); ok {
			out[lit] = path
		}
	}
	return out
}
