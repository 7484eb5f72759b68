package request

import (
	"encoding/json"
	"strings"
)

// BodyKind discriminates the three shapes a Request body can take.
type BodyKind int

const (
	// BodyAbsent means the request carries no body at all.
	BodyAbsent BodyKind = iota
	// BodyText means the body is an opaque string (non-JSON content-type,
	// or JSON content-type whose text failed to parse).
	BodyText
	// BodyJSON means the body was parsed into a generic JSON value because
	// its content-type header indicated JSON and the text parsed cleanly.
	BodyJSON
)

// Body is the tagged union described in spec.md §3: absent, text, or a
// parsed JSON value.
type Body struct {
	Kind BodyKind
	Text string
	JSON any
}

// NoBody is the zero-value absent body.
var NoBody = Body{Kind: BodyAbsent}

// TextBody wraps a raw string body.
func TextBody(s string) Body {
	return Body{Kind: BodyText, Text: s}
}

// NewBody decides between text and JSON based on the content-type header
// and whether the text parses as JSON, mirroring the original's
// format_request: "Try to parse body as JSON if Content-Type is
// application/json ... Keep body as is if not valid JSON".
func NewBody(text, contentType string) Body {
	if text == "" {
		return NoBody
	}
	if looksLikeJSONContentType(contentType) {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err == nil {
			return Body{Kind: BodyJSON, JSON: v, Text: text}
		}
	}
	return TextBody(text)
}

func looksLikeJSONContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// Serialize renders the body the way the canonical curl string needs it:
// JSON bodies are re-marshaled (so edits to req.Body.JSON round-trip),
// text bodies are passed through verbatim.
func (b Body) Serialize() (string, bool) {
	switch b.Kind {
	case BodyJSON:
		out, err := json.Marshal(b.JSON)
		if err != nil {
			return b.Text, true
		}
		return string(out), true
	case BodyText:
		return b.Text, true
	default:
		return "", false
	}
}
