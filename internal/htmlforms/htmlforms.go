// Package htmlforms recovers hidden-form-field values out of captured HTML
// responses. A dynamic part is sometimes only present in an HTML response as
// the value of a hidden form field (a CSRF token rendered into a <form>
// rather than returned as JSON); goquery lets us walk the DOM the same way
// BetterCallFirewall-Hackerecon's form extractor does and recover those
// values. Used only to enrich the emission stage's snippet prompts
// (internal/traversal's SuggestedPaths hints) — deliberately not wired into
// the discovery engine's upstream producer search, which excludes
// text/html/.js responses as producers regardless of what they contain.
package htmlforms

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HiddenField is a single <input type="hidden"> discovered inside a <form>
// of an HTML document.
type HiddenField struct {
	FormAction string
	Name       string
	Value      string
}

// ExtractHiddenValues walks every <form> in htmlContent and returns the
// name/value pairs of its hidden fields, matching FormExtractor.ExtractForms
// but narrowed to the one thing the emission stage needs: literal values
// that might be one of a node's extracted parts.
func ExtractHiddenValues(htmlContent string) []HiddenField {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil
	}

	var out []HiddenField
	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		action, _ := form.Attr("action")

		form.Find("input").Each(func(_ int, field *goquery.Selection) {
			fieldType, _ := field.Attr("type")
			if !strings.EqualFold(fieldType, "hidden") {
				return
			}
			name, _ := field.Attr("name")
			value, ok := field.Attr("value")
			if name == "" || !ok || value == "" {
				return
			}
			out = append(out, HiddenField{FormAction: action, Name: name, Value: value})
		})
	})
	return out
}
