// Package harmodel parses HAR 1.2 archives and cookie snapshots into the
// normalized records the discovery engine operates on.
package harmodel

import (
	"strings"
	"time"
)

// HAR is the top-level object of a HAR archive.
type HAR struct {
	Log *Log `json:"log"`
}

// Log is the HAR request/response log.
type Log struct {
	Version string  `json:"version"`
	Creator *Creator `json:"creator,omitempty"`
	Entries []*Entry `json:"entries"`
}

// Creator identifies the program that captured the archive.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry is one captured request/response pair, in capture order.
type Entry struct {
	StartedDateTime time.Time `json:"startedDateTime"`
	Request         *RawRequest  `json:"request"`
	Response        *RawResponse `json:"response,omitempty"`
}

// RawRequest is the HAR request shape, before normalization.
type RawRequest struct {
	Method      string        `json:"method"`
	URL         string        `json:"url"`
	Headers     []RawHeader   `json:"headers"`
	QueryString []RawQueryArg `json:"queryString"`
	PostData    *RawPostData  `json:"postData,omitempty"`
}

// RawResponse is the HAR response shape, before normalization.
type RawResponse struct {
	Status  int         `json:"status"`
	Content *RawContent `json:"content,omitempty"`
}

// RawHeader is a single name/value header entry.
type RawHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawQueryArg is a single query-string parameter.
type RawQueryArg struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawPostData describes a request body.
type RawPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// RawContent describes a response body.
type RawContent struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// Cookie is a single cookie-jar record as captured by the browser-side tool.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  string `json:"expires,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}

// CookieJar is the flat cookie list LoadCookies returns, with the
// substring lookup the discovery engine's cookie-match step needs. Ported
// from find_key_by_string_in_value in the original project's
// integration_agent/agent.py.
type CookieJar []Cookie

// FindByValue returns the name of the first cookie whose value contains
// literal, matching spec.md §4.5.3.e's "cookie match first" rule.
func (j CookieJar) FindByValue(literal string) (string, bool) {
	for _, c := range j {
		if strings.Contains(c.Value, literal) {
			return c.Name, true
		}
	}
	return "", false
}
