package engine

import (
	"fmt"
	"net/url"
	"strings"
)

// ParsedRequest is an immutable, fully-resolved HTTP request template.
//
// Instances are produced once at startup (by the external Postman/manual
// request source) and never mutated again for the lifetime of a run. Each
// ParsedRequest carries its own prepared-header/body cache so VUs never
// redo substitution work on the hot path.
type ParsedRequest struct {
	Name       string
	FolderPath string
	Method     string
	URL        string
	Headers    []HeaderPair
	Body       string
	IsForm     bool
	FormFields map[string]string
	Query      map[string]string

	prepared *preparedRequest
}

// HeaderPair preserves header insertion order while allowing
// case-insensitive key lookups (spec.md §3: "ordered mapping,
// case-insensitive key equality").
type HeaderPair struct {
	Key   string
	Value string
}

// preparedRequest is the RequestPrep cache: the final header set and body
// bytes after literal {{var}} substitution, computed once per
// ParsedRequest. It is a field on the struct rather than a side map, per
// spec.md §9 ("the cache is not a map but a field").
type preparedRequest struct {
	url     string
	headers []HeaderPair
	body    []byte
}

// NewManualRequest builds the single ParsedRequest produced by the manual
// URL request source described in spec.md §6(b): method GET, no body,
// name "manual".
func NewManualRequest(rawURL string) *ParsedRequest {
	return &ParsedRequest{
		Name:   "manual",
		Method: "GET",
		URL:    rawURL,
	}
}

// CollectionSource is the interface a Postman v2.1 collection parser would
// implement to hand ordered requests to the engine (spec.md §6(a)). The
// parser itself is an external collaborator and is not implemented here.
type CollectionSource interface {
	// Requests returns the ordered list of requests, Postman folder order
	// preserved in FolderPath/Name.
	Requests() []*ParsedRequest
}

// Prepare computes and caches the substituted headers, URL, and body for
// this request given a set of environment overrides. Safe to call once per
// request at startup; subsequent calls are no-ops once the cache is
// populated (substitution is deterministic so recomputation would be
// redundant, not incorrect).
//
// Substitution is literal token replacement (spec.md §9): `{{var}}` tokens
// with no binding in env are left as-is, not treated as an error.
func (r *ParsedRequest) Prepare(env map[string]string) {
	if r.prepared != nil {
		return
	}

	headers := make([]HeaderPair, len(r.Headers))
	for i, h := range r.Headers {
		headers[i] = HeaderPair{Key: h.Key, Value: substitute(h.Value, env)}
	}

	resolvedURL := substitute(r.URL, env)
	if len(r.Query) > 0 {
		resolvedURL = appendQuery(resolvedURL, r.Query, env)
	}

	var body []byte
	switch {
	case r.IsForm:
		body = []byte(encodeForm(r.FormFields, env))
	case r.Body != "":
		body = []byte(substitute(r.Body, env))
	}

	r.prepared = &preparedRequest{
		url:     resolvedURL,
		headers: headers,
		body:    body,
	}
}

// Prepared returns the cached header/body/url bundle. Prepare must have
// been called at least once; RequestPrep happens once at startup for every
// request in a run (spec.md §4.1).
func (r *ParsedRequest) Prepared() (string, []HeaderPair, []byte) {
	if r.prepared == nil {
		r.Prepare(nil)
	}
	return r.prepared.url, r.prepared.headers, r.prepared.body
}

// substitute performs literal {{key}} -> value replacement. Tokens with no
// binding are left untouched (policy, not an error, per spec.md §4.1).
func substitute(input string, env map[string]string) string {
	if input == "" || len(env) == 0 {
		return input
	}
	result := input
	for k, v := range env {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return result
}

func appendQuery(rawURL string, query map[string]string, env map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, substitute(v, env))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func encodeForm(fields map[string]string, env map[string]string) string {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, substitute(v, env))
	}
	return values.Encode()
}

// String implements fmt.Stringer for readable test failures and logs.
func (r *ParsedRequest) String() string {
	if r.FolderPath != "" {
		return fmt.Sprintf("%s/%s %s %s", r.FolderPath, r.Name, r.Method, r.URL)
	}
	return fmt.Sprintf("%s %s %s", r.Name, r.Method, r.URL)
}
