package engine

import "testing"

func TestParsedRequest_PrepareSubstitutesLiteralTokens(t *testing.T) {
	req := &ParsedRequest{
		Name:    "get-user",
		Method:  "GET",
		URL:     "{{baseUrl}}/users/{{id}}",
		Headers: []HeaderPair{{Key: "Authorization", Value: "Bearer {{token}}"}},
	}

	req.Prepare(map[string]string{
		"baseUrl": "https://api.example.com",
		"id":      "42",
		"token":   "secret",
	})

	url, headers, _ := req.Prepared()
	if url != "https://api.example.com/users/42" {
		t.Fatalf("unexpected url: %s", url)
	}
	if headers[0].Value != "Bearer secret" {
		t.Fatalf("unexpected header value: %s", headers[0].Value)
	}
}

func TestParsedRequest_PrepareLeavesUnboundTokensUntouched(t *testing.T) {
	req := &ParsedRequest{Method: "GET", URL: "{{baseUrl}}/ping"}
	req.Prepare(map[string]string{})

	url, _, _ := req.Prepared()
	if url != "{{baseUrl}}/ping" {
		t.Fatalf("expected unbound token left as-is, got: %s", url)
	}
}

func TestParsedRequest_PrepareIsIdempotent(t *testing.T) {
	req := &ParsedRequest{Method: "GET", URL: "{{baseUrl}}/ping"}
	req.Prepare(map[string]string{"baseUrl": "https://first.example.com"})
	req.Prepare(map[string]string{"baseUrl": "https://second.example.com"})

	url, _, _ := req.Prepared()
	if url != "https://first.example.com/ping" {
		t.Fatalf("expected cache from first Prepare call to stick, got: %s", url)
	}
}

func TestParsedRequest_PrepareEncodesFormBody(t *testing.T) {
	req := &ParsedRequest{
		Method:     "POST",
		URL:        "https://api.example.com/login",
		IsForm:     true,
		FormFields: map[string]string{"username": "{{user}}"},
	}
	req.Prepare(map[string]string{"user": "alice"})

	_, _, body := req.Prepared()
	if string(body) != "username=alice" {
		t.Fatalf("unexpected form body: %s", body)
	}
}

func TestParsedRequest_PrepareAppendsQueryParams(t *testing.T) {
	req := &ParsedRequest{
		Method: "GET",
		URL:    "https://api.example.com/search",
		Query:  map[string]string{"q": "{{term}}"},
	}
	req.Prepare(map[string]string{"term": "golang"})

	url, _, _ := req.Prepared()
	if url != "https://api.example.com/search?q=golang" {
		t.Fatalf("unexpected url: %s", url)
	}
}

func TestNewManualRequest(t *testing.T) {
	req := NewManualRequest("https://example.com/health")
	if req.Name != "manual" || req.Method != "GET" || req.URL != "https://example.com/health" {
		t.Fatalf("unexpected manual request: %+v", req)
	}
}

func TestParsedRequest_String(t *testing.T) {
	req := &ParsedRequest{Name: "ping", FolderPath: "health", Method: "GET", URL: "https://example.com"}
	if got := req.String(); got != "health/ping GET https://example.com" {
		t.Fatalf("unexpected String(): %s", got)
	}
}
