// Package testutil drives the dossier HTTP modules in tests: it builds
// requests the way API clients send them and decodes the JSON replies.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"dossier/pkg/domain"
	"dossier/pkg/requestcontext"
)

// CallerHeader is the header the caller middleware reads by default.
const CallerHeader = "X-Caller-ID"

// RequestOption adjusts a request before it is served.
type RequestOption func(*http.Request) *http.Request

// AsCaller sends the request on behalf of a member. The header serves routers
// that run the caller middleware; the context value serves handlers mounted
// bare.
func AsCaller(caller string) RequestOption {
	return func(req *http.Request) *http.Request {
		req.Header.Set(CallerHeader, caller)
		return req.WithContext(requestcontext.WithCallerID(req.Context(), domain.CallerID(caller)))
	}
}

// NewRequest builds a request without a body.
func NewRequest(t *testing.T, method, path string, opts ...RequestOption) *http.Request {
	t.Helper()
	return apply(httptest.NewRequest(method, path, nil), opts)
}

// NewJSONRequest builds a request whose body is body encoded as JSON.
func NewJSONRequest(t *testing.T, method, path string, body any, opts ...RequestOption) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "encoding request body")
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return apply(req, opts)
}

func apply(req *http.Request, opts []RequestOption) *http.Request {
	for _, opt := range opts {
		req = opt(req)
	}
	return req
}

// DoRequest serves req with handler and returns the recorded reply.
func DoRequest(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// UnmarshalResponse decodes the reply body into a T. The recorder keeps its
// body, so a reply can be decoded more than once.
func UnmarshalResponse[T any](t *testing.T, rr *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "decoding reply: %s", rr.Body.String())
	return &out
}
