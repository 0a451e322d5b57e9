package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

type errorReply struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	assert.Equal(t, want, rr.Code, "status; body: %s", rr.Body.String())
}

func AssertStatusOK(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	AssertStatus(t, rr, http.StatusOK)
}

// AssertStatusAndError checks an error reply's status and its error code.
func AssertStatusAndError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	AssertStatus(t, rr, status)
	assert.Equal(t, code, UnmarshalResponse[errorReply](t, rr).Error)
}

// AssertJSONContains checks one top-level field of a JSON object reply.
// Numbers decode as float64.
func AssertJSONContains(t *testing.T, rr *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	obj := *UnmarshalResponse[map[string]any](t, rr)
	assert.Equal(t, want, obj[key], "field %q", key)
}

func AssertJSONHasKey(t *testing.T, rr *httptest.ResponseRecorder, key string) {
	t.Helper()
	obj := *UnmarshalResponse[map[string]any](t, rr)
	assert.Contains(t, obj, key)
}

// AssertInvalidated checks the external ids a mutating reply asks caches to
// drop, in order.
func AssertInvalidated(t *testing.T, rr *httptest.ResponseRecorder, externalIDs ...string) {
	t.Helper()
	reply := UnmarshalResponse[struct {
		Invalidated []string `json:"invalidated"`
	}](t, rr)
	if len(externalIDs) == 0 {
		assert.Empty(t, reply.Invalidated)
		return
	}
	assert.Equal(t, externalIDs, reply.Invalidated)
}
