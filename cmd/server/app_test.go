package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "dossier/internal/http"
	"dossier/internal/platform/config"
	"dossier/pkg/testutil"
)

// fakeUpstream serves two profiles, one answering success as 1 and one as
// true. Every other lookup is a 404.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	profiles := map[string]string{
		"nova": `{"success":1,"data":{"id":"E1","handle":"Nova","display_name":"Nova","organizations":[{"sid":"OWLS","name":"Night Owls","rank":"Pilot","main":true}]}}`,
		"echo": `{"success":true,"data":{"id":"E2","handle":"Echo","display_name":"Echo"}}`,
	}
	byID := map[string]string{"E1": profiles["nova"], "E2": profiles["echo"]}

	r := chi.NewRouter()
	serve := func(w http.ResponseWriter, body string, ok bool) {
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
	r.Get("/v1/profiles/handle/{handle}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := profiles[strings.ToLower(chi.URLParam(r, "handle"))]
		serve(w, body, ok)
	})
	r.Get("/v1/profiles/id/{id}", func(w http.ResponseWriter, r *http.Request) {
		body, ok := byID[chi.URLParam(r, "id")]
		serve(w, body, ok)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(upstreamURL string) config.Config {
	cfg := config.Default()
	cfg.IdentitySource.BaseURL = upstreamURL
	return cfg
}

func TestAppEndToEnd(t *testing.T) {
	upstream := fakeUpstream(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := buildApp(context.Background(), testConfig(upstream.URL), logger, appOptions{})
	require.NoError(t, err)
	defer a.Close()

	router := httpapi.NewRouter(httpapi.Config{Logger: logger, Modules: a.modules()})
	member := testutil.AsCaller("member-1")

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/players/resolve?handle=Nova"))
	testutil.AssertStatusOK(t, rr)
	var resolved struct {
		Player struct {
			ID string `json:"id"`
		} `json:"player"`
		Outcome     string   `json:"outcome"`
		Invalidated []string `json:"invalidated"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resolved))
	assert.Equal(t, "created", resolved.Outcome)
	assert.Equal(t, []string{"E1"}, resolved.Invalidated)
	playerID := resolved.Player.ID

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/players/"+playerID+"/affiliations"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "Night Owls")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/reports", map[string]string{
		"kind":             "alt_account",
		"main_player_id":   playerID,
		"secondary_handle": "Ghost",
	}, member))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var created struct {
		Report struct {
			ID                string  `json:"id"`
			SecondaryHandle   string  `json:"secondary_handle"`
			SecondaryPlayerID *string `json:"secondary_player_id"`
		} `json:"report"`
		Invalidated []string `json:"invalidated"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "Ghost", created.Report.SecondaryHandle)
	assert.Nil(t, created.Report.SecondaryPlayerID)
	assert.Equal(t, []string{"E1"}, created.Invalidated)

	votes := "/attestations/alt_account_report/" + created.Report.ID + "/votes"
	for _, typ := range []string{"support", "dispute"} {
		rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, votes, map[string]string{"attestation_type": typ}, member))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertInvalidated(t, rr, "E1")
	}

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/reports?player_id="+playerID))
	testutil.AssertStatusOK(t, rr)
	var listed struct {
		Data []struct {
			Tally map[string]int `json:"tally"`
		} `json:"data"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Total)
	assert.Equal(t, map[string]int{"support": 0, "dispute": 1, "neutral": 0}, listed.Data[0].Tally)

	for range 2 {
		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, votes, member))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertInvalidated(t, rr, "E1")
	}

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/players/resolve?external_id=E2"))
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "outcome", "created")
}

func TestResolveCommand(t *testing.T) {
	upstream := fakeUpstream(t)
	path := filepath.Join(t.TempDir(), "dossier.toml")
	require.NoError(t, os.WriteFile(path, []byte("[identity_source]\nbase_url = \""+upstream.URL+"\"\n\n[log]\nlevel = \"error\"\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "resolve", "Echo"})
	require.NoError(t, cmd.Execute())

	var res struct {
		Player struct {
			ExternalID string `json:"external_id"`
		} `json:"player"`
		Outcome string `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, "E2", res.Player.ExternalID)
	assert.Equal(t, "created", res.Outcome)
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.toml"), "migrate"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	assert.Error(t, cmd.Execute())
}
