package handler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/attestation/adapters"
	"dossier/internal/attestation/models"
	"dossier/internal/attestation/service"
	"dossier/internal/attestation/store"
	"dossier/internal/invalidation"
	pmodels "dossier/internal/players/models"
	pstore "dossier/internal/players/store"
	rstore "dossier/internal/reports/store"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/testutil"
)

type countingInvalidator struct {
	calls int
	last  invalidation.Signal
}

func (c *countingInvalidator) Dispatch(_ context.Context, signal invalidation.Signal) {
	c.calls++
	c.last = signal
}

func newAttestationRouter(t *testing.T) (http.Handler, string, *countingInvalidator) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	players := pstore.NewInMemory()
	player, err := pmodels.NewPlayer(id.NewPlayerID(), "E1", "Nova", "Nova", "", now)
	require.NoError(t, err)
	require.NoError(t, players.Create(ctx, player))
	tag, err := pmodels.NewTag(id.NewTagID(), player.ID, "member-1", "trader", now)
	require.NoError(t, err)
	tag, _, err = players.CreateTag(ctx, tag)
	require.NoError(t, err)

	svc, err := service.New(store.NewInMemory(), adapters.NewOwnerResolver(players, rstore.NewInMemory()))
	require.NoError(t, err)
	inv := &countingInvalidator{}
	r := chi.NewRouter()
	New(svc, inv, nil).Register(r)
	return r, "/attestations/tag/" + tag.ID.String(), inv
}

func TestVoteLifecycle(t *testing.T) {
	router, base, inv := newAttestationRouter(t)

	vote := func(caller, typ string) *voteResponse {
		req := testutil.NewJSONRequest(t, http.MethodPut, base+"/votes", map[string]string{"attestation_type": typ}, testutil.AsCaller(caller))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)
		return testutil.UnmarshalResponse[voteResponse](t, rr)
	}

	first := vote("U1", "support")
	assert.Equal(t, models.TypeSupport, first.Attestation.Type)
	assert.Equal(t, []string{"E1"}, first.Invalidated)
	assert.Equal(t, 1, inv.calls)

	second := vote("U1", "DISPUTE")
	assert.Equal(t, first.Attestation.ID, second.Attestation.ID)
	assert.Equal(t, models.TypeDispute, second.Attestation.Type)
	vote("U2", "support")

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/votes"))
	testutil.AssertStatusOK(t, rr)
	page := testutil.UnmarshalResponse[pagination.Page[*models.Attestation]](t, rr)
	assert.Equal(t, 2, page.Total)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/tally"))
	testutil.AssertStatusOK(t, rr)
	assert.JSONEq(t, `{"support":1,"dispute":1,"neutral":0}`, rr.Body.String())

	for range 2 {
		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, base+"/votes", testutil.AsCaller("U1")))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertInvalidated(t, rr, "E1")
	}
	assert.Equal(t, []string{"E1"}, inv.last.ExternalIDs)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, base+"/tally"))
	assert.JSONEq(t, `{"support":1,"dispute":0,"neutral":0}`, rr.Body.String())
}

func TestVoteRejections(t *testing.T) {
	router, base, _ := newAttestationRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, base+"/votes", map[string]string{"attestation_type": "support"}))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, base+"/votes", map[string]string{"attestation_type": "meh"}, testutil.AsCaller("U1")))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/attestations/poll/"+uuid.NewString()+"/votes", map[string]string{"attestation_type": "support"}, testutil.AsCaller("U1")))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/attestations/tag/not-a-uuid/votes", map[string]string{"attestation_type": "support"}, testutil.AsCaller("U1")))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/attestations/comment/"+uuid.NewString()+"/votes", map[string]string{"attestation_type": "support"}, testutil.AsCaller("U1")))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/attestations/player_report/"+uuid.NewString()+"/votes"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/attestations/tag/"+uuid.NewString()+"/tally"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/attestations/player_report/"+strings.TrimPrefix(base, "/attestations/tag/")+"/tally"))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}
