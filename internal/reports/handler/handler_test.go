package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dossier/internal/identitysource"
	"dossier/internal/invalidation"
	pservice "dossier/internal/players/service"
	pstore "dossier/internal/players/store"
	"dossier/internal/reports/models"
	"dossier/internal/reports/service"
	"dossier/internal/reports/store"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/tx"
	"dossier/pkg/testutil"
)

type signalLog []invalidation.Signal

func (l *signalLog) Dispatch(_ context.Context, signal invalidation.Signal) {
	*l = append(*l, signal)
}

func newReportsRouter(t *testing.T) (http.Handler, id.PlayerID, *signalLog) {
	t.Helper()
	source := identitysource.NewStaticSource(
		identitysource.Identity{ExternalID: "E1", Handle: "Nova", DisplayName: "Nova"},
		identitysource.Identity{ExternalID: "E2", Handle: "Echo", DisplayName: "Echo"},
	)
	players, err := pservice.New(pstore.NewInMemory(), source, tx.NewLockingRunner())
	require.NoError(t, err)
	nova, err := players.ResolveByHandle(context.Background(), "Nova")
	require.NoError(t, err)

	svc, err := service.New(store.NewInMemory(), players)
	require.NoError(t, err)
	log := &signalLog{}
	r := chi.NewRouter()
	New(svc, log, nil).Register(r)
	return r, nova.Player.ID, log
}

func postReport(t *testing.T, router http.Handler, caller string, body map[string]string) *http.Response {
	t.Helper()
	var opts []testutil.RequestOption
	if caller != "" {
		opts = append(opts, testutil.AsCaller(caller))
	}
	return testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/reports", body, opts...)).Result()
}

func TestHandleCreate(t *testing.T) {
	router, novaID, log := newReportsRouter(t)

	t.Run("alt account links known handle", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/reports", map[string]string{
			"kind":             "alt_account",
			"main_player_id":   novaID.String(),
			"secondary_handle": "Echo",
		}, testutil.AsCaller("member-1"))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		body := testutil.UnmarshalResponse[createResponse](t, rr)
		require.NotNil(t, body.Report.SecondaryPlayerID)
		assert.Equal(t, "E2", body.Report.SecondaryExternalID)
		assert.Equal(t, []string{"E1", "E2"}, body.Invalidated)
		require.NotEmpty(t, *log)
		assert.Equal(t, []string{"E1", "E2"}, (*log)[len(*log)-1].ExternalIDs)
	})

	t.Run("unknown secondary handle is stored raw", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/reports", map[string]string{
			"kind":             "ALT_ACCOUNT",
			"main_player_id":   novaID.String(),
			"secondary_handle": "Ghost",
		}, testutil.AsCaller("member-1"))
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertInvalidated(t, rr, "E1")
		body := testutil.UnmarshalResponse[createResponse](t, rr)
		assert.Equal(t, models.KindAltAccount, body.Report.Kind)
		assert.Nil(t, body.Report.SecondaryPlayerID)
		assert.Equal(t, []string{"E1"}, body.Invalidated)
	})

	t.Run("rejections", func(t *testing.T) {
		resp := postReport(t, router, "", map[string]string{"kind": "player", "main_player_id": novaID.String(), "body": "x"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = postReport(t, router, "member-1", map[string]string{"kind": "rumor", "main_player_id": novaID.String(), "body": "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = postReport(t, router, "member-1", map[string]string{"kind": "player", "main_player_id": "nope", "body": "x"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = postReport(t, router, "member-1", map[string]string{"kind": "organization", "main_player_id": novaID.String()})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = postReport(t, router, "member-1", map[string]string{"kind": "player", "main_player_id": id.NewPlayerID().String(), "body": "x"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHandleGetAndList(t *testing.T) {
	router, novaID, _ := newReportsRouter(t)

	var created []*createResponse
	for _, body := range []map[string]string{
		{"kind": "player", "main_player_id": novaID.String(), "body": "first"},
		{"kind": "organization", "main_player_id": novaID.String(), "org_name": "Night Owls"},
		{"kind": "player", "main_player_id": novaID.String(), "body": "third"},
	} {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/reports", body, testutil.AsCaller("member-1")))
		testutil.AssertStatus(t, rr, http.StatusCreated)
		created = append(created, testutil.UnmarshalResponse[createResponse](t, rr))
	}

	t.Run("get by id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/reports/"+created[1].Report.ID.String()))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "org_name", "Night Owls")
		testutil.AssertJSONHasKey(t, rr, "tally")

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/reports/"+id.NewReportID().String()))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("list filters by kind and pages", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/reports?player_id="+novaID.String()+"&kind=player&page_size=1"))
		testutil.AssertStatusOK(t, rr)
		page := testutil.UnmarshalResponse[pagination.Page[*models.ReportView]](t, rr)
		assert.Equal(t, 2, page.Total)
		require.Len(t, page.Data, 1)

		rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/reports?player_id="+novaID.String()))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "total", float64(3))
	})

	t.Run("list of an unknown player is empty", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/reports?player_id="+id.NewPlayerID().String()))
		testutil.AssertStatusOK(t, rr)
		assert.JSONEq(t, `{"data":[],"total":0}`, rr.Body.String())
	})

	t.Run("list rejects bad parameters", func(t *testing.T) {
		for _, query := range []string{
			"",
			"?player_id=" + novaID.String() + "&kind=gossip",
			"?player_id=" + novaID.String() + "&page=0",
			"?player_id=" + novaID.String() + "&page_size=abc",
		} {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/reports"+query))
			assert.Equal(t, http.StatusBadRequest, rr.Code, query)
		}
	})
}
