package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"dossier/internal/reports/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
)

type reportStore interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error)
	ListByPlayer(ctx context.Context, playerID id.PlayerID, kind models.Kind, page pagination.Params) (pagination.Page[*models.Report], error)
}

var (
	_ reportStore = (*InMemoryStore)(nil)
	_ reportStore = (*PostgresStore)(nil)
)

// storeContractSuite holds behaviour every report store must share. Concrete
// suites supply newStore and a way to make main players exist.
type storeContractSuite struct {
	suite.Suite
	store      reportStore
	newStore   func() reportStore
	seedPlayer func() id.PlayerID
}

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func (s *storeContractSuite) SetupTest() {
	s.store = s.newStore()
}

func (s *storeContractSuite) file(kind models.Kind, main id.PlayerID, at time.Time) *models.Report {
	r, err := models.NewReport(id.NewReportID(), kind, "reporter-1", main, "body", "", "", at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), r))
	return r
}

func (s *storeContractSuite) TestCreateAndFind() {
	ctx := context.Background()
	main := s.seedPlayer()
	secondary := s.seedPlayer()

	r, err := models.NewReport(id.NewReportID(), models.KindAltAccount, "reporter-1", main, "", "", "Ghost", base)
	s.Require().NoError(err)
	r.LinkSecondary(secondary, "E3", "Ghost")
	s.Require().NoError(s.store.Create(ctx, r))

	got, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.KindAltAccount, got.Kind)
	s.Equal(id.CallerID("reporter-1"), got.ReporterID)
	s.Equal("Ghost", got.SecondaryHandle)
	s.Require().NotNil(got.SecondaryPlayerID)
	s.Equal(secondary, *got.SecondaryPlayerID)
	s.True(base.Equal(got.CreatedAt))

	s.ErrorIs(s.store.Create(ctx, r), sentinel.ErrConflict)

	_, err = s.store.FindByID(ctx, id.NewReportID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContractSuite) TestUnlinkedSecondaryRoundTrips() {
	main := s.seedPlayer()
	r, err := models.NewReport(id.NewReportID(), models.KindAffiliatedPeople, "reporter-1", main, "", "", "Nobody", base)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), r))

	got, err := s.store.FindByID(context.Background(), r.ID)
	s.Require().NoError(err)
	s.Nil(got.SecondaryPlayerID)
	s.Empty(got.SecondaryExternalID)
	s.Empty(got.SecondaryDisplayName)
}

func (s *storeContractSuite) TestListByPlayer() {
	ctx := context.Background()
	main := s.seedPlayer()
	other := s.seedPlayer()

	oldest := s.file(models.KindPlayer, main, base)
	middle := s.file(models.KindOrganization, main, base.Add(time.Minute))
	newest := s.file(models.KindPlayer, main, base.Add(2*time.Minute))
	s.file(models.KindPlayer, other, base.Add(3*time.Minute))

	page, err := s.store.ListByPlayer(ctx, main, "", pagination.Params{Page: 1, PageSize: 2})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Require().Len(page.Data, 2)
	s.Equal(newest.ID, page.Data[0].ID)
	s.Equal(middle.ID, page.Data[1].ID)

	page, err = s.store.ListByPlayer(ctx, main, "", pagination.Params{Page: 2, PageSize: 2})
	s.Require().NoError(err)
	s.Require().Len(page.Data, 1)
	s.Equal(oldest.ID, page.Data[0].ID)

	page, err = s.store.ListByPlayer(ctx, main, models.KindPlayer, pagination.Params{Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Equal(2, page.Total)

	page, err = s.store.ListByPlayer(ctx, main, "", pagination.Params{Page: 9, PageSize: 20})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.NotNil(page.Data)
	s.Empty(page.Data)

	page, err = s.store.ListByPlayer(ctx, id.NewPlayerID(), "", pagination.Params{Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Zero(page.Total)
}
