package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"dossier/internal/players/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
)

// playerStore is the full surface both implementations provide.
type playerStore interface {
	Create(ctx context.Context, player *models.Player) error
	Update(ctx context.Context, player *models.Player) error
	Touch(ctx context.Context, playerID id.PlayerID, observedAt time.Time) error
	FindByID(ctx context.Context, playerID id.PlayerID) (*models.Player, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Player, error)
	FindByCurrentHandle(ctx context.Context, handle string) (*models.Player, error)
	SearchCurrent(ctx context.Context, term string, limit int) ([]*models.Player, error)
	SearchHistorical(ctx context.Context, term string, limit int) ([]*models.Player, error)
	UpsertHandle(ctx context.Context, entry *models.HandleHistory) error
	ListHandles(ctx context.Context, playerID id.PlayerID) ([]*models.HandleHistory, error)
	ReconcileAffiliations(ctx context.Context, playerID id.PlayerID, current []*models.OrgAffiliation, now time.Time) error
	ListAffiliations(ctx context.Context, playerID id.PlayerID) ([]*models.OrgAffiliation, error)
	CreateComment(ctx context.Context, comment *models.Comment) error
	FindComment(ctx context.Context, commentID id.CommentID) (*models.Comment, error)
	ListComments(ctx context.Context, playerID id.PlayerID, page pagination.Params) (pagination.Page[*models.Comment], error)
	CreateTag(ctx context.Context, tag *models.Tag) (*models.Tag, bool, error)
	FindTag(ctx context.Context, tagID id.TagID) (*models.Tag, error)
	ListTags(ctx context.Context, playerID id.PlayerID) ([]*models.Tag, error)
}

var (
	_ playerStore = (*InMemoryStore)(nil)
	_ playerStore = (*PostgresStore)(nil)
)

// storeContractSuite holds behaviour every player store must share. Concrete
// suites embed it and supply newStore.
type storeContractSuite struct {
	suite.Suite
	store    playerStore
	newStore func() playerStore
}

var base = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func (s *storeContractSuite) SetupTest() {
	s.store = s.newStore()
}

func (s *storeContractSuite) seed(externalID, handle string, at time.Time) *models.Player {
	p, err := models.NewPlayer(id.NewPlayerID(), externalID, handle, handle, "", at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), p))
	s.Require().NoError(s.store.UpsertHandle(context.Background(), models.NewHandleHistory(p, at)))
	return p
}

func (s *storeContractSuite) TestCreate_DuplicateExternalIDConflicts() {
	ctx := context.Background()
	s.seed("E1", "Nova", base)

	dup, err := models.NewPlayer(id.NewPlayerID(), "E1", "Impostor", "", "", base)
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	found, err := s.store.FindByExternalID(ctx, "E1")
	s.Require().NoError(err)
	s.Equal("Nova", found.CurrentHandle)
}

func (s *storeContractSuite) TestConcurrentCreate_ExactlyOneWins() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var created, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := models.NewPlayer(id.NewPlayerID(), "E2", "Ghost", "", "", base)
			if err != nil {
				return
			}
			switch err := s.store.Create(ctx, p); err {
			case nil:
				created.Add(1)
			case sentinel.ErrConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *storeContractSuite) TestFindByCurrentHandle() {
	ctx := context.Background()
	s.seed("E1", "Nova", base)
	newer := s.seed("E9", "nova", base.Add(time.Hour))

	found, err := s.store.FindByCurrentHandle(ctx, "NOVA")
	s.Require().NoError(err)
	s.Equal(newer.ID, found.ID, "most recently observed player wins a shared handle")

	_, err = s.store.FindByCurrentHandle(ctx, "Ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContractSuite) TestUpdateAndTouch() {
	ctx := context.Background()
	p := s.seed("E1", "Nova", base)

	_, err := p.ApplySync("Nova2", "Nova", "https://cdn.test/n.png", base.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Update(ctx, p))

	s.Require().NoError(s.store.Touch(ctx, p.ID, base.Add(2*time.Hour)))
	s.Require().NoError(s.store.Touch(ctx, p.ID, base), "touch never moves time backwards")

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Nova2", found.CurrentHandle)
	s.Equal("https://cdn.test/n.png", found.AvatarURL)
	s.True(found.LastObservedAt.Equal(base.Add(2*time.Hour)))
	s.True(found.FirstObservedAt.Equal(base))

	ghost, err := models.NewPlayer(id.NewPlayerID(), "E404", "Ghost", "", "", base)
	s.Require().NoError(err)
	s.ErrorIs(s.store.Update(ctx, ghost), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Touch(ctx, ghost.ID, base), sentinel.ErrNotFound)
}

func (s *storeContractSuite) TestHandleHistory_OneRowPerHandle() {
	ctx := context.Background()
	p := s.seed("E1", "Nova", base)

	p.CurrentHandle = "Nova2"
	s.Require().NoError(s.store.UpsertHandle(ctx, models.NewHandleHistory(p, base.Add(time.Hour))))
	p.CurrentHandle = "Nova"
	s.Require().NoError(s.store.UpsertHandle(ctx, models.NewHandleHistory(p, base.Add(2*time.Hour))))

	history, err := s.store.ListHandles(ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("Nova", history[0].Handle)
	s.Equal("Nova2", history[1].Handle)
	s.True(history[0].FirstObservedAt.Equal(base), "returning to a handle keeps its first observation")
	s.True(history[0].LastObservedAt.Equal(base.Add(2*time.Hour)))
}

func (s *storeContractSuite) TestSearch() {
	ctx := context.Background()
	nova := s.seed("E1", "Nova", base)
	s.seed("E2", "Supernova", base.Add(time.Minute))
	s.seed("E3", "Ghost", base)

	nova.CurrentHandle = "Nova2"
	s.Require().NoError(s.store.Update(ctx, nova))
	s.Require().NoError(s.store.UpsertHandle(ctx, models.NewHandleHistory(nova, base.Add(time.Hour))))

	current, err := s.store.SearchCurrent(ctx, "nova", 10)
	s.Require().NoError(err)
	s.Len(current, 2)

	historical, err := s.store.SearchHistorical(ctx, "host", 10)
	s.Require().NoError(err)
	s.Require().Len(historical, 1)
	s.Equal("E3", historical[0].ExternalID)

	wildcard, err := s.store.SearchCurrent(ctx, "%", 10)
	s.Require().NoError(err)
	s.Empty(wildcard, "LIKE wildcards in the term match literally")

	limited, err := s.store.SearchCurrent(ctx, "o", 1)
	s.Require().NoError(err)
	s.Len(limited, 1)
}

func (s *storeContractSuite) TestReconcileAffiliations() {
	ctx := context.Background()
	p := s.seed("E1", "Nova", base)

	s.Require().NoError(s.store.ReconcileAffiliations(ctx, p.ID, []*models.OrgAffiliation{
		{OrgSID: "VANG", OrgName: "Vanguard", Role: "Officer", IsMain: true},
		{OrgSID: "TEST", OrgName: "Test Squadron"},
	}, base))
	s.Require().NoError(s.store.ReconcileAffiliations(ctx, p.ID, []*models.OrgAffiliation{
		{OrgSID: "VANG", OrgName: "Vanguard", Role: "Director", IsMain: true},
	}, base.Add(time.Hour)))

	affs, err := s.store.ListAffiliations(ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(affs, 2)
	s.Equal("VANG", affs[0].OrgSID)
	s.True(affs[0].IsCurrent)
	s.Equal("Director", affs[0].Role)
	s.True(affs[0].FirstObservedAt.Equal(base))
	s.Equal("TEST", affs[1].OrgSID)
	s.False(affs[1].IsCurrent)

	s.Require().NoError(s.store.ReconcileAffiliations(ctx, p.ID, nil, base.Add(2*time.Hour)))
	affs, err = s.store.ListAffiliations(ctx, p.ID)
	s.Require().NoError(err)
	for _, a := range affs {
		s.False(a.IsCurrent)
	}
}

func (s *storeContractSuite) TestReconcileAffiliations_RepeatedOrgIsOneRow() {
	ctx := context.Background()
	p := s.seed("E1", "Nova", base)
	reported := []*models.OrgAffiliation{
		{OrgSID: "VANG", OrgName: "Vanguard", Role: "Officer"},
		{OrgSID: "VANG", OrgName: "Vanguard", Role: "Director", IsMain: true},
	}

	for i := 0; i < 2; i++ {
		s.Require().NoError(s.store.ReconcileAffiliations(ctx, p.ID, reported, base.Add(time.Duration(i)*time.Hour)))
	}

	affs, err := s.store.ListAffiliations(ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(affs, 1)
	s.Equal("Director", affs[0].Role)
	s.True(affs[0].IsMain)
	s.True(affs[0].IsCurrent)
	s.True(affs[0].FirstObservedAt.Equal(base))
}

func (s *storeContractSuite) TestComments() {
	ctx := context.Background()
	p := s.seed("E1", "Nova", base)
	for i := 0; i < 3; i++ {
		c, err := models.NewComment(id.NewCommentID(), p.ID, "m1", "note", base.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(err)
		s.Require().NoError(s.store.CreateComment(ctx, c))
	}

	page, err := s.store.ListComments(ctx, p.ID, pagination.Params{Page: 1, PageSize: 2})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Require().Len(page.Data, 2)
	s.True(page.Data[0].CreatedAt.After(page.Data[1].CreatedAt), "newest first")

	found, err := s.store.FindComment(ctx, page.Data[0].ID)
	s.Require().NoError(err)
	s.Equal(p.ID, found.PlayerID)

	_, err = s.store.FindComment(ctx, id.NewCommentID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContractSuite) TestTags_UniquePerLabel() {
	ctx := context.Background()
	p := s.seed("E1", "Nova", base)

	first, err := models.NewTag(id.NewTagID(), p.ID, "m1", "pirate", base)
	s.Require().NoError(err)
	stored, created, err := s.store.CreateTag(ctx, first)
	s.Require().NoError(err)
	s.True(created)

	second, err := models.NewTag(id.NewTagID(), p.ID, "m2", "Pirate", base.Add(time.Minute))
	s.Require().NoError(err)
	existing, created, err := s.store.CreateTag(ctx, second)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(stored.ID, existing.ID)
	s.Equal(id.CallerID("m1"), existing.AuthorID)

	tags, err := s.store.ListTags(ctx, p.ID)
	s.Require().NoError(err)
	s.Len(tags, 1)

	found, err := s.store.FindTag(ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal("pirate", found.Label)
}
