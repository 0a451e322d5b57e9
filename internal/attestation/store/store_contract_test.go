package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dossier/internal/attestation/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
)

type attestationStore interface {
	Upsert(ctx context.Context, a *models.Attestation) (*models.Attestation, error)
	Find(ctx context.Context, k Key) (*models.Attestation, error)
	Delete(ctx context.Context, k Key) (bool, error)
	ListByArtifact(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID, page pagination.Params) (pagination.Page[*models.Attestation], error)
	Tally(ctx context.Context, kind models.ArtifactKind, artifactIDs []uuid.UUID) (map[uuid.UUID]models.Tally, error)
}

var (
	_ attestationStore = (*InMemoryStore)(nil)
	_ attestationStore = (*PostgresStore)(nil)
)

type storeContractSuite struct {
	suite.Suite
	store    attestationStore
	newStore func() attestationStore
}

var base = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func (s *storeContractSuite) SetupTest() {
	s.store = s.newStore()
}

func (s *storeContractSuite) vote(kind models.ArtifactKind, artifactID uuid.UUID, voter id.CallerID, typ models.Type, at time.Time) *models.Attestation {
	a, err := models.NewAttestation(id.NewAttestationID(), kind, artifactID, voter, typ, "", at)
	s.Require().NoError(err)
	stored, err := s.store.Upsert(context.Background(), a)
	s.Require().NoError(err)
	return stored
}

func (s *storeContractSuite) TestUpsertKeepsIdentityAndCreatedAt() {
	ctx := context.Background()
	artifact := uuid.New()
	first := s.vote(models.ArtifactPlayerReport, artifact, "v1", models.TypeSupport, base)

	changed, err := models.NewAttestation(id.NewAttestationID(), models.ArtifactPlayerReport, artifact, "v1", models.TypeDispute, "changed my mind", base.Add(time.Hour))
	s.Require().NoError(err)
	second, err := s.store.Upsert(ctx, changed)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(models.TypeDispute, second.Type)
	s.Equal("changed my mind", second.Comment)
	s.True(base.Equal(second.CreatedAt))
	s.True(base.Add(time.Hour).Equal(second.UpdatedAt))

	page, err := s.store.ListByArtifact(ctx, models.ArtifactPlayerReport, artifact, pagination.Params{Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}

func (s *storeContractSuite) TestKindsAreSeparateNamespaces() {
	ctx := context.Background()
	artifact := uuid.New()
	s.vote(models.ArtifactPlayerReport, artifact, "v1", models.TypeSupport, base)
	s.vote(models.ArtifactOrgReport, artifact, "v1", models.TypeDispute, base)

	got, err := s.store.Find(ctx, Key{Kind: models.ArtifactPlayerReport, ArtifactID: artifact, VoterID: "v1"})
	s.Require().NoError(err)
	s.Equal(models.TypeSupport, got.Type)

	_, err = s.store.Find(ctx, Key{Kind: models.ArtifactComment, ArtifactID: artifact, VoterID: "v1"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContractSuite) TestDeleteReportsWhetherRowExisted() {
	ctx := context.Background()
	artifact := uuid.New()
	s.vote(models.ArtifactTag, artifact, "v1", models.TypeNeutral, base)
	k := Key{Kind: models.ArtifactTag, ArtifactID: artifact, VoterID: "v1"}

	removed, err := s.store.Delete(ctx, k)
	s.Require().NoError(err)
	s.True(removed)

	removed, err = s.store.Delete(ctx, k)
	s.Require().NoError(err)
	s.False(removed)
}

func (s *storeContractSuite) TestListByArtifactOldestFirst() {
	ctx := context.Background()
	artifact := uuid.New()
	s.vote(models.ArtifactComment, artifact, "late", models.TypeSupport, base.Add(2*time.Minute))
	s.vote(models.ArtifactComment, artifact, "early", models.TypeDispute, base)
	s.vote(models.ArtifactComment, artifact, "middle", models.TypeNeutral, base.Add(time.Minute))
	s.vote(models.ArtifactComment, uuid.New(), "other", models.TypeSupport, base)

	page, err := s.store.ListByArtifact(ctx, models.ArtifactComment, artifact, pagination.Params{Page: 1, PageSize: 2})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Require().Len(page.Data, 2)
	s.Equal(id.CallerID("early"), page.Data[0].VoterID)
	s.Equal(id.CallerID("middle"), page.Data[1].VoterID)

	empty, err := s.store.ListByArtifact(ctx, models.ArtifactComment, uuid.New(), pagination.Params{Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Zero(empty.Total)
	s.Empty(empty.Data)
}

func (s *storeContractSuite) TestTallyCountsPerArtifact() {
	ctx := context.Background()
	a, b, quiet := uuid.New(), uuid.New(), uuid.New()
	s.vote(models.ArtifactAltAccountReport, a, "v1", models.TypeSupport, base)
	s.vote(models.ArtifactAltAccountReport, a, "v2", models.TypeSupport, base)
	s.vote(models.ArtifactAltAccountReport, a, "v3", models.TypeDispute, base)
	s.vote(models.ArtifactAltAccountReport, b, "v1", models.TypeNeutral, base)
	s.vote(models.ArtifactPlayerReport, b, "v9", models.TypeSupport, base)

	tallies, err := s.store.Tally(ctx, models.ArtifactAltAccountReport, []uuid.UUID{a, b, quiet})
	s.Require().NoError(err)
	s.Equal(models.Tally{Support: 2, Dispute: 1}, tallies[a])
	s.Equal(models.Tally{Neutral: 1}, tallies[b])
	_, ok := tallies[quiet]
	s.False(ok)

	none, err := s.store.Tally(ctx, models.ArtifactAltAccountReport, nil)
	s.Require().NoError(err)
	s.Empty(none)
}

// Concurrent votes by one voter on one artifact collapse into a single row.
func (s *storeContractSuite) TestConcurrentVotesCollapse() {
	ctx := context.Background()
	artifact := uuid.New()
	types := []models.Type{models.TypeSupport, models.TypeDispute, models.TypeNeutral}

	var wg sync.WaitGroup
	for i := range 12 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := models.NewAttestation(id.NewAttestationID(), models.ArtifactTag, artifact, "v1", types[i%3], "", base)
			if err != nil {
				return
			}
			_, _ = s.store.Upsert(ctx, a)
		}(i)
	}
	wg.Wait()

	page, err := s.store.ListByArtifact(ctx, models.ArtifactTag, artifact, pagination.Params{Page: 1, PageSize: 20})
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}
