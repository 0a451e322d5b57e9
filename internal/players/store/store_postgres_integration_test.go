//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"dossier/internal/players/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/sentinel"
	txcontext "dossier/pkg/platform/tx"
	"dossier/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	storeContractSuite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := new(PostgresStoreSuite)
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.newStore = func() playerStore { return NewPostgres(s.postgres.DB) }
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), containers.AllTables...))
	s.storeContractSuite.SetupTest()
}

// TestRollbackLeavesNoPlayer verifies a failed unit of work leaves neither the
// player nor its history behind.
func (s *PostgresStoreSuite) TestRollbackLeavesNoPlayer() {
	ctx := context.Background()
	runner := txcontext.NewPostgresRunner(s.postgres.DB, 0)

	p, err := models.NewPlayer(id.NewPlayerID(), "E7", "Rollback", "", "", base)
	s.Require().NoError(err)

	err = runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, p); err != nil {
			return err
		}
		if err := s.store.UpsertHandle(txCtx, models.NewHandleHistory(p, base)); err != nil {
			return err
		}
		return sentinel.ErrConflict
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.FindByExternalID(ctx, "E7")
	s.ErrorIs(err, sentinel.ErrNotFound)
	history, err := s.store.ListHandles(ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(history)
}
