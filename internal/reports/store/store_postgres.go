package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dossier/internal/platform/postgres"
	"dossier/internal/reports/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
	txcontext "dossier/pkg/platform/tx"
)

// PostgresStore persists reports in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const reportColumns = `id, kind, reporter_id, main_player_id, body, org_name, secondary_handle,
	secondary_player_id, secondary_external_id, secondary_display_name, created_at`

func scanReport(row interface{ Scan(dest ...any) error }) (*models.Report, error) {
	var (
		r            models.Report
		rawID        uuid.UUID
		rawMain      uuid.UUID
		kind         string
		reporter     string
		rawSecondary uuid.NullUUID
	)
	if err := row.Scan(&rawID, &kind, &reporter, &rawMain, &r.Body, &r.OrgName, &r.SecondaryHandle,
		&rawSecondary, &r.SecondaryExternalID, &r.SecondaryDisplayName, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.ID = id.ReportID(rawID)
	r.Kind = models.Kind(kind)
	r.ReporterID = id.CallerID(reporter)
	r.MainPlayerID = id.PlayerID(rawMain)
	if rawSecondary.Valid {
		pid := id.PlayerID(rawSecondary.UUID)
		r.SecondaryPlayerID = &pid
	}
	return &r, nil
}

func (s *PostgresStore) Create(ctx context.Context, report *models.Report) error {
	var secondary uuid.NullUUID
	if report.SecondaryPlayerID != nil {
		secondary = uuid.NullUUID{UUID: uuid.UUID(*report.SecondaryPlayerID), Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, uuid.UUID(report.ID), string(report.Kind), string(report.ReporterID), uuid.UUID(report.MainPlayerID),
		report.Body, report.OrgName, report.SecondaryHandle,
		secondary, report.SecondaryExternalID, report.SecondaryDisplayName, report.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, reportID id.ReportID) (*models.Report, error) {
	r, err := scanReport(s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, uuid.UUID(reportID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return r, nil
}

// ListByPlayer pages the reports filed against a main player, newest first. An
// empty kind matches every kind.
func (s *PostgresStore) ListByPlayer(ctx context.Context, playerID id.PlayerID, kind models.Kind, page pagination.Params) (pagination.Page[*models.Report], error) {
	exec := s.execer(ctx)
	var total int
	if err := exec.QueryRowContext(ctx, `
		SELECT count(*) FROM reports
		WHERE main_player_id = $1 AND ($2 = '' OR kind = $2)
	`, uuid.UUID(playerID), string(kind)).Scan(&total); err != nil {
		return pagination.Page[*models.Report]{}, fmt.Errorf("count reports: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM reports
		WHERE main_player_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`, uuid.UUID(playerID), string(kind), page.Limit(), page.Offset())
	if err != nil {
		return pagination.Page[*models.Report]{}, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	data := []*models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return pagination.Page[*models.Report]{}, fmt.Errorf("scan report: %w", err)
		}
		data = append(data, r)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[*models.Report]{}, err
	}
	return pagination.Page[*models.Report]{Data: data, Total: total}, nil
}
