package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dossier/internal/attestation/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
	txcontext "dossier/pkg/platform/tx"
)

// PostgresStore persists attestations in PostgreSQL. The unique constraint on
// (artifact_kind, artifact_id, voter_id) makes concurrent votes by one voter
// collapse into a single row.
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

const attestationColumns = `id, artifact_kind, artifact_id, voter_id, attestation_type, comment, created_at, updated_at`

func scanAttestation(row interface{ Scan(dest ...any) error }) (*models.Attestation, error) {
	var (
		a     models.Attestation
		rawID uuid.UUID
		kind  string
		voter string
		typ   string
	)
	if err := row.Scan(&rawID, &kind, &a.ArtifactID, &voter, &typ, &a.Comment, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.ID = id.AttestationID(rawID)
	a.ArtifactKind = models.ArtifactKind(kind)
	a.VoterID = id.CallerID(voter)
	a.Type = models.Type(typ)
	return &a, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, a *models.Attestation) (*models.Attestation, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO attestations (`+attestationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT ON CONSTRAINT attestations_artifact_voter_key DO UPDATE SET
			attestation_type = EXCLUDED.attestation_type,
			comment = EXCLUDED.comment,
			updated_at = EXCLUDED.updated_at
		RETURNING `+attestationColumns,
		uuid.UUID(a.ID), string(a.ArtifactKind), a.ArtifactID, string(a.VoterID),
		string(a.Type), a.Comment, a.CreatedAt, a.UpdatedAt)
	stored, err := scanAttestation(row)
	if err != nil {
		return nil, fmt.Errorf("upsert attestation: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Find(ctx context.Context, k Key) (*models.Attestation, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+attestationColumns+`
		FROM attestations
		WHERE artifact_kind = $1 AND artifact_id = $2 AND voter_id = $3
	`, string(k.Kind), k.ArtifactID, string(k.VoterID))
	a, err := scanAttestation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find attestation: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Delete(ctx context.Context, k Key) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		DELETE FROM attestations
		WHERE artifact_kind = $1 AND artifact_id = $2 AND voter_id = $3
	`, string(k.Kind), k.ArtifactID, string(k.VoterID))
	if err != nil {
		return false, fmt.Errorf("delete attestation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attestation rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *PostgresStore) ListByArtifact(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID, page pagination.Params) (pagination.Page[*models.Attestation], error) {
	exec := s.execer(ctx)
	var total int
	if err := exec.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attestations WHERE artifact_kind = $1 AND artifact_id = $2
	`, string(kind), artifactID).Scan(&total); err != nil {
		return pagination.Page[*models.Attestation]{}, fmt.Errorf("count attestations: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+attestationColumns+`
		FROM attestations
		WHERE artifact_kind = $1 AND artifact_id = $2
		ORDER BY created_at ASC, voter_id ASC
		LIMIT $3 OFFSET $4
	`, string(kind), artifactID, page.Limit(), page.Offset())
	if err != nil {
		return pagination.Page[*models.Attestation]{}, fmt.Errorf("list attestations: %w", err)
	}
	defer rows.Close()

	out := []*models.Attestation{}
	for rows.Next() {
		a, err := scanAttestation(rows)
		if err != nil {
			return pagination.Page[*models.Attestation]{}, fmt.Errorf("scan attestation: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[*models.Attestation]{}, err
	}
	return pagination.Page[*models.Attestation]{Data: out, Total: total}, nil
}

func (s *PostgresStore) Tally(ctx context.Context, kind models.ArtifactKind, artifactIDs []uuid.UUID) (map[uuid.UUID]models.Tally, error) {
	out := make(map[uuid.UUID]models.Tally)
	if len(artifactIDs) == 0 {
		return out, nil
	}
	ids := make([]string, len(artifactIDs))
	for i, artifactID := range artifactIDs {
		ids[i] = artifactID.String()
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT artifact_id, attestation_type, COUNT(*)
		FROM attestations
		WHERE artifact_kind = $1 AND artifact_id = ANY($2::uuid[])
		GROUP BY artifact_id, attestation_type
	`, string(kind), pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("tally attestations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			artifactID uuid.UUID
			typ        string
			n          int
		)
		if err := rows.Scan(&artifactID, &typ, &n); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}
		t := out[artifactID]
		t.Add(models.Type(typ), n)
		out[artifactID] = t
	}
	return out, rows.Err()
}
