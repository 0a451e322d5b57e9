package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"dossier/internal/platform/postgres"
	"dossier/internal/players/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
	pstrings "dossier/pkg/platform/strings"
	txcontext "dossier/pkg/platform/tx"
)

// PostgresStore persists players, histories and annotations in PostgreSQL.
// This store is pure I/O; resolution rules live in the service.
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

const playerColumns = `id, external_id, current_handle, current_display_name, avatar_url,
	is_active, first_observed_at, last_observed_at, last_external_sync_at`

func scanPlayer(row interface{ Scan(dest ...any) error }) (*models.Player, error) {
	var (
		p        models.Player
		rawID    uuid.UUID
		lastSync sql.NullTime
	)
	if err := row.Scan(&rawID, &p.ExternalID, &p.CurrentHandle, &p.CurrentDisplayName, &p.AvatarURL,
		&p.IsActive, &p.FirstObservedAt, &p.LastObservedAt, &lastSync); err != nil {
		return nil, err
	}
	p.ID = id.PlayerID(rawID)
	if lastSync.Valid {
		t := lastSync.Time
		p.LastExternalSyncAt = &t
	}
	return &p, nil
}

func (s *PostgresStore) queryPlayers(ctx context.Context, query string, args ...any) ([]*models.Player, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) findOne(ctx context.Context, op, query string, args ...any) (*models.Player, error) {
	p, err := scanPlayer(s.execer(ctx).QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// Create inserts a new player. A duplicate external id yields sentinel.ErrConflict
// and, inside a transaction, aborts it.
func (s *PostgresStore) Create(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (id, external_id, current_handle, current_display_name, avatar_url,
			is_active, first_observed_at, last_observed_at, last_external_sync_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(player.ID), player.ExternalID, player.CurrentHandle, player.CurrentDisplayName, player.AvatarURL,
		player.IsActive, player.FirstObservedAt, player.LastObservedAt, player.LastExternalSyncAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

// Update writes the mutable fields. ExternalID and FirstObservedAt never change.
func (s *PostgresStore) Update(ctx context.Context, player *models.Player) error {
	query := `
		UPDATE players SET
			current_handle = $2,
			current_display_name = $3,
			avatar_url = $4,
			is_active = $5,
			last_observed_at = $6,
			last_external_sync_at = $7
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(player.ID), player.CurrentHandle, player.CurrentDisplayName, player.AvatarURL,
		player.IsActive, player.LastObservedAt, player.LastExternalSyncAt,
	)
	if err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return requireAffected(res, "update player")
}

// Touch moves last_observed_at forward; it never moves it back.
func (s *PostgresStore) Touch(ctx context.Context, playerID id.PlayerID, observedAt time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE players SET last_observed_at = GREATEST(last_observed_at, $2) WHERE id = $1`,
		uuid.UUID(playerID), observedAt,
	)
	if err != nil {
		return fmt.Errorf("touch player: %w", err)
	}
	return requireAffected(res, "touch player")
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, playerID id.PlayerID) (*models.Player, error) {
	return s.findOne(ctx, "find player by id",
		`SELECT `+playerColumns+` FROM players WHERE id = $1`, uuid.UUID(playerID))
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*models.Player, error) {
	return s.findOne(ctx, "find player by external id",
		`SELECT `+playerColumns+` FROM players WHERE external_id = $1`, externalID)
}

func (s *PostgresStore) FindByCurrentHandle(ctx context.Context, handle string) (*models.Player, error) {
	return s.findOne(ctx, "find player by handle", `
		SELECT `+playerColumns+`
		FROM players
		WHERE lower(current_handle) = lower($1)
		ORDER BY is_active DESC, last_observed_at DESC
		LIMIT 1
	`, handle)
}

func (s *PostgresStore) SearchCurrent(ctx context.Context, term string, limit int) ([]*models.Player, error) {
	players, err := s.queryPlayers(ctx, `
		SELECT `+playerColumns+`
		FROM players
		WHERE is_active AND current_handle ILIKE $1
		ORDER BY (lower(current_handle) = lower($2)) DESC, last_observed_at DESC
		LIMIT $3
	`, "%"+pstrings.EscapeLike(term)+"%", term, limit)
	if err != nil {
		return nil, fmt.Errorf("search current handles: %w", err)
	}
	return players, nil
}

func (s *PostgresStore) SearchHistorical(ctx context.Context, term string, limit int) ([]*models.Player, error) {
	players, err := s.queryPlayers(ctx, `
		SELECT `+playerColumns+`
		FROM players p
		WHERE p.is_active AND EXISTS (
			SELECT 1 FROM player_handle_history h
			WHERE h.player_id = p.id AND h.handle ILIKE $1
		)
		ORDER BY (lower(p.current_handle) = lower($2)) DESC, p.last_observed_at DESC
		LIMIT $3
	`, "%"+pstrings.EscapeLike(term)+"%", term, limit)
	if err != nil {
		return nil, fmt.Errorf("search handle history: %w", err)
	}
	return players, nil
}

func (s *PostgresStore) UpsertHandle(ctx context.Context, entry *models.HandleHistory) error {
	query := `
		INSERT INTO player_handle_history (player_id, handle, display_name, first_observed_at, last_observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, handle) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			last_observed_at = GREATEST(player_handle_history.last_observed_at, EXCLUDED.last_observed_at)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(entry.PlayerID), entry.Handle, entry.DisplayName, entry.FirstObservedAt, entry.LastObservedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert handle history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListHandles(ctx context.Context, playerID id.PlayerID) ([]*models.HandleHistory, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT player_id, handle, display_name, first_observed_at, last_observed_at
		FROM player_handle_history
		WHERE player_id = $1
		ORDER BY first_observed_at ASC, handle ASC
	`, uuid.UUID(playerID))
	if err != nil {
		return nil, fmt.Errorf("list handle history: %w", err)
	}
	defer rows.Close()
	out := []*models.HandleHistory{}
	for rows.Next() {
		var (
			h     models.HandleHistory
			rawID uuid.UUID
		)
		if err := rows.Scan(&rawID, &h.Handle, &h.DisplayName, &h.FirstObservedAt, &h.LastObservedAt); err != nil {
			return nil, fmt.Errorf("scan handle history: %w", err)
		}
		h.PlayerID = id.PlayerID(rawID)
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ReconcileAffiliations(ctx context.Context, playerID id.PlayerID, current []*models.OrgAffiliation, now time.Time) error {
	exec := s.execer(ctx)
	sids := make([]string, 0, len(current))
	for _, a := range current {
		sids = append(sids, a.OrgSID)
		_, err := exec.ExecContext(ctx, `
			INSERT INTO player_org_affiliations
				(player_id, org_sid, org_name, role, is_main, is_current, first_observed_at, last_observed_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
			ON CONFLICT (player_id, org_sid) DO UPDATE SET
				org_name = EXCLUDED.org_name,
				role = EXCLUDED.role,
				is_main = EXCLUDED.is_main,
				is_current = TRUE,
				last_observed_at = EXCLUDED.last_observed_at
		`, uuid.UUID(playerID), a.OrgSID, a.OrgName, a.Role, a.IsMain, now)
		if err != nil {
			return fmt.Errorf("upsert org affiliation %s: %w", a.OrgSID, err)
		}
	}
	_, err := exec.ExecContext(ctx, `
		UPDATE player_org_affiliations
		SET is_current = FALSE
		WHERE player_id = $1 AND is_current AND NOT (org_sid = ANY($2))
	`, uuid.UUID(playerID), pq.Array(sids))
	if err != nil {
		return fmt.Errorf("retire org affiliations: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAffiliations(ctx context.Context, playerID id.PlayerID) ([]*models.OrgAffiliation, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT player_id, org_sid, org_name, role, is_main, is_current, first_observed_at, last_observed_at
		FROM player_org_affiliations
		WHERE player_id = $1
		ORDER BY is_current DESC, org_sid ASC
	`, uuid.UUID(playerID))
	if err != nil {
		return nil, fmt.Errorf("list org affiliations: %w", err)
	}
	defer rows.Close()
	out := []*models.OrgAffiliation{}
	for rows.Next() {
		var (
			a     models.OrgAffiliation
			rawID uuid.UUID
		)
		if err := rows.Scan(&rawID, &a.OrgSID, &a.OrgName, &a.Role, &a.IsMain, &a.IsCurrent,
			&a.FirstObservedAt, &a.LastObservedAt); err != nil {
			return nil, fmt.Errorf("scan org affiliation: %w", err)
		}
		a.PlayerID = id.PlayerID(rawID)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment *models.Comment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO player_comments (id, player_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(comment.ID), uuid.UUID(comment.PlayerID), string(comment.AuthorID), comment.Body, comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func scanComment(row interface{ Scan(dest ...any) error }) (*models.Comment, error) {
	var (
		c                  models.Comment
		rawID, rawPlayerID uuid.UUID
		author             string
	)
	if err := row.Scan(&rawID, &rawPlayerID, &author, &c.Body, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.ID = id.CommentID(rawID)
	c.PlayerID = id.PlayerID(rawPlayerID)
	c.AuthorID = id.CallerID(author)
	return &c, nil
}

func (s *PostgresStore) FindComment(ctx context.Context, commentID id.CommentID) (*models.Comment, error) {
	c, err := scanComment(s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, player_id, author_id, body, created_at FROM player_comments WHERE id = $1
	`, uuid.UUID(commentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListComments(ctx context.Context, playerID id.PlayerID, page pagination.Params) (pagination.Page[*models.Comment], error) {
	exec := s.execer(ctx)
	var total int
	if err := exec.QueryRowContext(ctx,
		`SELECT count(*) FROM player_comments WHERE player_id = $1`, uuid.UUID(playerID),
	).Scan(&total); err != nil {
		return pagination.Page[*models.Comment]{}, fmt.Errorf("count comments: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, player_id, author_id, body, created_at
		FROM player_comments
		WHERE player_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, uuid.UUID(playerID), page.Limit(), page.Offset())
	if err != nil {
		return pagination.Page[*models.Comment]{}, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	data := []*models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return pagination.Page[*models.Comment]{}, fmt.Errorf("scan comment: %w", err)
		}
		data = append(data, c)
	}
	if err := rows.Err(); err != nil {
		return pagination.Page[*models.Comment]{}, err
	}
	return pagination.Page[*models.Comment]{Data: data, Total: total}, nil
}

func scanTag(row interface{ Scan(dest ...any) error }) (*models.Tag, error) {
	var (
		t                  models.Tag
		rawID, rawPlayerID uuid.UUID
		author             string
	)
	if err := row.Scan(&rawID, &rawPlayerID, &author, &t.Label, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TagID(rawID)
	t.PlayerID = id.PlayerID(rawPlayerID)
	t.AuthorID = id.CallerID(author)
	return &t, nil
}

// CreateTag inserts tag or returns the tag already holding (player, label).
// created reports whether this call inserted the row.
func (s *PostgresStore) CreateTag(ctx context.Context, tag *models.Tag) (*models.Tag, bool, error) {
	exec := s.execer(ctx)
	inserted, err := scanTag(exec.QueryRowContext(ctx, `
		INSERT INTO player_tags (id, player_id, author_id, label, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, label) DO NOTHING
		RETURNING id, player_id, author_id, label, created_at
	`, uuid.UUID(tag.ID), uuid.UUID(tag.PlayerID), string(tag.AuthorID), tag.Label, tag.CreatedAt))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("insert tag: %w", err)
	}
	existing, err := scanTag(exec.QueryRowContext(ctx, `
		SELECT id, player_id, author_id, label, created_at
		FROM player_tags WHERE player_id = $1 AND label = $2
	`, uuid.UUID(tag.PlayerID), tag.Label))
	if err != nil {
		return nil, false, fmt.Errorf("read existing tag: %w", err)
	}
	return existing, false, nil
}

func (s *PostgresStore) FindTag(ctx context.Context, tagID id.TagID) (*models.Tag, error) {
	t, err := scanTag(s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, player_id, author_id, label, created_at FROM player_tags WHERE id = $1
	`, uuid.UUID(tagID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTags(ctx context.Context, playerID id.PlayerID) ([]*models.Tag, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, player_id, author_id, label, created_at
		FROM player_tags WHERE player_id = $1 ORDER BY label
	`, uuid.UUID(playerID))
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	out := []*models.Tag{}
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
