package service

import (
	"context"
	"errors"

	"dossier/internal/invalidation"
	"dossier/internal/players/models"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
	"dossier/pkg/platform/pagination"
	"dossier/pkg/platform/sentinel"
	"dossier/pkg/requestcontext"
)

// GetPlayer loads a player by its local id.
func (s *Service) GetPlayer(ctx context.Context, playerID id.PlayerID) (*models.Player, error) {
	player, err := s.store.FindByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "player not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load player")
	}
	return player, nil
}

// ListHandleHistory returns every handle the player has been seen under, oldest
// first. Unknown players have no history.
func (s *Service) ListHandleHistory(ctx context.Context, playerID id.PlayerID) ([]*models.HandleHistory, error) {
	handles, err := s.store.ListHandles(ctx, playerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list handle history")
	}
	return handles, nil
}

func (s *Service) ListAffiliations(ctx context.Context, playerID id.PlayerID) ([]*models.OrgAffiliation, error) {
	orgs, err := s.store.ListAffiliations(ctx, playerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list affiliations")
	}
	return orgs, nil
}

// Deactivate hides a player from search. Reports and attestations pointing at
// it stay readable. Deactivating an inactive player is a no-op that still
// signals the player.
func (s *Service) Deactivate(ctx context.Context, playerID id.PlayerID) (invalidation.Signal, error) {
	player, err := s.GetPlayer(ctx, playerID)
	if err != nil {
		return invalidation.Signal{}, err
	}
	if !player.IsActive {
		return invalidation.New(player.ExternalID), nil
	}
	if err := player.Deactivate(); err != nil {
		return invalidation.Signal{}, err
	}
	if err := s.store.Update(ctx, player); err != nil {
		return invalidation.Signal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate player")
	}
	s.logAudit(ctx, "player_deactivated",
		"player_id", player.ID,
		"external_id", player.ExternalID,
	)
	return invalidation.New(player.ExternalID), nil
}

// CommentResult carries a stored comment and the players to invalidate.
type CommentResult struct {
	Comment *models.Comment
	Signal  invalidation.Signal
}

// AddComment attaches a free-text note from caller to a player.
func (s *Service) AddComment(ctx context.Context, caller id.CallerID, playerID id.PlayerID, body string) (*CommentResult, error) {
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	player, err := s.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	comment, err := models.NewComment(id.NewCommentID(), player.ID, caller, body, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store comment")
	}
	s.logAudit(ctx, "player_comment_added",
		"player_id", player.ID,
		"comment_id", comment.ID,
		"caller_id", caller,
	)
	return &CommentResult{Comment: comment, Signal: invalidation.New(player.ExternalID)}, nil
}

func (s *Service) ListComments(ctx context.Context, playerID id.PlayerID, page pagination.Params) (pagination.Page[*models.Comment], error) {
	out, err := s.store.ListComments(ctx, playerID, page)
	if err != nil {
		return pagination.Page[*models.Comment]{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list comments")
	}
	return out, nil
}

// TagResult carries the tag for a label. Created is false when the player
// already carried the label and the existing tag was returned.
type TagResult struct {
	Tag     *models.Tag
	Created bool
	Signal  invalidation.Signal
}

// AddTag labels a player. Labels are unique per player; repeating one returns
// the original tag.
func (s *Service) AddTag(ctx context.Context, caller id.CallerID, playerID id.PlayerID, label string) (*TagResult, error) {
	if caller.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "caller identity required")
	}
	player, err := s.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	tag, err := models.NewTag(id.NewTagID(), player.ID, caller, label, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	stored, created, err := s.store.CreateTag(ctx, tag)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store tag")
	}
	if created {
		s.logAudit(ctx, "player_tag_added",
			"player_id", player.ID,
			"tag_id", stored.ID,
			"label", stored.Label,
			"caller_id", caller,
		)
	}
	return &TagResult{Tag: stored, Created: created, Signal: invalidation.New(player.ExternalID)}, nil
}

func (s *Service) ListTags(ctx context.Context, playerID id.PlayerID) ([]*models.Tag, error) {
	tags, err := s.store.ListTags(ctx, playerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tags")
	}
	return tags, nil
}
