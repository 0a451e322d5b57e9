// Package adapters connects the attestation engine to the stores that own
// artifacts.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"dossier/internal/attestation/models"
	pmodels "dossier/internal/players/models"
	rmodels "dossier/internal/reports/models"
	id "dossier/pkg/domain"
	"dossier/pkg/platform/sentinel"
)

type PlayerStore interface {
	FindByID(ctx context.Context, playerID id.PlayerID) (*pmodels.Player, error)
	FindComment(ctx context.Context, commentID id.CommentID) (*pmodels.Comment, error)
	FindTag(ctx context.Context, tagID id.TagID) (*pmodels.Tag, error)
}

type ReportStore interface {
	FindByID(ctx context.Context, reportID id.ReportID) (*rmodels.Report, error)
}

// OwnerResolver maps an artifact to the player it belongs to by reading the
// owning store directly.
type OwnerResolver struct {
	players PlayerStore
	reports ReportStore
}

func NewOwnerResolver(players PlayerStore, reports ReportStore) *OwnerResolver {
	return &OwnerResolver{players: players, reports: reports}
}

// Owner returns sentinel.ErrNotFound when the artifact does not exist, or
// exists under a different kind than the one named.
func (r *OwnerResolver) Owner(ctx context.Context, kind models.ArtifactKind, artifactID uuid.UUID) (*models.Owner, error) {
	var playerID id.PlayerID
	switch kind {
	case models.ArtifactComment:
		c, err := r.players.FindComment(ctx, id.CommentID(artifactID))
		if err != nil {
			return nil, err
		}
		playerID = c.PlayerID
	case models.ArtifactTag:
		t, err := r.players.FindTag(ctx, id.TagID(artifactID))
		if err != nil {
			return nil, err
		}
		playerID = t.PlayerID
	default:
		reportKind := kind.ReportKind()
		if reportKind == "" {
			return nil, fmt.Errorf("unknown artifact kind %q: %w", kind, sentinel.ErrNotFound)
		}
		report, err := r.reports.FindByID(ctx, id.ReportID(artifactID))
		if err != nil {
			return nil, err
		}
		if string(report.Kind) != reportKind {
			return nil, fmt.Errorf("report %s is a %s report: %w", report.ID, report.Kind, sentinel.ErrNotFound)
		}
		playerID = report.MainPlayerID
	}

	player, err := r.players.FindByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, fmt.Errorf("owner of %s %s: %w", kind, artifactID, err)
		}
		return nil, err
	}
	return &models.Owner{PlayerID: player.ID, ExternalID: player.ExternalID}, nil
}
