package models

import (
	"time"

	id "dossier/pkg/domain"
)

// HandleHistory is one distinct handle a player has been observed under.
// Rows are unique per (PlayerID, Handle); re-observing an old handle refreshes
// LastObservedAt instead of adding a row.
type HandleHistory struct {
	PlayerID        id.PlayerID `json:"player_id"`
	Handle          string      `json:"handle"`
	DisplayName     string      `json:"display_name"`
	FirstObservedAt time.Time   `json:"first_observed_at"`
	LastObservedAt  time.Time   `json:"last_observed_at"`
}

func NewHandleHistory(p *Player, now time.Time) *HandleHistory {
	return &HandleHistory{
		PlayerID:        p.ID,
		Handle:          p.CurrentHandle,
		DisplayName:     p.CurrentDisplayName,
		FirstObservedAt: now,
		LastObservedAt:  now,
	}
}

// OrgAffiliation is a player's observed membership in an organization, unique
// per (PlayerID, OrgSID).
type OrgAffiliation struct {
	PlayerID        id.PlayerID `json:"player_id"`
	OrgSID          string      `json:"org_sid"`
	OrgName         string      `json:"org_name"`
	Role            string      `json:"role,omitempty"`
	IsMain          bool        `json:"is_main"`
	IsCurrent       bool        `json:"is_current"`
	FirstObservedAt time.Time   `json:"first_observed_at"`
	LastObservedAt  time.Time   `json:"last_observed_at"`
}
