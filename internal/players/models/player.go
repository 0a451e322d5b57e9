package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
)

const (
	MaxHandleLength      = 64
	MaxDisplayNameLength = 128
)

// Player is the aggregate root for one community participant.
//
// Invariants:
//   - ExternalID is non-empty and unique across all players (the merge key)
//   - CurrentHandle is non-empty; handles are NOT unique across players
//   - ID and FirstObservedAt are immutable after construction
//   - LastExternalSyncAt only moves when the upstream was consulted
//
// Players are never hard-deleted. Deactivation hides a player from search but
// keeps every report and attestation that points at it resolvable.
type Player struct {
	ID                 id.PlayerID `json:"id"`
	ExternalID         string      `json:"external_id"`
	CurrentHandle      string      `json:"current_handle"`
	CurrentDisplayName string      `json:"current_display_name"`
	AvatarURL          string      `json:"avatar_url,omitempty"`
	IsActive           bool        `json:"is_active"`
	FirstObservedAt    time.Time   `json:"first_observed_at"`
	LastObservedAt     time.Time   `json:"last_observed_at"`
	LastExternalSyncAt *time.Time  `json:"last_external_sync_at,omitempty"`
}

// NewPlayer builds a player from its first upstream sighting.
func NewPlayer(playerID id.PlayerID, externalID, handle, displayName, avatarURL string, now time.Time) (*Player, error) {
	externalID = strings.TrimSpace(externalID)
	handle = strings.TrimSpace(handle)
	if externalID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "player external id cannot be empty")
	}
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}
	displayName = clampDisplayName(displayName)
	synced := now
	return &Player{
		ID:                 playerID,
		ExternalID:         externalID,
		CurrentHandle:      handle,
		CurrentDisplayName: displayName,
		AvatarURL:          strings.TrimSpace(avatarURL),
		IsActive:           true,
		FirstObservedAt:    now,
		LastObservedAt:     now,
		LastExternalSyncAt: &synced,
	}, nil
}

// ValidateHandle enforces the handle shape accepted from callers and upstream.
func ValidateHandle(handle string) error {
	if handle == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "handle cannot be empty")
	}
	if len(handle) > MaxHandleLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "handle must be 64 characters or less")
	}
	return nil
}

// SyncChange describes what ApplySync altered.
type SyncChange struct {
	HandleChanged  bool
	ProfileChanged bool
}

// Changed reports whether any caller-visible field moved.
func (c SyncChange) Changed() bool {
	return c.HandleChanged || c.ProfileChanged
}

// ApplySync folds a fresh upstream view into the player. Handle comparison is
// exact: a casing change upstream is a new handle.
func (p *Player) ApplySync(handle, displayName, avatarURL string, now time.Time) (SyncChange, error) {
	handle = strings.TrimSpace(handle)
	if err := ValidateHandle(handle); err != nil {
		return SyncChange{}, err
	}
	displayName = clampDisplayName(displayName)
	avatarURL = strings.TrimSpace(avatarURL)

	var change SyncChange
	if handle != p.CurrentHandle {
		change.HandleChanged = true
		p.CurrentHandle = handle
	}
	if displayName != p.CurrentDisplayName || avatarURL != p.AvatarURL {
		change.ProfileChanged = true
		p.CurrentDisplayName = displayName
		p.AvatarURL = avatarURL
	}
	synced := now
	p.LastExternalSyncAt = &synced
	p.LastObservedAt = now
	return change, nil
}

// Touch records a successful local resolution.
func (p *Player) Touch(now time.Time) {
	p.LastObservedAt = now
}

func (p *Player) Deactivate() error {
	if !p.IsActive {
		return dErrors.New(dErrors.CodeInvariantViolation, "player is already inactive")
	}
	p.IsActive = false
	return nil
}

// clampDisplayName bounds name to MaxDisplayNameLength bytes without splitting
// a UTF-8 sequence.
func clampDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) <= MaxDisplayNameLength {
		return name
	}
	cut := MaxDisplayNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return strings.TrimSpace(name[:cut])
}
