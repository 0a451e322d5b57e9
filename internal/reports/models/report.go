package models

import (
	"strings"
	"time"

	attmodels "dossier/internal/attestation/models"
	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
)

const (
	MaxBodyLength    = 4000
	MaxOrgNameLength = 128
)

// Kind selects a report's payload shape. Every kind shares one table, one
// lifecycle and the attestation engine.
type Kind string

const (
	KindPlayer           Kind = "player"
	KindOrganization     Kind = "organization"
	KindAltAccount       Kind = "alt_account"
	KindAffiliatedPeople Kind = "affiliated_people"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{KindPlayer, KindOrganization, KindAltAccount, KindAffiliatedPeople}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	if k == "" {
		return "", dErrors.New(dErrors.CodeValidation, "report kind is required")
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported report kind: "+s)
}

// HasSecondary reports whether the kind names a second handle.
func (k Kind) HasSecondary() bool {
	return k == KindAltAccount || k == KindAffiliatedPeople
}

// Report is a claim about one main player. Reports are immutable once stored.
//
// The Secondary* identity fields are best-effort enrichment of SecondaryHandle
// and stay empty when the handle could not be resolved.
type Report struct {
	ID                   id.ReportID  `json:"id"`
	Kind                 Kind         `json:"kind"`
	ReporterID           id.CallerID  `json:"reporter_id"`
	MainPlayerID         id.PlayerID  `json:"main_player_id"`
	Body                 string       `json:"body,omitempty"`
	OrgName              string       `json:"org_name,omitempty"`
	SecondaryHandle      string       `json:"secondary_handle,omitempty"`
	SecondaryPlayerID    *id.PlayerID `json:"secondary_player_id,omitempty"`
	SecondaryExternalID  string       `json:"secondary_external_id,omitempty"`
	SecondaryDisplayName string       `json:"secondary_display_name,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// NewReport checks the invariants shared by every kind. Kind-specific payload
// rules are enforced before this is called.
func NewReport(reportID id.ReportID, kind Kind, reporter id.CallerID, mainPlayerID id.PlayerID, body, orgName, secondaryHandle string, now time.Time) (*Report, error) {
	if reporter.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report requires a reporter")
	}
	if mainPlayerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report requires a main player")
	}
	body = strings.TrimSpace(body)
	if len(body) > MaxBodyLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "report body must be 4000 characters or less")
	}
	orgName = strings.TrimSpace(orgName)
	if len(orgName) > MaxOrgNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "org name must be 128 characters or less")
	}
	return &Report{
		ID:              reportID,
		Kind:            kind,
		ReporterID:      reporter,
		MainPlayerID:    mainPlayerID,
		Body:            body,
		OrgName:         orgName,
		SecondaryHandle: strings.TrimSpace(secondaryHandle),
		CreatedAt:       now,
	}, nil
}

// LinkSecondary records the player the secondary handle resolved to.
func (r *Report) LinkSecondary(playerID id.PlayerID, externalID, displayName string) {
	pid := playerID
	r.SecondaryPlayerID = &pid
	r.SecondaryExternalID = externalID
	r.SecondaryDisplayName = displayName
}

// ReportView is a report together with its current vote counts.
type ReportView struct {
	*Report
	Tally attmodels.Tally `json:"tally"`
}
