package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
)

const MaxCommentLength = 1000

// ArtifactKind names what a vote is cast on. Report kinds each have their own
// artifact kind so a vote can never be moved between report flows.
type ArtifactKind string

const (
	ArtifactPlayerReport           ArtifactKind = "player_report"
	ArtifactOrgReport              ArtifactKind = "org_report"
	ArtifactAltAccountReport       ArtifactKind = "alt_account_report"
	ArtifactAffiliatedPeopleReport ArtifactKind = "affiliated_people_report"
	ArtifactComment                ArtifactKind = "comment"
	ArtifactTag                    ArtifactKind = "tag"
)

var reportKinds = map[ArtifactKind]string{
	ArtifactPlayerReport:           "player",
	ArtifactOrgReport:              "organization",
	ArtifactAltAccountReport:       "alt_account",
	ArtifactAffiliatedPeopleReport: "affiliated_people",
}

func ParseArtifactKind(s string) (ArtifactKind, error) {
	k := ArtifactKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case ArtifactComment, ArtifactTag:
		return k, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "artifact kind is required")
	}
	if _, ok := reportKinds[k]; ok {
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unsupported artifact kind: "+s)
}

// ReportKind returns the report kind this artifact kind targets, or "" for
// comments and tags.
func (k ArtifactKind) ReportKind() string {
	return reportKinds[k]
}

// ArtifactKindForReport maps a report kind onto its artifact kind.
func ArtifactKindForReport(reportKind string) (ArtifactKind, bool) {
	for k, rk := range reportKinds {
		if rk == reportKind {
			return k, true
		}
	}
	return "", false
}

// Type is a voter's position on an artifact.
type Type string

const (
	TypeSupport Type = "support"
	TypeDispute Type = "dispute"
	TypeNeutral Type = "neutral"
)

func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeSupport, TypeDispute, TypeNeutral:
		return t, nil
	case "":
		return "", dErrors.New(dErrors.CodeValidation, "attestation type is required")
	default:
		return "", dErrors.New(dErrors.CodeValidation, "attestation type must be support, dispute or neutral")
	}
}

// Attestation is one voter's position on one artifact.
//
// Invariants:
//   - at most one row per (ArtifactKind, ArtifactID, VoterID)
//   - CreatedAt never changes after the first vote; re-votes move UpdatedAt
type Attestation struct {
	ID           id.AttestationID `json:"id"`
	ArtifactKind ArtifactKind     `json:"artifact_kind"`
	ArtifactID   uuid.UUID        `json:"artifact_id"`
	VoterID      id.CallerID      `json:"voter_id"`
	Type         Type             `json:"attestation_type"`
	Comment      string           `json:"comment,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func NewAttestation(attestationID id.AttestationID, kind ArtifactKind, artifactID uuid.UUID, voter id.CallerID, t Type, comment string, now time.Time) (*Attestation, error) {
	if voter.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "attestation requires a voter")
	}
	if artifactID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "attestation requires an artifact")
	}
	comment = strings.TrimSpace(comment)
	if len(comment) > MaxCommentLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "attestation comment must be 1000 characters or less")
	}
	return &Attestation{
		ID:           attestationID,
		ArtifactKind: kind,
		ArtifactID:   artifactID,
		VoterID:      voter,
		Type:         t,
		Comment:      comment,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Tally is the raw vote count on one artifact. No score is derived from it.
type Tally struct {
	Support int `json:"support"`
	Dispute int `json:"dispute"`
	Neutral int `json:"neutral"`
}

// Add counts n votes of type t.
func (t *Tally) Add(typ Type, n int) {
	switch typ {
	case TypeSupport:
		t.Support += n
	case TypeDispute:
		t.Dispute += n
	case TypeNeutral:
		t.Neutral += n
	}
}

// Owner is the player an artifact ultimately belongs to.
type Owner struct {
	PlayerID   id.PlayerID
	ExternalID string
}
