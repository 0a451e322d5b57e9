// Package domain holds typed identifiers shared across bounded contexts.
//
// Typed IDs keep a PlayerID from being passed where a ReportID is expected. Parse
// functions are the only trust-boundary constructors; direct conversion from
// uuid.UUID is reserved for stores and tests.
package domain

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "dossier/pkg/domain-errors"
)

type (
	PlayerID      uuid.UUID
	ReportID      uuid.UUID
	CommentID     uuid.UUID
	TagID         uuid.UUID
	AttestationID uuid.UUID
)

// CallerID identifies an already-authenticated community member. It is opaque to
// this system.
type CallerID string

const maxCallerIDLength = 128

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return parsed, nil
}

func ParsePlayerID(s string) (PlayerID, error) {
	u, err := parseUUID(s, "player id")
	return PlayerID(u), err
}

func ParseReportID(s string) (ReportID, error) {
	u, err := parseUUID(s, "report id")
	return ReportID(u), err
}

func ParseCommentID(s string) (CommentID, error) {
	u, err := parseUUID(s, "comment id")
	return CommentID(u), err
}

func ParseTagID(s string) (TagID, error) {
	u, err := parseUUID(s, "tag id")
	return TagID(u), err
}

// ParseArtifactID parses the identifier of any attestable artifact. Artifacts of
// different kinds share the UUID space, so the caller supplies the kind separately.
func ParseArtifactID(s string) (uuid.UUID, error) {
	return parseUUID(s, "artifact id")
}

// ParseCallerID validates an identifier handed over by the authentication layer.
func ParseCallerID(s string) (CallerID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "caller id is required")
	}
	if len(s) > maxCallerIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "caller id too long")
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "caller id contains control characters")
		}
	}
	return CallerID(s), nil
}

func NewPlayerID() PlayerID           { return PlayerID(uuid.New()) }
func NewReportID() ReportID           { return ReportID(uuid.New()) }
func NewCommentID() CommentID         { return CommentID(uuid.New()) }
func NewTagID() TagID                 { return TagID(uuid.New()) }
func NewAttestationID() AttestationID { return AttestationID(uuid.New()) }

func (id PlayerID) String() string      { return uuid.UUID(id).String() }
func (id ReportID) String() string      { return uuid.UUID(id).String() }
func (id CommentID) String() string     { return uuid.UUID(id).String() }
func (id TagID) String() string         { return uuid.UUID(id).String() }
func (id AttestationID) String() string { return uuid.UUID(id).String() }
func (id CallerID) String() string      { return string(id) }

func (id PlayerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReportID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id CallerID) IsNil() bool { return id == "" }

// MarshalText lets typed IDs serialize as plain UUID strings in JSON.
func (id PlayerID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id ReportID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id CommentID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id TagID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id AttestationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
