package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dossier/pkg/domain"
	dErrors "dossier/pkg/domain-errors"
)

func TestParseArtifactKind(t *testing.T) {
	for _, raw := range []string{"player_report", "ORG_REPORT", "alt_account_report", "affiliated_people_report", "comment", " tag "} {
		_, err := ParseArtifactKind(raw)
		require.NoError(t, err, raw)
	}
	_, err := ParseArtifactKind("report")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestArtifactKindReportMapping(t *testing.T) {
	for _, rk := range []string{"player", "organization", "alt_account", "affiliated_people"} {
		k, ok := ArtifactKindForReport(rk)
		require.True(t, ok, rk)
		assert.Equal(t, rk, k.ReportKind())
	}
	_, ok := ArtifactKindForReport("comment")
	assert.False(t, ok)
	assert.Empty(t, ArtifactTag.ReportKind())
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" Dispute ")
	require.NoError(t, err)
	assert.Equal(t, TypeDispute, got)

	_, err = ParseType("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = ParseType("upvote")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestNewAttestation(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	artifact := uuid.New()

	a, err := NewAttestation(id.NewAttestationID(), ArtifactComment, artifact, "u1", TypeSupport, "  agreed ", now)
	require.NoError(t, err)
	assert.Equal(t, "agreed", a.Comment)
	assert.Equal(t, a.CreatedAt, a.UpdatedAt)

	_, err = NewAttestation(id.NewAttestationID(), ArtifactComment, artifact, "", TypeSupport, "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	_, err = NewAttestation(id.NewAttestationID(), ArtifactComment, uuid.Nil, "u1", TypeSupport, "", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	_, err = NewAttestation(id.NewAttestationID(), ArtifactComment, artifact, "u1", TypeSupport, strings.Repeat("x", MaxCommentLength+1), now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestTally_Add(t *testing.T) {
	var tally Tally
	tally.Add(TypeSupport, 2)
	tally.Add(TypeDispute, 1)
	tally.Add(Type("bogus"), 5)
	assert.Equal(t, Tally{Support: 2, Dispute: 1}, tally)
}
