// Package identitysource talks to the external profile service that owns the
// authoritative handle → external id mapping.
//
// The upstream is a black box: given a handle or an external id it returns an
// identity or nothing. Everything upstream-specific (wire format, success flag
// quirks, status codes) is normalized here so callers only see Identity values,
// ErrNotFound, or a categorized *SourceError.
package identitysource

import (
	"context"
	"strings"
)

// Identity is the normalized upstream profile.
type Identity struct {
	ExternalID  string
	Handle      string
	DisplayName string
	AvatarURL   string
	// Organizations is nil when the upstream did not report memberships, and an
	// empty slice when it reported none.
	Organizations []Membership
}

// Membership is an organization the identity belongs to according to upstream.
type Membership struct {
	SID  string
	Name string
	Rank string
	Main bool
}

// Source resolves identities upstream.
type Source interface {
	LookupByHandle(ctx context.Context, handle string) (*Identity, error)
	LookupByExternalID(ctx context.Context, externalID string) (*Identity, error)
}

// StaticSource serves a fixed set of identities. It backs local runs without an
// upstream and tests in packages that only need a deterministic source.
type StaticSource struct {
	byHandle map[string]Identity
	byID     map[string]Identity
}

func NewStaticSource(identities ...Identity) *StaticSource {
	s := &StaticSource{
		byHandle: make(map[string]Identity, len(identities)),
		byID:     make(map[string]Identity, len(identities)),
	}
	for _, ident := range identities {
		s.byHandle[strings.ToLower(ident.Handle)] = ident
		s.byID[ident.ExternalID] = ident
	}
	return s
}

func (s *StaticSource) LookupByHandle(ctx context.Context, handle string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewSourceError(ErrorTimeout, "static", "lookup cancelled", err)
	}
	ident, ok := s.byHandle[strings.ToLower(strings.TrimSpace(handle))]
	if !ok {
		return nil, ErrNotFound
	}
	return &ident, nil
}

func (s *StaticSource) LookupByExternalID(ctx context.Context, externalID string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewSourceError(ErrorTimeout, "static", "lookup cancelled", err)
	}
	ident, ok := s.byID[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	return &ident, nil
}
