// Package invalidation carries the set of players whose visible state a write
// changed.
//
// Every mutating operation returns a Signal, including writes that turned out to
// be no-ops, so callers holding derived views (caches, search indexes) know what
// to drop. The core never pushes; edges may forward signals through a Publisher.
package invalidation

import (
	"slices"

	pstrings "dossier/pkg/platform/strings"
)

// Signal lists affected players by external id, deduplicated, in first-seen order.
type Signal struct {
	ExternalIDs []string `json:"external_ids"`
}

func New(externalIDs ...string) Signal {
	ids := pstrings.DedupeAndTrim(externalIDs)
	if ids == nil {
		ids = []string{}
	}
	return Signal{ExternalIDs: ids}
}

// Merge returns the union of s and others.
func (s Signal) Merge(others ...Signal) Signal {
	all := slices.Clone(s.ExternalIDs)
	for _, o := range others {
		all = append(all, o.ExternalIDs...)
	}
	return New(all...)
}

func (s Signal) IsEmpty() bool {
	return len(s.ExternalIDs) == 0
}

func (s Signal) Contains(externalID string) bool {
	return slices.Contains(s.ExternalIDs, externalID)
}
