package models

// Outcome says how a resolution was satisfied.
type Outcome string

const (
	OutcomeNotFound      Outcome = "not_found"
	OutcomeExisting      Outcome = "existing"
	OutcomeCreated       Outcome = "created"
	OutcomeHandleChanged Outcome = "handle_changed"
	OutcomeRefreshed     Outcome = "refreshed"
)

// Mutated reports whether the outcome changed stored player state that readers
// may have cached.
func (o Outcome) Mutated() bool {
	return o == OutcomeCreated || o == OutcomeHandleChanged || o == OutcomeRefreshed
}

// MatchSource tags where a search hit came from.
type MatchSource string

const (
	MatchCurrent      MatchSource = "current"
	MatchHistorical   MatchSource = "historical"
	MatchNewlySourced MatchSource = "newly_sourced"
)

// SearchHit is one player in a handle search.
type SearchHit struct {
	Player *Player     `json:"player"`
	Match  MatchSource `json:"match"`
}
