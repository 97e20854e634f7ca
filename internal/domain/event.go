package domain

import "time"

// Event is one dinner a host collects guest responses for.
type Event struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	HostEmail string       `json:"host_email,omitempty"`
	Date      *time.Time   `json:"date,omitempty"`
	Areas     []SearchArea `json:"areas"`

	// Selection is the restaurant the host settled on, if any.
	Selection *Selection `json:"selection,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Selection records the ranked restaurant a host picked. Result is copied
// from the ranking so the choice survives a later re-rank.
type Selection struct {
	PlaceID    string        `json:"place_id"`
	RunID      string        `json:"run_id"`
	Result     RankingResult `json:"result"`
	SelectedAt time.Time     `json:"selected_at"`
}
