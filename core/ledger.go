package core

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTeam is returned for a team id the ledger was not built with.
	ErrUnknownTeam = errors.New("unknown team")
	// ErrUnknownPlayer is returned for a player id the ledger was not built with.
	ErrUnknownPlayer = errors.New("unknown player")
)

// Ledger tracks per-team purchases and owns the Sold transitions of the
// players it was built with.
//
// ApplySale does not validate. Callers must run BidValidator.Validate for the
// same team, player, amount and round and only apply an accepted bid.
type Ledger struct {
	teams   map[string]*TeamLedger
	order   []string
	players map[string]*Player
}

// NewLedger creates an empty ledger for teams over players. Player pointers
// are retained; status changes are written through them.
func NewLedger(teams []Team, players []*Player) *Ledger {
	l := &Ledger{
		teams:   make(map[string]*TeamLedger, len(teams)),
		order:   make([]string, 0, len(teams)),
		players: make(map[string]*Player, len(players)),
	}
	for _, t := range teams {
		l.teams[t.ID] = &TeamLedger{SelectedPlayers: make([]SaleEntry, 0)}
		l.order = append(l.order, t.ID)
	}
	for _, p := range players {
		l.players[p.ID] = p
	}
	return l
}

// TeamLedger returns a copy of the team's ledger.
func (l *Ledger) TeamLedger(teamID string) (TeamLedger, error) {
	tl, ok := l.teams[teamID]
	if !ok {
		return TeamLedger{}, fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	entries := make([]SaleEntry, len(tl.SelectedPlayers))
	copy(entries, tl.SelectedPlayers)
	return TeamLedger{SelectedPlayers: entries, BudgetUsed: tl.BudgetUsed}, nil
}

// TeamIDs returns team ids in creation order.
func (l *Ledger) TeamIDs() []string {
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	return ids
}

// ApplySale records playerID as bought by teamID. Both ids are resolved before
// anything changes, so an unknown id leaves the ledger untouched.
func (l *Ledger) ApplySale(teamID, playerID string, bidAmount int64, round int) error {
	tl, ok := l.teams[teamID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	player, ok := l.players[playerID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}

	tl.SelectedPlayers = append(tl.SelectedPlayers, SaleEntry{
		PlayerID:  playerID,
		BidAmount: bidAmount,
		Round:     round,
	})
	tl.BudgetUsed += bidAmount
	player.Status = Sold(teamID, bidAmount, round)
	return nil
}

// ResetTeam returns every player bought by teamID to Available and empties
// the team's ledger. It is the only way out of the Sold status. The released
// player ids are returned in purchase order.
func (l *Ledger) ResetTeam(teamID string) ([]string, error) {
	tl, ok := l.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}

	released := make([]string, 0, len(tl.SelectedPlayers))
	for _, entry := range tl.SelectedPlayers {
		if player, ok := l.players[entry.PlayerID]; ok {
			player.Status = Available()
		}
		released = append(released, entry.PlayerID)
	}

	tl.SelectedPlayers = make([]SaleEntry, 0)
	tl.BudgetUsed = 0
	return released, nil
}

// Restore replaces the team's ledger with entries and marks each entry's
// player Sold. BudgetUsed is recomputed from the entries.
func (l *Ledger) Restore(teamID string, entries []SaleEntry) error {
	tl, ok := l.teams[teamID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTeam, teamID)
	}
	for _, e := range entries {
		if _, ok := l.players[e.PlayerID]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPlayer, e.PlayerID)
		}
	}

	tl.SelectedPlayers = make([]SaleEntry, 0, len(entries))
	tl.BudgetUsed = 0
	for _, e := range entries {
		tl.SelectedPlayers = append(tl.SelectedPlayers, e)
		tl.BudgetUsed += e.BidAmount
		l.players[e.PlayerID].Status = Sold(teamID, e.BidAmount, e.Round)
	}
	return nil
}
