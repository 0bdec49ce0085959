package auction

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/playerauction/core"
	"github.com/cloudx-io/playerauction/sessionapi"
)

var errCorruptSnapshot = errors.New("corrupt snapshot")

// Snapshot returns the state to persist.
func (s *Session) Snapshot() sessionapi.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() sessionapi.Snapshot {
	teamIDs := s.ledger.TeamIDs()
	data := make(map[string]sessionapi.TeamAuctionData, len(teamIDs))
	for _, teamID := range teamIDs {
		tl, _ := s.ledger.TeamLedger(teamID)
		selected := make([]sessionapi.SoldPlayer, 0, len(tl.SelectedPlayers))
		for _, e := range tl.SelectedPlayers {
			selected = append(selected, sessionapi.SoldPlayer{PlayerID: e.PlayerID, BidAmount: e.BidAmount, RoundSold: e.Round})
		}
		data[teamID] = sessionapi.TeamAuctionData{SelectedPlayers: selected, BudgetUsed: tl.BudgetUsed}
	}

	states := make([]sessionapi.PlayerState, 0, len(s.players))
	for _, p := range s.players {
		state := sessionapi.PlayerState{PlayerID: p.ID, IsSold: p.Status.IsSold()}
		if p.Status.Kind == core.StatusUnsold {
			round := p.Status.Round
			state.UnsoldRound = &round
		}
		states = append(states, state)
	}

	unsold := make([]string, len(s.unsold))
	copy(unsold, s.unsold)

	return sessionapi.Snapshot{
		SessionID:     s.id,
		CurrentRound:  s.currentRound,
		AuctionData:   data,
		UnsoldPlayers: unsold,
		PlayerStates:  states,
		SavedAt:       s.clock.Now().UTC(),
	}
}

// LoadSession resumes a previous session from the snapshot source. A missing
// or unusable snapshot is not an error: the failure is logged and the session
// stays in its initial state. It reports whether a snapshot was applied.
func (s *Session) LoadSession(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.source == nil {
		return false
	}

	snap, err := s.source.Load(ctx)
	if err != nil {
		if errors.Is(err, sessionapi.ErrNoSnapshot) {
			log.Info().Str("session_id", s.id).Msg("no saved auction session, starting fresh")
		} else {
			log.Warn().Err(err).Str("session_id", s.id).Msg("persistence load failure, starting fresh")
		}
		return false
	}
	if snap == nil {
		log.Info().Str("session_id", s.id).Msg("no saved auction session, starting fresh")
		return false
	}

	if err := s.applySnapshotLocked(snap); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Msg("persistence load failure, starting fresh")
		s.resetLocked()
		return false
	}

	log.Info().
		Str("session_id", s.id).
		Int("round", s.currentRound).
		Int("pending", len(s.pendingLocked())).
		Int("unsold", len(s.unsold)).
		Msg("auction session resumed")
	return true
}

// resetLocked returns the session to its initial state, keeping the records.
func (s *Session) resetLocked() {
	for _, p := range s.players {
		p.Status = core.Available()
	}
	s.ledger = core.NewLedger(s.teams, s.players)
	s.currentRound = 1
	s.unsold = nil
	s.candidate = ""
}

func (s *Session) applySnapshotLocked(snap *sessionapi.Snapshot) error {
	if snap.CurrentRound < 1 || snap.CurrentRound > s.policy.MaxRound {
		return fmt.Errorf("%w: round %d outside [1, %d]", errCorruptSnapshot, snap.CurrentRound, s.policy.MaxRound)
	}

	s.resetLocked()
	s.currentRound = snap.CurrentRound

	// Ledgers first: a sale in the ledger is authoritative over playerStates.
	teamIDs := make([]string, 0, len(snap.AuctionData))
	for id := range snap.AuctionData {
		teamIDs = append(teamIDs, id)
	}
	sort.Strings(teamIDs)

	soldTo := make(map[string]string)
	for _, teamID := range teamIDs {
		team, err := s.team(teamID)
		if err != nil {
			log.Warn().Str("team_id", teamID).Msg("saved ledger for unknown team dropped")
			continue
		}
		data := snap.AuctionData[teamID]

		entries := make([]core.SaleEntry, 0, len(data.SelectedPlayers))
		var total int64
		for _, sp := range data.SelectedPlayers {
			if _, ok := s.playerMap[sp.PlayerID]; !ok {
				log.Warn().Str("team_id", teamID).Str("player_id", sp.PlayerID).Msg("saved sale of unknown player dropped")
				continue
			}
			if owner, dup := soldTo[sp.PlayerID]; dup {
				return fmt.Errorf("%w: player %s sold to both %s and %s", errCorruptSnapshot, sp.PlayerID, owner, teamID)
			}
			if sp.BidAmount <= 0 || sp.RoundSold < 1 || sp.RoundSold > snap.CurrentRound {
				return fmt.Errorf("%w: invalid sale of %s to %s", errCorruptSnapshot, sp.PlayerID, teamID)
			}
			if sp.BidAmount > team.MaxBudget-total {
				return fmt.Errorf("%w: team %s spends more than its budget %d", errCorruptSnapshot, teamID, team.MaxBudget)
			}
			soldTo[sp.PlayerID] = teamID
			total += sp.BidAmount
			entries = append(entries, core.SaleEntry{PlayerID: sp.PlayerID, BidAmount: sp.BidAmount, Round: sp.RoundSold})
		}

		if len(entries) > team.MaxPlayers {
			return fmt.Errorf("%w: team %s holds %d of %d players", errCorruptSnapshot, teamID, len(entries), team.MaxPlayers)
		}
		if total != data.BudgetUsed {
			log.Warn().
				Str("team_id", teamID).
				Int64("saved", data.BudgetUsed).
				Int64("recomputed", total).
				Msg("saved budget differs from sale total, using sale total")
		}
		if err := s.ledger.Restore(teamID, entries); err != nil {
			return fmt.Errorf("restore ledger for %s: %w", teamID, err)
		}
	}

	for _, ps := range snap.PlayerStates {
		p, ok := s.playerMap[ps.PlayerID]
		if !ok || p.Status.IsSold() {
			continue
		}
		if ps.IsSold {
			log.Warn().Str("player_id", ps.PlayerID).Msg("player saved as sold without a ledger entry, treating as available")
			continue
		}
		if ps.UnsoldRound != nil {
			round := *ps.UnsoldRound
			if round < 1 || round > snap.CurrentRound {
				return fmt.Errorf("%w: player %s unsold in round %d", errCorruptSnapshot, ps.PlayerID, round)
			}
			p.Status = core.UnsoldInRound(round)
		}
	}

	// The unsold list keeps its saved order; anything the statuses say was
	// skipped this round but the list missed is appended.
	for _, id := range snap.UnsoldPlayers {
		p, ok := s.playerMap[id]
		if ok && p.Status.IsUnsoldIn(s.currentRound) && !slices.Contains(s.unsold, id) {
			s.unsold = append(s.unsold, id)
		}
	}
	for _, p := range s.players {
		if p.Status.IsUnsoldIn(s.currentRound) && !slices.Contains(s.unsold, p.ID) {
			s.unsold = append(s.unsold, p.ID)
		}
	}

	if snap.SessionID != "" {
		s.id = snap.SessionID
	}
	return nil
}
