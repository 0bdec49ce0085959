package auction

import (
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/playerauction/core"
	"github.com/cloudx-io/playerauction/sessionapi"
)

// BidResult is the outcome of PlaceBid. A rejected bid has no side effects.
type BidResult struct {
	core.BidDecision
	PlayerID string
	TeamID   string
	Amount   int64
	Round    int
}

// NextCandidate returns the player currently up for bidding. The same
// candidate is returned until it is sold or skipped; then a new one is drawn
// at random from the pending pool. ok is false once the round is exhausted.
func (s *Session) NextCandidate() (player core.Player, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.Player{}, false, ErrSessionClosed
	}

	pending := s.pendingLocked()
	if s.candidate != "" {
		for _, p := range pending {
			if p.ID == s.candidate {
				return *p, true, nil
			}
		}
		s.candidate = ""
	}

	idx := core.PickCandidate(len(pending), s.rand)
	if idx < 0 {
		log.Debug().Int("round", s.currentRound).Msg("round exhausted, no candidate")
		return core.Player{}, false, nil
	}
	s.candidate = pending[idx].ID
	log.Debug().Int("round", s.currentRound).Str("player_id", s.candidate).Int("pending", len(pending)).Msg("next candidate drawn")
	return *pending[idx], true, nil
}

// PlaceBid sells playerID to teamID for amount if the bid passes validation.
//
// Unknown ids are returned as errors wrapping core.ErrUnknownPlayer or
// core.ErrUnknownTeam. Rule violations come back as a rejected BidResult.
// The player must be offered by the current round: either pending, or
// skipped earlier in this round and still on the unsold list.
func (s *Session) PlaceBid(ctx context.Context, playerID, teamID string, amount int64) (BidResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return BidResult{}, ErrSessionClosed
	}

	player, err := s.player(playerID)
	if err != nil {
		return BidResult{}, err
	}
	team, err := s.team(teamID)
	if err != nil {
		return BidResult{}, err
	}
	teamLedger, err := s.ledger.TeamLedger(teamID)
	if err != nil {
		return BidResult{}, err
	}

	result := BidResult{PlayerID: playerID, TeamID: teamID, Amount: amount, Round: s.currentRound}

	if !player.Status.IsSold() && !s.offeredLocked(player) {
		result.BidDecision = core.BidDecision{
			Reason:    core.ReasonNotInRound,
			Message:   fmt.Sprintf("Player is not up for bidding in round %d.", s.currentRound),
			BasePrice: s.policy.BasePrice(s.currentRound, player),
		}
		return result, nil
	}

	result.BidDecision = s.validator.Validate(team, teamLedger, *player, amount, s.currentRound)
	if !result.Accepted {
		log.Debug().
			Str("player_id", playerID).
			Str("team_id", teamID).
			Int64("amount", amount).
			Str("reason", string(result.Reason)).
			Msg("bid rejected")
		return result, nil
	}

	wasComplete := s.isCompleteLocked()
	if err := s.ledger.ApplySale(teamID, playerID, amount, s.currentRound); err != nil {
		return BidResult{}, fmt.Errorf("apply sale: %w", err)
	}
	s.unsold = slices.DeleteFunc(s.unsold, func(id string) bool { return id == playerID })
	if s.candidate == playerID {
		s.candidate = ""
	}
	result.Message = fmt.Sprintf("Sold to %s for $%s", team.Name, core.FormatMillion(amount))

	log.Info().
		Str("session_id", s.id).
		Int("round", s.currentRound).
		Str("player_id", playerID).
		Str("team_id", teamID).
		Str("amount", core.FormatMillion(amount)).
		Msg("player sold")

	s.saveLocked(ctx)
	s.publishLocked(ctx, sessionapi.Event{
		Type:     sessionapi.EventPlayerSold,
		Round:    s.currentRound,
		PlayerID: playerID,
		TeamID:   teamID,
		Amount:   amount,
	})
	s.publishCompletionLocked(ctx, wasComplete)
	return result, nil
}

// SkipCandidate marks a pending player unsold in the current round. The
// ledger is not touched.
func (s *Session) SkipCandidate(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}

	player, err := s.player(playerID)
	if err != nil {
		return err
	}
	if !slices.Contains(s.pendingLocked(), player) {
		return fmt.Errorf("%w: %s in round %d", ErrNotPending, playerID, s.currentRound)
	}

	wasComplete := s.isCompleteLocked()
	player.Status = core.UnsoldInRound(s.currentRound)
	s.unsold = append(s.unsold, playerID)
	if s.candidate == playerID {
		s.candidate = ""
	}

	log.Info().
		Str("session_id", s.id).
		Int("round", s.currentRound).
		Str("player_id", playerID).
		Msg("player skipped")

	s.saveLocked(ctx)
	s.publishLocked(ctx, sessionapi.Event{
		Type:     sessionapi.EventPlayerSkipped,
		Round:    s.currentRound,
		PlayerID: playerID,
	})
	s.publishCompletionLocked(ctx, wasComplete)
	return nil
}

// AdvanceRound moves to the next round once every player of the current pool
// is sold or skipped. It returns the new round number.
func (s *Session) AdvanceRound(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.currentRound, ErrSessionClosed
	}

	if unresolved := len(s.pendingLocked()); unresolved > 0 {
		return s.currentRound, &RoundIncompleteError{Round: s.currentRound, Unresolved: unresolved}
	}
	if s.currentRound >= s.policy.MaxRound {
		return s.currentRound, ErrAuctionComplete
	}

	s.currentRound++
	s.unsold = nil
	s.candidate = ""
	pool := len(s.pendingLocked())

	log.Info().
		Str("session_id", s.id).
		Int("round", s.currentRound).
		Int("pool", pool).
		Msg("round advanced")

	s.saveLocked(ctx)
	s.publishLocked(ctx, sessionapi.Event{
		Type:  sessionapi.EventRoundAdvanced,
		Round: s.currentRound,
	})
	s.publishCompletionLocked(ctx, false)
	return s.currentRound, nil
}

// ResetTeam releases every player bought by teamID back to Available and
// empties the team's ledger. The round does not change. Released players are
// offered again only if the current round's policy includes Available
// players, which is round 1.
func (s *Session) ResetTeam(ctx context.Context, teamID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	released, err := s.ledger.ResetTeam(teamID)
	if err != nil {
		return nil, err
	}

	log.Warn().
		Str("session_id", s.id).
		Int("round", s.currentRound).
		Str("team_id", teamID).
		Strs("released", released).
		Msg("team reset")

	s.saveLocked(ctx)
	s.publishLocked(ctx, sessionapi.Event{
		Type:      sessionapi.EventTeamReset,
		Round:     s.currentRound,
		TeamID:    teamID,
		PlayerIDs: released,
	})
	return released, nil
}

// offeredLocked reports whether the current round offers player.
func (s *Session) offeredLocked(player *core.Player) bool {
	if player.Status.IsUnsoldIn(s.currentRound) {
		return true
	}
	return slices.Contains(s.pendingLocked(), player)
}

func (s *Session) publishCompletionLocked(ctx context.Context, wasComplete bool) {
	if wasComplete || !s.isCompleteLocked() {
		return
	}
	log.Info().Str("session_id", s.id).Int("round", s.currentRound).Msg("auction complete")
	s.publishLocked(ctx, sessionapi.Event{
		Type:  sessionapi.EventAuctionCompleted,
		Round: s.currentRound,
	})
}
