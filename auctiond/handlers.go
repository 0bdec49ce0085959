package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudx-io/playerauction/auction"
	"github.com/cloudx-io/playerauction/core"
	"github.com/cloudx-io/playerauction/sessionapi"
)

// Reasons reported for command failures that are not bid rejections.
const (
	reasonBadRequest      = "bad_request"
	reasonUnknownTeam     = "unknown_team"
	reasonUnknownPlayer   = "unknown_player"
	reasonNotPending      = "not_pending"
	reasonRoundIncomplete = "round_incomplete"
	reasonAuctionComplete = "auction_complete"
	reasonSessionClosed   = "session_closed"
	reasonInternal        = "internal_error"
	reasonRateLimited     = "rate_limited"
)

func (s *AuctionServer) handleRequest(ctx context.Context, req sessionapi.CommandRequest) sessionapi.CommandResponse {
	switch req.Type {
	case "ping":
		return sessionapi.CommandResponse{
			Type:    "pong",
			Success: true,
			Message: "auction server is healthy",
		}
	case "status":
		return s.handleStatus()
	case "next_candidate":
		return s.handleNextCandidate()
	case "place_bid":
		return s.handlePlaceBid(ctx, req)
	case "skip_candidate":
		return s.handleSkip(ctx, req)
	case "advance_round":
		return s.handleAdvance(ctx)
	case "reset_team":
		return s.handleReset(ctx, req)
	case "standings":
		return s.handleStandings()
	default:
		return errorResponse(fmt.Sprintf("Unknown request type: %s", req.Type))
	}
}

func errorResponse(message string) sessionapi.CommandResponse {
	return sessionapi.CommandResponse{Type: "error", Message: message, Reason: reasonBadRequest}
}

// failure maps a session error onto a response.
func failure(reqType string, err error) sessionapi.CommandResponse {
	resp := sessionapi.CommandResponse{Type: reqType + "_response", Message: err.Error()}

	var incomplete *auction.RoundIncompleteError
	switch {
	case errors.As(err, &incomplete):
		resp.Reason = reasonRoundIncomplete
		resp.Round = incomplete.Round
		resp.Unresolved = incomplete.Unresolved
		resp.Message = fmt.Sprintf("Round %d still has %d players to sell or skip.", incomplete.Round, incomplete.Unresolved)
	case errors.Is(err, auction.ErrAuctionComplete):
		resp.Reason = reasonAuctionComplete
		resp.Complete = true
		resp.Message = "Auction complete."
	case errors.Is(err, core.ErrUnknownTeam):
		resp.Reason = reasonUnknownTeam
	case errors.Is(err, core.ErrUnknownPlayer):
		resp.Reason = reasonUnknownPlayer
	case errors.Is(err, auction.ErrNotPending):
		resp.Reason = reasonNotPending
	case errors.Is(err, auction.ErrSessionClosed):
		resp.Reason = reasonSessionClosed
	default:
		resp.Reason = reasonInternal
	}
	return resp
}

func (s *AuctionServer) handleStatus() sessionapi.CommandResponse {
	pending := s.session.Pending()
	unsold := s.session.Unsold()
	ids := make([]string, 0, len(unsold))
	for _, p := range unsold {
		ids = append(ids, p.ID)
	}
	round := s.session.CurrentRound()
	return sessionapi.CommandResponse{
		Type:       "status_response",
		Success:    true,
		Message:    fmt.Sprintf("Round %d of %d: %d pending, %d unsold", round, s.session.MaxRound(), len(pending), len(unsold)),
		Round:      round,
		Unresolved: len(pending),
		Complete:   s.session.IsComplete(),
		PlayerIDs:  ids,
	}
}

func (s *AuctionServer) handleNextCandidate() sessionapi.CommandResponse {
	player, ok, err := s.session.NextCandidate()
	if err != nil {
		return failure("next_candidate", err)
	}
	round := s.session.CurrentRound()
	resp := sessionapi.CommandResponse{
		Type:    "next_candidate_response",
		Success: true,
		Round:   round,
	}
	if !ok {
		resp.Complete = s.session.IsComplete()
		resp.Message = fmt.Sprintf("No players left in round %d.", round)
		return resp
	}
	view := s.candidateView(player)
	resp.Candidate = &view
	resp.Message = fmt.Sprintf("%s is up, base price $%s", player.Name, view.BasePriceDisplay)
	return resp
}

func (s *AuctionServer) handlePlaceBid(ctx context.Context, req sessionapi.CommandRequest) sessionapi.CommandResponse {
	if req.PlayerID == "" || req.TeamID == "" {
		return errorResponse("place_bid requires player_id and team_id")
	}
	res, err := s.session.PlaceBid(ctx, req.PlayerID, req.TeamID, int64(req.Amount))
	if err != nil {
		return failure("place_bid", err)
	}
	return sessionapi.CommandResponse{
		Type:      "place_bid_response",
		Success:   res.Accepted,
		Message:   res.Message,
		Reason:    string(res.Reason),
		Round:     res.Round,
		Complete:  s.session.IsComplete(),
		PlayerIDs: []string{res.PlayerID},
	}
}

func (s *AuctionServer) handleSkip(ctx context.Context, req sessionapi.CommandRequest) sessionapi.CommandResponse {
	if req.PlayerID == "" {
		return errorResponse("skip_candidate requires player_id")
	}
	if err := s.session.SkipCandidate(ctx, req.PlayerID); err != nil {
		return failure("skip_candidate", err)
	}
	return sessionapi.CommandResponse{
		Type:      "skip_candidate_response",
		Success:   true,
		Message:   fmt.Sprintf("Player %s marked unsold.", req.PlayerID),
		Round:     s.session.CurrentRound(),
		Complete:  s.session.IsComplete(),
		PlayerIDs: []string{req.PlayerID},
	}
}

func (s *AuctionServer) handleAdvance(ctx context.Context) sessionapi.CommandResponse {
	round, err := s.session.AdvanceRound(ctx)
	if err != nil {
		return failure("advance_round", err)
	}
	pending := len(s.session.Pending())
	return sessionapi.CommandResponse{
		Type:       "advance_round_response",
		Success:    true,
		Message:    fmt.Sprintf("Round %d started with %d players.", round, pending),
		Round:      round,
		Unresolved: pending,
		Complete:   s.session.IsComplete(),
	}
}

func (s *AuctionServer) handleReset(ctx context.Context, req sessionapi.CommandRequest) sessionapi.CommandResponse {
	if req.TeamID == "" {
		return errorResponse("reset_team requires team_id")
	}
	released, err := s.session.ResetTeam(ctx, req.TeamID)
	if err != nil {
		return failure("reset_team", err)
	}
	return sessionapi.CommandResponse{
		Type:      "reset_team_response",
		Success:   true,
		Message:   fmt.Sprintf("Team %s reset, %d players released.", req.TeamID, len(released)),
		Round:     s.session.CurrentRound(),
		PlayerIDs: released,
	}
}

func (s *AuctionServer) handleStandings() sessionapi.CommandResponse {
	standings := s.session.Standings()
	views := make([]sessionapi.StandingView, 0, len(standings))
	for _, st := range standings {
		selected := make([]sessionapi.SoldPlayer, 0, len(st.Ledger.SelectedPlayers))
		for _, e := range st.Ledger.SelectedPlayers {
			selected = append(selected, sessionapi.SoldPlayer{PlayerID: e.PlayerID, BidAmount: e.BidAmount, RoundSold: e.Round})
		}
		views = append(views, sessionapi.StandingView{
			TeamID:          st.Team.ID,
			TeamName:        st.Team.Name,
			MaxBudget:       st.Team.MaxBudget,
			BudgetUsed:      st.Ledger.BudgetUsed,
			RemainingPurse:  core.FormatMillion(st.Remaining),
			RosterCount:     st.Ledger.RosterCount(),
			MaxPlayers:      st.Team.MaxPlayers,
			MaxAffordable:   st.MaxAffordable,
			SelectedPlayers: selected,
		})
	}
	return sessionapi.CommandResponse{
		Type:      "standings_response",
		Success:   true,
		Message:   fmt.Sprintf("%d teams", len(views)),
		Round:     s.session.CurrentRound(),
		Standings: views,
	}
}

func (s *AuctionServer) candidateView(p core.Player) sessionapi.CandidateView {
	price, _ := s.session.BasePrice(p.ID)
	return sessionapi.CandidateView{
		PlayerID:               p.ID,
		PlayerName:             p.Name,
		BasePrice:              price,
		BasePriceDisplay:       core.FormatMillion(price),
		AvailabilityPercentage: p.AvailabilityPercentage,
		AvailabilityComments:   p.AvailabilityComments,
		PhotoURL:               p.PhotoURL,
		Status:                 p.Status.String(),
	}
}
