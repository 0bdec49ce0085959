package core

import "fmt"

// DefaultMinPerPlayer is the budget a team must keep for each roster spot it
// still has to fill.
const DefaultMinPerPlayer int64 = 1_000_000

// RejectReason explains why a bid was refused. The empty reason means the bid
// was accepted.
type RejectReason string

const (
	ReasonNone                RejectReason = ""
	ReasonAlreadySold         RejectReason = "already_sold"
	ReasonBelowBasePrice      RejectReason = "below_base_price"
	ReasonRosterFull          RejectReason = "roster_full"
	ReasonInsufficientReserve RejectReason = "insufficient_reserve"
	ReasonBudgetExceeded      RejectReason = "budget_exceeded"
	// ReasonNotInRound is reported by the session for players the current
	// round does not offer.
	ReasonNotInRound RejectReason = "not_in_round"
)

// BidDecision is the outcome of validating one bid.
type BidDecision struct {
	Accepted  bool
	Reason    RejectReason
	Message   string
	BasePrice int64
}

func accept(basePrice int64) BidDecision {
	return BidDecision{Accepted: true, BasePrice: basePrice}
}

func reject(reason RejectReason, basePrice int64, format string, args ...any) BidDecision {
	return BidDecision{
		Reason:    reason,
		Message:   fmt.Sprintf(format, args...),
		BasePrice: basePrice,
	}
}

// BidValidator checks a bid against the auction rules. It has no side effects.
type BidValidator struct {
	Policy       RoundPolicy
	MinPerPlayer int64
}

// DefaultBidValidator returns a validator for the three-round format with a
// one million reserve per open roster spot.
func DefaultBidValidator() BidValidator {
	return BidValidator{Policy: DefaultRoundPolicy(), MinPerPlayer: DefaultMinPerPlayer}
}

// Validate runs the checks in a fixed order; the first failing check decides
// the reason:
//  1. player already sold
//  2. bid below the round's base price
//  3. roster full
//  4. bid would leave less than MinPerPlayer for each remaining spot
//  5. bid exceeds the remaining budget
//
// The reserve check runs before the budget check so a bid that fits the purse
// but starves later mandatory purchases reports the reserve.
func (v BidValidator) Validate(team Team, ledger TeamLedger, player Player, bidAmount int64, round int) BidDecision {
	basePrice := v.Policy.BasePrice(round, &player)

	if player.Status.IsSold() {
		return reject(ReasonAlreadySold, basePrice, "Player already sold.")
	}

	if bidAmount <= 0 || bidAmount < basePrice {
		return reject(ReasonBelowBasePrice, basePrice, "Bid must be at least $%s.", FormatMillion(basePrice))
	}

	selected := ledger.RosterCount()
	if selected >= team.MaxPlayers {
		return reject(ReasonRosterFull, basePrice, "Team has reached maximum players.")
	}

	remaining := team.MaxBudget - ledger.BudgetUsed
	remainingSpots := int64(team.MaxPlayers - selected - 1)
	if v.MinPerPlayer >= 0 && (bidAmount > remaining || !v.reserveFits(remaining-bidAmount, remainingSpots)) {
		return reject(ReasonInsufficientReserve, basePrice,
			"Bid too high. Must reserve $%s per remaining spot.", FormatMillion(v.MinPerPlayer))
	}

	if bidAmount > remaining {
		return reject(ReasonBudgetExceeded, basePrice, "Team budget exceeded.")
	}

	return accept(basePrice)
}

// MaxAffordableBid is the largest bid Validate would accept for team on a
// player with a low enough base price, or 0 if the team cannot buy anyone.
func (v BidValidator) MaxAffordableBid(team Team, ledger TeamLedger) int64 {
	selected := ledger.RosterCount()
	if selected >= team.MaxPlayers {
		return 0
	}
	remaining := team.MaxBudget - ledger.BudgetUsed
	if remaining <= 0 {
		return 0
	}
	spots := int64(team.MaxPlayers - selected - 1)
	if v.MinPerPlayer <= 0 || spots == 0 {
		return remaining
	}
	if spots > remaining/v.MinPerPlayer {
		return 0
	}
	return remaining - spots*v.MinPerPlayer
}

// reserveFits reports whether left covers MinPerPlayer for each of spots.
// The comparison divides, so no roster size can overflow it.
func (v BidValidator) reserveFits(left, spots int64) bool {
	if v.MinPerPlayer <= 0 || spots <= 0 {
		return true
	}
	return spots <= left/v.MinPerPlayer
}
