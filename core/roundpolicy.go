package core

// DefaultMaxRound is the number of rounds in the standard auction format.
const DefaultMaxRound = 3

// RoundPolicy decides which players a round offers and at what base price.
type RoundPolicy struct {
	MaxRound int
}

// DefaultRoundPolicy returns the three-round policy.
func DefaultRoundPolicy() RoundPolicy {
	return RoundPolicy{MaxRound: DefaultMaxRound}
}

// IsFinalRound reports whether round is the last one.
func (p RoundPolicy) IsFinalRound(round int) bool {
	return round == p.MaxRound
}

// EligiblePlayers filters players for round.
//
// Round 1 offers every Available player. Round N > 1 offers exactly the
// players left unsold in round N-1; players unsold in earlier rounds are not
// carried further. Input order is preserved.
func (p RoundPolicy) EligiblePlayers(round int, players []*Player) []*Player {
	eligible := make([]*Player, 0, len(players))
	for _, player := range players {
		if p.isEligible(round, player) {
			eligible = append(eligible, player)
		}
	}
	return eligible
}

func (p RoundPolicy) isEligible(round int, player *Player) bool {
	if round <= 1 {
		return player.Status.IsAvailable()
	}
	return player.Status.IsUnsoldIn(round - 1)
}

// BasePrice returns the minimum bid for player in round. The final round uses
// the player's final-round price when one is set.
func (p RoundPolicy) BasePrice(round int, player *Player) int64 {
	if p.IsFinalRound(round) && player.FinalRoundBasePrice != nil {
		return *player.FinalRoundBasePrice
	}
	return player.BasePrice
}
