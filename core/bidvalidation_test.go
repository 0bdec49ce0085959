package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestValidate(t *testing.T) {
	team := Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 3}
	available := Player{ID: "p1", BasePrice: 1_000_000, Status: Available()}
	v := DefaultBidValidator()

	tests := []struct {
		name     string
		team     Team
		ledger   TeamLedger
		player   Player
		bid      int64
		round    int
		expected RejectReason
	}{
		{
			name:     "reserve kept, accepted",
			team:     team,
			player:   available,
			bid:      7_500_000,
			round:    1,
			expected: ReasonNone,
		},
		{
			name:     "reserve broken, rejected",
			team:     team,
			player:   available,
			bid:      8_500_000,
			round:    1,
			expected: ReasonInsufficientReserve,
		},
		{
			name:     "bid exactly at reserve limit",
			team:     team,
			player:   available,
			bid:      8_000_000,
			round:    1,
			expected: ReasonNone,
		},
		{
			name:     "already sold wins over every other reason",
			team:     Team{ID: "t1", MaxBudget: 1, MaxPlayers: 0},
			player:   Player{ID: "p1", BasePrice: 1_000_000, Status: Sold("t2", 1_000_000, 1)},
			bid:      0,
			round:    1,
			expected: ReasonAlreadySold,
		},
		{
			name:     "zero bid",
			team:     team,
			player:   available,
			bid:      0,
			round:    1,
			expected: ReasonBelowBasePrice,
		},
		{
			name:     "negative bid",
			team:     team,
			player:   available,
			bid:      -5,
			round:    1,
			expected: ReasonBelowBasePrice,
		},
		{
			name:     "below base price checked before roster",
			team:     Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 0},
			player:   available,
			bid:      999_999,
			round:    1,
			expected: ReasonBelowBasePrice,
		},
		{
			name:     "final round uses override price",
			team:     team,
			player:   Player{ID: "p1", BasePrice: 3_000_000, FinalRoundBasePrice: int64Ptr(1_000_000), Status: UnsoldInRound(2)},
			bid:      1_000_000,
			round:    3,
			expected: ReasonNone,
		},
		{
			name:     "override does not apply before final round",
			team:     team,
			player:   Player{ID: "p1", BasePrice: 3_000_000, FinalRoundBasePrice: int64Ptr(1_000_000), Status: UnsoldInRound(1)},
			bid:      1_000_000,
			round:    2,
			expected: ReasonBelowBasePrice,
		},
		{
			name: "roster full",
			team: Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 1},
			ledger: TeamLedger{
				SelectedPlayers: []SaleEntry{{PlayerID: "p9", BidAmount: 1_000_000, Round: 1}},
				BudgetUsed:      1_000_000,
			},
			player:   available,
			bid:      1_000_000,
			round:    1,
			expected: ReasonRosterFull,
		},
		{
			name:     "zero max players is always full",
			team:     Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 0},
			player:   available,
			bid:      1_000_000,
			round:    1,
			expected: ReasonRosterFull,
		},
		{
			name: "last spot only checks the purse",
			team: Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 2},
			ledger: TeamLedger{
				SelectedPlayers: []SaleEntry{{PlayerID: "p9", BidAmount: 4_000_000, Round: 1}},
				BudgetUsed:      4_000_000,
			},
			player:   available,
			bid:      6_000_000,
			round:    1,
			expected: ReasonNone,
		},
		{
			name: "last spot over budget",
			team: Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 2},
			ledger: TeamLedger{
				SelectedPlayers: []SaleEntry{{PlayerID: "p9", BidAmount: 4_000_000, Round: 1}},
				BudgetUsed:      4_000_000,
			},
			player:   available,
			bid:      6_000_001,
			round:    1,
			expected: ReasonInsufficientReserve,
		},
		{
			name:     "huge roster reserve does not overflow",
			team:     Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 9_300_000_000_000},
			player:   available,
			bid:      5_000_000,
			round:    1,
			expected: ReasonInsufficientReserve,
		},
		{
			name:     "huge bid does not overflow",
			team:     team,
			player:   available,
			bid:      1<<63 - 1,
			round:    1,
			expected: ReasonInsufficientReserve,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := v.Validate(tt.team, tt.ledger, tt.player, tt.bid, tt.round)
			check.Equal(t, tt.expected, decision.Reason)
			check.Equal(t, tt.expected == ReasonNone, decision.Accepted)
			if !decision.Accepted {
				check.NotEqual(t, "", decision.Message)
			}
		})
	}
}

func TestValidate_ReserveBeforeBudget(t *testing.T) {
	// Both the reserve and the purse are exceeded: the reserve is reported.
	team := Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 3}
	player := Player{ID: "p1", BasePrice: 1_000_000}

	decision := DefaultBidValidator().Validate(team, TeamLedger{}, player, 11_000_000, 1)
	check.Equal(t, ReasonInsufficientReserve, decision.Reason)
	check.Equal(t, "Bid too high. Must reserve $1.00M per remaining spot.", decision.Message)
}

func TestValidate_IsPure(t *testing.T) {
	team := Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 3}
	ledger := TeamLedger{
		SelectedPlayers: []SaleEntry{{PlayerID: "p9", BidAmount: 2_000_000, Round: 1}},
		BudgetUsed:      2_000_000,
	}
	player := Player{ID: "p1", BasePrice: 1_000_000}
	v := DefaultBidValidator()

	first := v.Validate(team, ledger, player, 5_000_000, 1)
	second := v.Validate(team, ledger, player, 5_000_000, 1)
	check.Equal(t, first, second)
	check.Equal(t, int64(2_000_000), ledger.BudgetUsed)
	check.Equal(t, 1, len(ledger.SelectedPlayers))
	check.True(t, player.Status.IsAvailable())
}

func TestValidate_BelowBasePriceMessage(t *testing.T) {
	decision := DefaultBidValidator().Validate(
		Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 3},
		TeamLedger{},
		Player{ID: "p1", BasePrice: 1_250_000},
		1_000_000, 1)
	check.Equal(t, ReasonBelowBasePrice, decision.Reason)
	check.Equal(t, "Bid must be at least $1.25M.", decision.Message)
	check.Equal(t, int64(1_250_000), decision.BasePrice)
}

func TestMaxAffordableBid(t *testing.T) {
	v := DefaultBidValidator()
	team := Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 3}

	check.Equal(t, int64(8_000_000), v.MaxAffordableBid(team, TeamLedger{}))
	check.Equal(t, int64(3_000_000), v.MaxAffordableBid(team, TeamLedger{
		SelectedPlayers: []SaleEntry{{PlayerID: "a", BidAmount: 6_000_000}},
		BudgetUsed:      6_000_000,
	}))
	check.Equal(t, int64(0), v.MaxAffordableBid(Team{ID: "t2", MaxBudget: 1, MaxPlayers: 0}, TeamLedger{}))
}

func TestMaxAffordableBid_HugeRoster(t *testing.T) {
	v := DefaultBidValidator()
	huge := Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 9_300_000_000_000}
	check.Equal(t, int64(0), v.MaxAffordableBid(huge, TeamLedger{}))

	// Ten spots fit exactly: one bid of 1M leaves 1M for each of the other nine.
	tight := Team{ID: "t2", MaxBudget: 10_000_000, MaxPlayers: 10}
	check.Equal(t, int64(1_000_000), v.MaxAffordableBid(tight, TeamLedger{}))
	check.True(t, v.Validate(tight, TeamLedger{}, Player{ID: "p1", BasePrice: 1_000_000}, 1_000_000, 1).Accepted)
	check.Equal(t, ReasonInsufficientReserve,
		v.Validate(tight, TeamLedger{}, Player{ID: "p1", BasePrice: 1_000_000}, 1_000_001, 1).Reason)
}

func TestValidate_NegativeReserveFallsBackToBudget(t *testing.T) {
	v := BidValidator{Policy: DefaultRoundPolicy(), MinPerPlayer: -1}
	team := Team{ID: "t1", MaxBudget: 10_000_000, MaxPlayers: 3}
	player := Player{ID: "p1", BasePrice: 1_000_000}

	check.True(t, v.Validate(team, TeamLedger{}, player, 10_000_000, 1).Accepted)
	check.Equal(t, ReasonBudgetExceeded, v.Validate(team, TeamLedger{}, player, 10_000_001, 1).Reason)
}
