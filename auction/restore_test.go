package auction

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/playerauction/core"
	"github.com/cloudx-io/playerauction/sessionapi"
)

func TestLoadSession_RoundTrip(t *testing.T) {
	f := newFixture(t)
	s := f.session
	ctx := context.Background()

	mustBid(t, s, "p1", "t1", 2_000_000)
	assert.NoError(t, s.SkipCandidate(ctx, "p2"))
	assert.NoError(t, s.SkipCandidate(ctx, "p3"))
	mustBid(t, s, "p4", "t2", 1_000_000)
	_, err := s.AdvanceRound(ctx)
	assert.NoError(t, err)
	assert.NoError(t, s.SkipCandidate(ctx, "p3"))
	saved := s.Snapshot()

	resumed := newFixture(t, WithSessionID("other"), WithSnapshotSource(staticSource{snap: &saved}))
	check.True(t, resumed.session.LoadSession(ctx))

	r := resumed.session
	check.Equal(t, "session-1", r.ID())
	check.Equal(t, 2, r.CurrentRound())
	check.Equal(t, []string{"p2"}, pendingIDs(r))
	check.Equal(t, "p3", r.Unsold()[0].ID)

	p1, _ := r.Player("p1")
	check.Equal(t, core.Sold("t1", 2_000_000, 1), p1.Status)
	p3, _ := r.Player("p3")
	check.Equal(t, core.UnsoldInRound(2), p3.Status)

	standings := r.Standings()
	check.Equal(t, int64(2_000_000), standings[0].Ledger.BudgetUsed)
	check.Equal(t, int64(1_000_000), standings[1].Ledger.BudgetUsed)

	// A restored session keeps working.
	res := mustBid(t, r, "p3", "t2", 2_000_000)
	check.True(t, res.Accepted)
}

func TestLoadSession_NoSnapshot(t *testing.T) {
	f := newFixture(t, WithSnapshotSource(staticSource{err: sessionapi.ErrNoSnapshot}))
	check.False(t, f.session.LoadSession(context.Background()))
	check.Equal(t, 1, f.session.CurrentRound())
	check.Equal(t, 4, len(f.session.Pending()))

	nilSource := newFixture(t, WithSnapshotSource(staticSource{}))
	check.False(t, nilSource.session.LoadSession(context.Background()))

	noSource := newFixture(t)
	check.False(t, noSource.session.LoadSession(context.Background()))
}

func TestLoadSession_LoadErrorStartsFresh(t *testing.T) {
	f := newFixture(t, WithSnapshotSource(staticSource{err: errors.New("connection refused")}))
	check.False(t, f.session.LoadSession(context.Background()))
	check.Equal(t, 1, f.session.CurrentRound())
}

func TestLoadSession_CorruptSnapshots(t *testing.T) {
	unsoldIn := func(round int) *int { return &round }

	tests := []struct {
		name string
		snap sessionapi.Snapshot
	}{
		{
			name: "round out of range",
			snap: sessionapi.Snapshot{CurrentRound: 7},
		},
		{
			name: "round zero",
			snap: sessionapi.Snapshot{CurrentRound: 0},
		},
		{
			name: "player sold twice",
			snap: sessionapi.Snapshot{
				CurrentRound: 1,
				AuctionData: map[string]sessionapi.TeamAuctionData{
					"t1": {SelectedPlayers: []sessionapi.SoldPlayer{{PlayerID: "p1", BidAmount: 1_000_000, RoundSold: 1}}, BudgetUsed: 1_000_000},
					"t2": {SelectedPlayers: []sessionapi.SoldPlayer{{PlayerID: "p1", BidAmount: 1_000_000, RoundSold: 1}}, BudgetUsed: 1_000_000},
				},
			},
		},
		{
			name: "over budget",
			snap: sessionapi.Snapshot{
				CurrentRound: 1,
				AuctionData: map[string]sessionapi.TeamAuctionData{
					"t1": {SelectedPlayers: []sessionapi.SoldPlayer{{PlayerID: "p1", BidAmount: 11_000_000, RoundSold: 1}}, BudgetUsed: 11_000_000},
				},
			},
		},
		{
			name: "sale total overflows",
			snap: sessionapi.Snapshot{
				CurrentRound: 1,
				AuctionData: map[string]sessionapi.TeamAuctionData{
					"t1": {SelectedPlayers: []sessionapi.SoldPlayer{
						{PlayerID: "p1", BidAmount: 1 << 62, RoundSold: 1},
						{PlayerID: "p2", BidAmount: 1 << 62, RoundSold: 1},
					}, BudgetUsed: -1 << 63},
				},
			},
		},
		{
			name: "sold in a future round",
			snap: sessionapi.Snapshot{
				CurrentRound: 1,
				AuctionData: map[string]sessionapi.TeamAuctionData{
					"t1": {SelectedPlayers: []sessionapi.SoldPlayer{{PlayerID: "p1", BidAmount: 1_000_000, RoundSold: 2}}, BudgetUsed: 1_000_000},
				},
			},
		},
		{
			name: "unsold in a future round",
			snap: sessionapi.Snapshot{
				CurrentRound: 1,
				PlayerStates: []sessionapi.PlayerState{{PlayerID: "p2", UnsoldRound: unsoldIn(3)}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := tt.snap
			f := newFixture(t, WithSnapshotSource(staticSource{snap: &snap}))
			s := f.session

			check.False(t, s.LoadSession(context.Background()))
			check.Equal(t, "session-1", s.ID())
			check.Equal(t, 1, s.CurrentRound())
			check.Equal(t, []string{"p1", "p2", "p3", "p4"}, pendingIDs(s))
			for _, st := range s.Standings() {
				check.Equal(t, int64(0), st.Ledger.BudgetUsed)
				check.Equal(t, 0, st.Ledger.RosterCount())
			}
		})
	}
}

func TestLoadSession_UnknownIDsDropped(t *testing.T) {
	snap := sessionapi.Snapshot{
		SessionID:    "saved",
		CurrentRound: 1,
		AuctionData: map[string]sessionapi.TeamAuctionData{
			"ghost-team": {SelectedPlayers: []sessionapi.SoldPlayer{{PlayerID: "p2", BidAmount: 1_000_000, RoundSold: 1}}},
			"t1": {SelectedPlayers: []sessionapi.SoldPlayer{
				{PlayerID: "p1", BidAmount: 1_000_000, RoundSold: 1},
				{PlayerID: "ghost-player", BidAmount: 5_000_000, RoundSold: 1},
			}, BudgetUsed: 6_000_000},
		},
		PlayerStates: []sessionapi.PlayerState{
			{PlayerID: "p3", IsSold: true},
			{PlayerID: "ghost-player", IsSold: true},
		},
	}
	f := newFixture(t, WithSnapshotSource(staticSource{snap: &snap}))
	s := f.session

	check.True(t, s.LoadSession(context.Background()))
	check.Equal(t, "saved", s.ID())

	st := s.Standings()[0]
	check.Equal(t, int64(1_000_000), st.Ledger.BudgetUsed)
	check.Equal(t, 1, st.Ledger.RosterCount())

	// p2 belonged to an unknown team, p3 had no ledger entry.
	check.Equal(t, []string{"p2", "p3", "p4"}, pendingIDs(s))

	// p4 has no saved state at all and comes back available.
	p4, err := s.Player("p4")
	assert.NoError(t, err)
	check.True(t, p4.Status.IsAvailable())
	p3, err := s.Player("p3")
	assert.NoError(t, err)
	check.True(t, p3.Status.IsAvailable())
}

func TestLoadSession_RebuildsUnsoldList(t *testing.T) {
	snap := sessionapi.Snapshot{
		CurrentRound: 1,
		PlayerStates: []sessionapi.PlayerState{
			{PlayerID: "p4", UnsoldRound: func() *int { r := 1; return &r }()},
			{PlayerID: "p2", UnsoldRound: func() *int { r := 1; return &r }()},
		},
		UnsoldPlayers: []string{"p2", "p1"},
	}
	f := newFixture(t, WithSnapshotSource(staticSource{snap: &snap}))
	s := f.session

	check.True(t, s.LoadSession(context.Background()))
	ids := []string{}
	for _, p := range s.Unsold() {
		ids = append(ids, p.ID)
	}
	// p1 is listed but not unsold, p4 is unsold but missing from the list.
	check.Equal(t, []string{"p2", "p4"}, ids)
}

func TestLoadSession_AfterDispose(t *testing.T) {
	saved := sessionapi.Snapshot{CurrentRound: 2}
	f := newFixture(t, WithSnapshotSource(staticSource{snap: &saved}))
	assert.NoError(t, f.session.Dispose(context.Background()))
	check.False(t, f.session.LoadSession(context.Background()))
}
