package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/playerauction/auction"
	"github.com/cloudx-io/playerauction/core"
)

type firstRandSource struct{}

func (firstRandSource) Intn(int) int { return 0 }

func newConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()
	final := int64(500_000)
	session, err := auction.New(
		[]core.Team{
			{ID: "t1", Name: "Strikers", MaxBudget: 10_000_000, MaxPlayers: 3},
			{ID: "t2", Name: "Chargers", MaxBudget: 10_000_000, MaxPlayers: 3},
		},
		[]*core.Player{
			{ID: "p1", Name: "Ava", BasePrice: 1_000_000, AvailabilityPercentage: 100},
			{ID: "p2", Name: "Ben", BasePrice: 2_000_000, FinalRoundBasePrice: &final, AvailabilityPercentage: 50, AvailabilityComments: "away in May"},
		},
		auction.WithRandSource(firstRandSource{}),
	)
	assert.NoError(t, err)
	out := &bytes.Buffer{}
	return &console{session: session, out: out}, out
}

func TestConsole_Session(t *testing.T) {
	c, out := newConsole(t)
	script := strings.Join([]string{
		"next",
		"bid p1 t1 2.5M",
		"bid p2 t1 12M",
		"round",
		"skip",
		"unsold",
		"round",
		"teams",
		"quit",
		"next",
	}, "\n")

	assert.NoError(t, c.run(context.Background(), strings.NewReader(script)))
	got := out.String()

	check.True(t, strings.Contains(got, "Round 1 of 3: 2 pending, 0 unsold"))
	check.True(t, strings.Contains(got, "Ava (p1) base $1.00M, availability 100%"))
	check.True(t, strings.Contains(got, "Sold to Strikers for $2.50M"))
	check.True(t, strings.Contains(got, "Rejected (insufficient_reserve)"))
	check.True(t, strings.Contains(got, "Round 1 still has 1 players to sell or skip."))
	check.True(t, strings.Contains(got, "p2 marked unsold."))
	check.True(t, strings.Contains(got, "p2       Ben"))
	check.True(t, strings.Contains(got, "Round 2 started with 1 players."))
	check.True(t, strings.Contains(got, "purse $7.50M"))
	check.Equal(t, 2, c.session.CurrentRound())
}

func TestConsole_Errors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{line: "dance", want: `unknown command "dance"`},
		{line: "bid p1 t1", want: "usage: bid"},
		{line: "bid p1 t1 lots", want: "parse amount"},
		{line: "bid ghost t1 1M", want: "unknown player"},
		{line: "reset", want: "usage: reset"},
		{line: "reset ghost", want: "unknown team"},
		{line: "skip a b", want: "usage: skip"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, _ := newConsole(t)
			err := c.exec(context.Background(), tt.line)
			assert.True(t, err != nil)
			check.True(t, strings.Contains(err.Error(), tt.want))
		})
	}
}

func TestConsole_ResetAndComplete(t *testing.T) {
	c, out := newConsole(t)
	ctx := context.Background()
	for _, line := range []string{"bid p1 t1 1M", "bid p2 t2 2M", "reset t1", "round", "round", "round", "status"} {
		check.NoError(t, c.exec(ctx, line))
	}
	got := out.String()
	check.True(t, strings.Contains(got, "Team t1 reset, released 1 players: p1"))
}
