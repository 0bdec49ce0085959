package main

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/playerauction/auction"
	"github.com/cloudx-io/playerauction/core"
	"github.com/cloudx-io/playerauction/sessionapi"
)

type firstRandSource struct{}

func (firstRandSource) Intn(int) int { return 0 }

func newTestServer(t *testing.T) *AuctionServer {
	t.Helper()
	teams := []core.Team{
		{ID: "t1", Name: "Strikers", MaxBudget: 10_000_000, MaxPlayers: 3},
		{ID: "t2", Name: "Chargers", MaxBudget: 10_000_000, MaxPlayers: 3},
	}
	players := []*core.Player{
		{ID: "p1", Name: "Ava", BasePrice: 1_000_000, AvailabilityPercentage: 100},
		{ID: "p2", Name: "Ben", BasePrice: 2_000_000, AvailabilityPercentage: 80},
	}
	session, err := auction.New(teams, players,
		auction.WithSessionID("session-1"),
		auction.WithRandSource(firstRandSource{}),
	)
	assert.NoError(t, err)
	return NewAuctionServer(session, 2, time.Second)
}

func roundTrip(t *testing.T, s *AuctionServer, payload string) sessionapi.CommandResponse {
	t.Helper()
	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleConnection(context.Background(), server)
	}()

	_, err := client.Write([]byte(payload + "\n"))
	assert.NoError(t, err)

	var resp sessionapi.CommandResponse
	assert.NoError(t, json.NewDecoder(client).Decode(&resp))
	_ = client.Close()
	<-done
	return resp
}

func TestHandleConnection_Ping(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"type":"ping"}`)
	check.Equal(t, "pong", resp.Type)
	check.True(t, resp.Success)
	check.NotEqual(t, int64(0), resp.Timestamp)
}

func TestHandleConnection_BadJSON(t *testing.T) {
	s := newTestServer(t)
	resp := roundTrip(t, s, `{"type":42}`)
	check.Equal(t, "error", resp.Type)
	check.False(t, resp.Success)
	check.Equal(t, reasonBadRequest, resp.Reason)
}

func TestHandleRequest_AuctionFlow(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp := s.handleRequest(ctx, sessionapi.CommandRequest{Type: "next_candidate"})
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Candidate)
	check.Equal(t, "p1", resp.Candidate.PlayerID)
	check.Equal(t, "1.00M", resp.Candidate.BasePriceDisplay)
	check.Equal(t, "available", resp.Candidate.Status)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "place_bid", PlayerID: "p1", TeamID: "t1", Amount: 500_000})
	check.False(t, resp.Success)
	check.Equal(t, string(core.ReasonBelowBasePrice), resp.Reason)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "place_bid", PlayerID: "p1", TeamID: "t1", Amount: 3_000_000})
	check.True(t, resp.Success)
	check.Equal(t, "Sold to Strikers for $3.00M", resp.Message)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "advance_round"})
	check.False(t, resp.Success)
	check.Equal(t, reasonRoundIncomplete, resp.Reason)
	check.Equal(t, 1, resp.Unresolved)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "skip_candidate", PlayerID: "p2"})
	check.True(t, resp.Success)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "status"})
	check.True(t, resp.Success)
	check.Equal(t, 1, resp.Round)
	check.Equal(t, []string{"p2"}, resp.PlayerIDs)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "advance_round"})
	check.True(t, resp.Success)
	check.Equal(t, 2, resp.Round)
	check.Equal(t, 1, resp.Unresolved)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "standings"})
	assert.True(t, resp.Success)
	assert.Equal(t, 2, len(resp.Standings))
	check.Equal(t, "t1", resp.Standings[0].TeamID)
	check.Equal(t, int64(3_000_000), resp.Standings[0].BudgetUsed)
	check.Equal(t, "7.00M", resp.Standings[0].RemainingPurse)
	check.Equal(t, 1, resp.Standings[0].RosterCount)
	check.Equal(t, []sessionapi.SoldPlayer{{PlayerID: "p1", BidAmount: 3_000_000, RoundSold: 1}}, resp.Standings[0].SelectedPlayers)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "reset_team", TeamID: "t1"})
	check.True(t, resp.Success)
	check.Equal(t, []string{"p1"}, resp.PlayerIDs)
}

func TestHandleRequest_Failures(t *testing.T) {
	tests := []struct {
		name   string
		req    sessionapi.CommandRequest
		typ    string
		reason string
	}{
		{
			name:   "unknown type",
			req:    sessionapi.CommandRequest{Type: "shout"},
			typ:    "error",
			reason: reasonBadRequest,
		},
		{
			name:   "bid without team",
			req:    sessionapi.CommandRequest{Type: "place_bid", PlayerID: "p1"},
			typ:    "error",
			reason: reasonBadRequest,
		},
		{
			name:   "unknown player",
			req:    sessionapi.CommandRequest{Type: "place_bid", PlayerID: "ghost", TeamID: "t1", Amount: 1_000_000},
			typ:    "place_bid_response",
			reason: reasonUnknownPlayer,
		},
		{
			name:   "unknown team",
			req:    sessionapi.CommandRequest{Type: "reset_team", TeamID: "ghost"},
			typ:    "reset_team_response",
			reason: reasonUnknownTeam,
		},
		{
			name:   "skip unknown player",
			req:    sessionapi.CommandRequest{Type: "skip_candidate", PlayerID: "ghost"},
			typ:    "skip_candidate_response",
			reason: reasonUnknownPlayer,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			resp := s.handleRequest(context.Background(), tt.req)
			check.False(t, resp.Success)
			check.Equal(t, tt.typ, resp.Type)
			check.Equal(t, tt.reason, resp.Reason)
		})
	}
}

func TestHandleRequest_SkipTwice(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	resp := s.handleRequest(ctx, sessionapi.CommandRequest{Type: "skip_candidate", PlayerID: "p1"})
	assert.True(t, resp.Success)

	resp = s.handleRequest(ctx, sessionapi.CommandRequest{Type: "skip_candidate", PlayerID: "p1"})
	check.False(t, resp.Success)
	check.Equal(t, reasonNotPending, resp.Reason)
}

func TestHandleRequest_SessionClosed(t *testing.T) {
	s := newTestServer(t)
	assert.NoError(t, s.session.Dispose(context.Background()))

	resp := s.handleRequest(context.Background(), sessionapi.CommandRequest{Type: "next_candidate"})
	check.False(t, resp.Success)
	check.Equal(t, reasonSessionClosed, resp.Reason)
}

func TestServe_StopsOnCancel(t *testing.T) {
	s := newTestServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, listener) }()

	conn, err := net.Dial("tcp", listener.Addr().String())
	assert.NoError(t, err)
	_, err = conn.Write([]byte(`{"type":"ping"}` + "\n"))
	assert.NoError(t, err)
	var resp sessionapi.CommandResponse
	assert.NoError(t, json.NewDecoder(conn).Decode(&resp))
	check.Equal(t, "pong", resp.Type)
	_ = conn.Close()

	cancel()
	select {
	case err := <-errCh:
		check.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHandleConnection_RateLimited(t *testing.T) {
	s := newTestServer(t)
	s.SetRateLimit(0.001, 1)

	resp := roundTrip(t, s, `{"type":"ping"}`)
	check.Equal(t, "pong", resp.Type)

	resp = roundTrip(t, s, `{"type":"ping"}`)
	check.Equal(t, "error", resp.Type)
	check.Equal(t, reasonRateLimited, resp.Reason)

	s.SetRateLimit(0, 0)
	resp = roundTrip(t, s, `{"type":"ping"}`)
	check.Equal(t, "pong", resp.Type)
}
