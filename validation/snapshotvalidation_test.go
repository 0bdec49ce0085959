package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/playerauction/persist"
	"github.com/cloudx-io/playerauction/sessionapi"
)

func validSnapshot() sessionapi.Snapshot {
	unsoldRound := 2
	return sessionapi.Snapshot{
		SessionID:    "session-1",
		CurrentRound: 2,
		AuctionData: map[string]sessionapi.TeamAuctionData{
			"t1": {SelectedPlayers: []sessionapi.SoldPlayer{
				{PlayerID: "p1", BidAmount: 3_000_000, RoundSold: 1},
				{PlayerID: "p2", BidAmount: 2_000_000, RoundSold: 2},
			}, BudgetUsed: 5_000_000},
			"t2": {SelectedPlayers: []sessionapi.SoldPlayer{}, BudgetUsed: 0},
		},
		UnsoldPlayers: []string{"p3"},
		PlayerStates: []sessionapi.PlayerState{
			{PlayerID: "p1", IsSold: true},
			{PlayerID: "p2", IsSold: true},
			{PlayerID: "p3", UnsoldRound: &unsoldRound},
		},
		SavedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testTeams() []sessionapi.TeamRecord {
	return []sessionapi.TeamRecord{
		{TeamID: "t1", TeamName: "Strikers", MaxBudget: 10_000_000, MaxPlayers: 3},
		{TeamID: "t2", TeamName: "Chargers", MaxBudget: 10_000_000, MaxPlayers: 3},
	}
}

func encode(t *testing.T, codec *persist.Codec, snap sessionapi.Snapshot) []byte {
	t.Helper()
	blob, err := codec.Encode(snap)
	assert.NoError(t, err)
	return blob
}

func hasDetail(result *SnapshotValidationResult, fragment string) bool {
	for _, d := range result.ValidationDetails {
		if strings.Contains(d, fragment) {
			return true
		}
	}
	return false
}

func TestValidateSnapshot_Valid(t *testing.T) {
	result, err := ValidateSnapshot(&SnapshotValidationInput{
		Blob:  encode(t, persist.NewCodec(), validSnapshot()),
		Teams: testTeams(),
	})
	assert.NoError(t, err)
	check.True(t, result.IsValid())
	check.False(t, result.Signed)
	check.Equal(t, "session-1", result.SessionID)
	check.Equal(t, 2, result.CurrentRound)
	check.Equal(t, 2, result.SoldPlayers)
}

func TestValidateSnapshot_Signed(t *testing.T) {
	km, err := persist.NewKeyManager()
	assert.NoError(t, err)
	signer, err := km.Signer()
	assert.NoError(t, err)
	pubPEM, err := km.PublicKeyPEM()
	assert.NoError(t, err)
	blob := encode(t, persist.NewCodec(persist.WithSigner(signer)), validSnapshot())

	result, err := ValidateSnapshot(&SnapshotValidationInput{Blob: blob, PublicKeyPEM: []byte(pubPEM)})
	assert.NoError(t, err)
	check.True(t, result.Signed)
	check.True(t, result.SignatureValid)
	check.True(t, result.IsValid())

	other, err := persist.NewKeyManager()
	assert.NoError(t, err)
	otherPEM, err := other.PublicKeyPEM()
	assert.NoError(t, err)
	result, err = ValidateSnapshot(&SnapshotValidationInput{Blob: blob, PublicKeyPEM: []byte(otherPEM)})
	assert.NoError(t, err)
	check.False(t, result.SignatureValid)
	check.False(t, result.IsValid())

	// An unsigned blob fails when a key is required.
	unsigned := encode(t, persist.NewCodec(), validSnapshot())
	result, err = ValidateSnapshot(&SnapshotValidationInput{Blob: unsigned, PublicKeyPEM: []byte(pubPEM)})
	assert.NoError(t, err)
	check.False(t, result.SignatureValid)
}

func TestValidateSnapshot_DigestMismatch(t *testing.T) {
	blob := encode(t, persist.NewCodec(), validSnapshot())
	parsed, err := persist.ParseBlob(blob)
	assert.NoError(t, err)

	env := parsed.Envelope
	env.Digest = make([]byte, len(env.Digest))
	tampered, err := cbor.Marshal(env)
	assert.NoError(t, err)

	result, err := ValidateSnapshot(&SnapshotValidationInput{Blob: tampered})
	assert.NoError(t, err)
	check.False(t, result.DigestValid)
	check.True(t, result.LedgerConsistent)
	check.False(t, result.IsValid())
}

func TestValidateSnapshot_LedgerChecks(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*sessionapi.Snapshot)
		fragment string
	}{
		{
			name: "budget does not match sales",
			mutate: func(s *sessionapi.Snapshot) {
				d := s.AuctionData["t1"]
				d.BudgetUsed = 4_000_000
				s.AuctionData["t1"] = d
			},
			fragment: "does not match sale total",
		},
		{
			name: "player sold twice",
			mutate: func(s *sessionapi.Snapshot) {
				s.AuctionData["t2"] = sessionapi.TeamAuctionData{
					SelectedPlayers: []sessionapi.SoldPlayer{{PlayerID: "p1", BidAmount: 1_000_000, RoundSold: 1}},
					BudgetUsed:      1_000_000,
				}
			},
			fragment: "sold to both",
		},
		{
			name: "sold in a future round",
			mutate: func(s *sessionapi.Snapshot) {
				d := s.AuctionData["t1"]
				d.SelectedPlayers[1].RoundSold = 3
				s.AuctionData["t1"] = d
			},
			fragment: "in round 3",
		},
		{
			name:     "state disagrees with ledger",
			mutate:   func(s *sessionapi.Snapshot) { s.PlayerStates[2].IsSold = true },
			fragment: "state says sold=true",
		},
		{
			name: "sale total overflows",
			mutate: func(s *sessionapi.Snapshot) {
				d := s.AuctionData["t1"]
				d.SelectedPlayers[0].BidAmount = 1 << 62
				d.SelectedPlayers[1].BidAmount = 1 << 62
				d.BudgetUsed = -1 << 63
				s.AuctionData["t1"] = d
			},
			fragment: "Team t1 sale total overflows",
		},
		{
			name:     "sold player on unsold list",
			mutate:   func(s *sessionapi.Snapshot) { s.UnsoldPlayers = append(s.UnsoldPlayers, "p1") },
			fragment: "on the unsold list",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := validSnapshot()
			tt.mutate(&snap)
			result, err := ValidateSnapshot(&SnapshotValidationInput{Blob: encode(t, persist.NewCodec(), snap)})
			assert.NoError(t, err)
			check.False(t, result.LedgerConsistent)
			check.True(t, result.DigestValid)
			check.True(t, hasDetail(result, tt.fragment))
		})
	}
}

func TestValidateSnapshot_Limits(t *testing.T) {
	teams := testTeams()
	teams[0].MaxBudget = 4_000_000
	teams[0].MaxPlayers = 1

	result, err := ValidateSnapshot(&SnapshotValidationInput{
		Blob:  encode(t, persist.NewCodec(), validSnapshot()),
		Teams: teams,
	})
	assert.NoError(t, err)
	check.True(t, result.LedgerConsistent)
	check.False(t, result.RostersWithinLimits)
	check.True(t, hasDetail(result, "spent 5000000, budget is 4000000"))
	check.True(t, hasDetail(result, "holds 2 players, limit is 1"))

	result, err = ValidateSnapshot(&SnapshotValidationInput{
		Blob:  encode(t, persist.NewCodec(), validSnapshot()),
		Teams: teams[1:],
	})
	assert.NoError(t, err)
	check.False(t, result.RostersWithinLimits)
	check.True(t, hasDetail(result, "unknown team t1"))
}

func TestValidateSnapshot_Errors(t *testing.T) {
	_, err := ValidateSnapshot(&SnapshotValidationInput{Blob: []byte("garbage")})
	check.Error(t, err)

	_, err = ValidateSnapshot(&SnapshotValidationInput{
		Blob:         encode(t, persist.NewCodec(), validSnapshot()),
		PublicKeyPEM: []byte("not a key"),
	})
	check.Error(t, err)
}

func TestValidateSnapshot_LimitsOverflow(t *testing.T) {
	snap := validSnapshot()
	d := snap.AuctionData["t1"]
	d.SelectedPlayers[0].BidAmount = 1 << 62
	d.SelectedPlayers[1].BidAmount = 1 << 62
	snap.AuctionData["t1"] = d

	result, err := ValidateSnapshot(&SnapshotValidationInput{
		Blob:  encode(t, persist.NewCodec(), snap),
		Teams: testTeams(),
	})
	assert.NoError(t, err)
	check.False(t, result.RostersWithinLimits)
	check.True(t, hasDetail(result, "Team t1 sale total overflows, budget is"))
}
