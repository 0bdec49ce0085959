package sessionapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudx-io/playerauction/core"
)

// TeamRecord is a team as supplied by the data files.
type TeamRecord struct {
	TeamID      string `json:"teamId"`
	TeamName    string `json:"teamName"`
	MaxBudget   int64  `json:"maxBudget"`
	MaxPlayers  int    `json:"maxPlayers"`
	MinPlayers  *int   `json:"minPlayers,omitempty"`
	CaptainName string `json:"captainName"`
	BannerURL   string `json:"bannerUrl"`
}

// ToTeam converts the record into the domain type.
func (r TeamRecord) ToTeam() core.Team {
	return core.Team{
		ID:          r.TeamID,
		Name:        r.TeamName,
		MaxBudget:   r.MaxBudget,
		MaxPlayers:  r.MaxPlayers,
		MinPlayers:  r.MinPlayers,
		CaptainName: r.CaptainName,
		BannerURL:   r.BannerURL,
	}
}

// PlayerRecord is a player as supplied by the data files.
type PlayerRecord struct {
	PlayerID               string  `json:"playerId"`
	PlayerName             string  `json:"playerName"`
	BasePrice              int64   `json:"basePrice"`
	Round3BasePrice        *int64  `json:"round3BasePrice,omitempty"`
	AvailabilityPercentage float64 `json:"availabilityPercentage"`
	AvailabilityComments   string  `json:"availabilityComments"`
	PhotoURL               string  `json:"photoUrl"`
}

// ToPlayer converts the record into an Available domain player.
func (r PlayerRecord) ToPlayer() *core.Player {
	return &core.Player{
		ID:                     r.PlayerID,
		Name:                   r.PlayerName,
		BasePrice:              r.BasePrice,
		FinalRoundBasePrice:    r.Round3BasePrice,
		AvailabilityPercentage: r.AvailabilityPercentage,
		AvailabilityComments:   r.AvailabilityComments,
		PhotoURL:               r.PhotoURL,
		Status:                 core.Available(),
	}
}

// SoldPlayer is one ledger line in a snapshot.
type SoldPlayer struct {
	PlayerID  string `json:"playerId"`
	BidAmount int64  `json:"bidAmount"`
	RoundSold int    `json:"roundSold"`
}

// TeamAuctionData is a team's ledger in a snapshot.
type TeamAuctionData struct {
	SelectedPlayers []SoldPlayer `json:"selectedPlayers"`
	BudgetUsed      int64        `json:"budgetUsed"`
}

// PlayerState is the per-player status saved with a snapshot. UnsoldRound is
// nil unless the player was skipped.
type PlayerState struct {
	PlayerID    string `json:"playerId"`
	IsSold      bool   `json:"isSold"`
	UnsoldRound *int   `json:"unsoldRound,omitempty"`
}

// ErrNoSnapshot means no previous session was saved.
var ErrNoSnapshot = errors.New("no saved snapshot")

// Snapshot is the persisted session state, written after every mutation and
// read once at startup.
type Snapshot struct {
	SessionID     string                     `json:"sessionId"`
	CurrentRound  int                        `json:"currentRound"`
	AuctionData   map[string]TeamAuctionData `json:"auctionData"`
	UnsoldPlayers []string                   `json:"unsoldPlayers"`
	PlayerStates  []PlayerState              `json:"playerStates"`
	SavedAt       time.Time                  `json:"savedAt"`
}

// EventType names an auction event.
type EventType string

const (
	EventPlayerSold       EventType = "player_sold"
	EventPlayerSkipped    EventType = "player_skipped"
	EventRoundAdvanced    EventType = "round_advanced"
	EventTeamReset        EventType = "team_reset"
	EventAuctionCompleted EventType = "auction_completed"
)

// Event is emitted after each successful state change.
type Event struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Type       EventType `json:"type"`
	Round      int       `json:"round"`
	PlayerID   string    `json:"player_id,omitempty"`
	TeamID     string    `json:"team_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	PlayerIDs  []string  `json:"player_ids,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Amount accepts either a JSON number or an operator string such as "8.5M".
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := core.ParseAmount(s)
		if err != nil {
			return err
		}
		*a = Amount(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a number or string: %w", err)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("amount must be a whole number: %w", err)
	}
	*a = Amount(v)
	return nil
}

// CommandRequest is one operator command sent to the auction server.
type CommandRequest struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	TeamID   string `json:"team_id,omitempty"`
	Amount   Amount `json:"amount,omitempty"`
}

// CandidateView is a player as shown to the operator.
type CandidateView struct {
	PlayerID               string  `json:"player_id"`
	PlayerName             string  `json:"player_name"`
	BasePrice              int64   `json:"base_price"`
	BasePriceDisplay       string  `json:"base_price_display"`
	AvailabilityPercentage float64 `json:"availability_percentage"`
	AvailabilityComments   string  `json:"availability_comments,omitempty"`
	PhotoURL               string  `json:"photo_url,omitempty"`
	Status                 string  `json:"status"`
}

// StandingView is one team's position.
type StandingView struct {
	TeamID          string       `json:"team_id"`
	TeamName        string       `json:"team_name"`
	MaxBudget       int64        `json:"max_budget"`
	BudgetUsed      int64        `json:"budget_used"`
	RemainingPurse  string       `json:"remaining_purse"`
	RosterCount     int          `json:"roster_count"`
	MaxPlayers      int          `json:"max_players"`
	MaxAffordable   int64        `json:"max_affordable_bid"`
	SelectedPlayers []SoldPlayer `json:"selected_players"`
}

// CommandResponse is the server's reply. Reason is set for rejected bids and
// refused round transitions.
type CommandResponse struct {
	Type       string         `json:"type"`
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Reason     string         `json:"reason,omitempty"`
	Round      int            `json:"round,omitempty"`
	Unresolved int            `json:"unresolved,omitempty"`
	Complete   bool           `json:"complete,omitempty"`
	Candidate  *CandidateView `json:"candidate,omitempty"`
	Standings  []StandingView `json:"standings,omitempty"`
	PlayerIDs  []string       `json:"player_ids,omitempty"`
	Timestamp  int64          `json:"timestamp,omitempty"`
}
