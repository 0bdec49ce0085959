package core

import (
	"errors"
	"fmt"
)

// Team is a bidding team. BudgetUsed and roster size are never stored here;
// they are derived from the team's ledger.
type Team struct {
	ID          string
	Name        string
	MaxBudget   int64
	MaxPlayers  int
	MinPlayers  *int
	CaptainName string
	BannerURL   string
}

// Player is an auction lot.
type Player struct {
	ID                     string
	Name                   string
	BasePrice              int64
	FinalRoundBasePrice    *int64 // round3BasePrice in the player records
	AvailabilityPercentage float64
	AvailabilityComments   string
	PhotoURL               string
	Status                 PlayerStatus
}

// StatusKind discriminates PlayerStatus.
type StatusKind int

const (
	StatusAvailable StatusKind = iota
	StatusSold
	StatusUnsold
)

func (k StatusKind) String() string {
	switch k {
	case StatusAvailable:
		return "available"
	case StatusSold:
		return "sold"
	case StatusUnsold:
		return "unsold"
	default:
		return fmt.Sprintf("StatusKind(%d)", int(k))
	}
}

// PlayerStatus is a tagged variant: Available, Sold(team, amount, round) or
// UnsoldInRound(round). Fields not belonging to Kind are zero.
type PlayerStatus struct {
	Kind      StatusKind
	TeamID    string
	BidAmount int64
	Round     int
}

// Available returns the initial status.
func Available() PlayerStatus {
	return PlayerStatus{Kind: StatusAvailable}
}

// Sold returns the terminal status of a purchased player.
func Sold(teamID string, bidAmount int64, round int) PlayerStatus {
	return PlayerStatus{Kind: StatusSold, TeamID: teamID, BidAmount: bidAmount, Round: round}
}

// UnsoldInRound returns the status of a player skipped in round.
func UnsoldInRound(round int) PlayerStatus {
	return PlayerStatus{Kind: StatusUnsold, Round: round}
}

func (s PlayerStatus) IsAvailable() bool { return s.Kind == StatusAvailable }
func (s PlayerStatus) IsSold() bool      { return s.Kind == StatusSold }

// IsUnsoldIn reports whether the player was skipped in exactly round.
func (s PlayerStatus) IsUnsoldIn(round int) bool {
	return s.Kind == StatusUnsold && s.Round == round
}

func (s PlayerStatus) String() string {
	switch s.Kind {
	case StatusSold:
		return fmt.Sprintf("sold(%s, %s, round %d)", s.TeamID, FormatMillion(s.BidAmount), s.Round)
	case StatusUnsold:
		return fmt.Sprintf("unsold(round %d)", s.Round)
	default:
		return s.Kind.String()
	}
}

// SaleEntry is one purchase in a team ledger.
type SaleEntry struct {
	PlayerID  string
	BidAmount int64
	Round     int
}

// TeamLedger is a team's purchases. BudgetUsed always equals the sum of
// SelectedPlayers[i].BidAmount.
type TeamLedger struct {
	SelectedPlayers []SaleEntry
	BudgetUsed      int64
}

// RosterCount is the number of players the team has bought.
func (l TeamLedger) RosterCount() int {
	return len(l.SelectedPlayers)
}

// ErrInvalidRecord wraps every team or player record validation failure.
var ErrInvalidRecord = errors.New("invalid record")

// ValidateTeam checks the static invariants of a team record.
func ValidateTeam(t Team) error {
	if t.ID == "" {
		return fmt.Errorf("%w: team id is empty", ErrInvalidRecord)
	}
	if t.MaxBudget <= 0 {
		return fmt.Errorf("%w: team %s max budget must be positive, got %d", ErrInvalidRecord, t.ID, t.MaxBudget)
	}
	if t.MaxPlayers < 0 {
		return fmt.Errorf("%w: team %s max players must not be negative, got %d", ErrInvalidRecord, t.ID, t.MaxPlayers)
	}
	if t.MinPlayers != nil && (*t.MinPlayers < 0 || *t.MinPlayers > t.MaxPlayers) {
		return fmt.Errorf("%w: team %s min players %d outside [0, %d]", ErrInvalidRecord, t.ID, *t.MinPlayers, t.MaxPlayers)
	}
	return nil
}

// ValidatePlayer checks the static invariants of a player record.
func ValidatePlayer(p Player) error {
	if p.ID == "" {
		return fmt.Errorf("%w: player id is empty", ErrInvalidRecord)
	}
	if p.BasePrice <= 0 {
		return fmt.Errorf("%w: player %s base price must be positive, got %d", ErrInvalidRecord, p.ID, p.BasePrice)
	}
	if p.FinalRoundBasePrice != nil && *p.FinalRoundBasePrice <= 0 {
		return fmt.Errorf("%w: player %s final round base price must be positive, got %d", ErrInvalidRecord, p.ID, *p.FinalRoundBasePrice)
	}
	return nil
}
