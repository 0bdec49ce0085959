// Package auction runs the round-based player auction: it owns the teams,
// players and ledger of one session and exposes the operator commands.
package auction

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/playerauction/core"
	"github.com/cloudx-io/playerauction/sessionapi"
)

// Session is one auction run. All commands are serialized by a single mutex,
// so a bid is validated, applied, saved and published before the next command
// is looked at.
type Session struct {
	mu sync.Mutex

	id        string
	teams     []core.Team
	teamIndex map[string]int
	players   []*core.Player
	playerMap map[string]*core.Player

	ledger    *core.Ledger
	policy    core.RoundPolicy
	validator core.BidValidator

	currentRound int
	unsold       []string // players skipped in currentRound, in skip order
	candidate    string

	rand      core.RandSource
	clock     clockwork.Clock
	saver     Saver
	source    SnapshotSource
	publisher Publisher
	closed    bool
}

// Option configures a Session.
type Option func(*Session)

// WithMaxRound sets the number of rounds.
func WithMaxRound(maxRound int) Option {
	return func(s *Session) {
		s.policy.MaxRound = maxRound
		s.validator.Policy.MaxRound = maxRound
	}
}

// WithMinPerPlayer sets the reserve kept per open roster spot.
func WithMinPerPlayer(amount int64) Option {
	return func(s *Session) { s.validator.MinPerPlayer = amount }
}

// WithSaver installs the write-through persistence hook.
func WithSaver(saver Saver) Option {
	return func(s *Session) { s.saver = saver }
}

// WithSnapshotSource sets where LoadSession reads from.
func WithSnapshotSource(source SnapshotSource) Option {
	return func(s *Session) { s.source = source }
}

// WithPublisher installs the event publisher.
func WithPublisher(publisher Publisher) Option {
	return func(s *Session) { s.publisher = publisher }
}

// WithRandSource replaces the candidate picker's random source.
func WithRandSource(randSource core.RandSource) Option {
	return func(s *Session) { s.rand = randSource }
}

// WithClock replaces the clock used for snapshot and event timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) { s.clock = clock }
}

// WithSessionID fixes the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New creates a session in its initial state: round 1, every player
// Available, every ledger empty.
func New(teams []core.Team, players []*core.Player, opts ...Option) (*Session, error) {
	s := &Session{
		id:           uuid.NewString(),
		teams:        make([]core.Team, 0, len(teams)),
		teamIndex:    make(map[string]int, len(teams)),
		players:      make([]*core.Player, 0, len(players)),
		playerMap:    make(map[string]*core.Player, len(players)),
		policy:       core.DefaultRoundPolicy(),
		validator:    core.DefaultBidValidator(),
		currentRound: 1,
		rand:         core.DefaultRandSource,
		clock:        clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy.MaxRound < 1 {
		return nil, fmt.Errorf("max round must be at least 1, got %d", s.policy.MaxRound)
	}
	if s.validator.MinPerPlayer < 0 {
		return nil, fmt.Errorf("min per player must not be negative, got %d", s.validator.MinPerPlayer)
	}

	for _, t := range teams {
		if err := core.ValidateTeam(t); err != nil {
			return nil, err
		}
		if _, dup := s.teamIndex[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate team id %s", core.ErrInvalidRecord, t.ID)
		}
		s.teamIndex[t.ID] = len(s.teams)
		s.teams = append(s.teams, t)
	}
	for _, p := range players {
		if p == nil {
			return nil, fmt.Errorf("%w: nil player", core.ErrInvalidRecord)
		}
		if err := core.ValidatePlayer(*p); err != nil {
			return nil, err
		}
		if _, dup := s.playerMap[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate player id %s", core.ErrInvalidRecord, p.ID)
		}
		p.Status = core.Available()
		s.playerMap[p.ID] = p
		s.players = append(s.players, p)
	}
	s.ledger = core.NewLedger(s.teams, s.players)

	log.Info().
		Str("session_id", s.id).
		Int("teams", len(s.teams)).
		Int("players", len(s.players)).
		Int("max_round", s.policy.MaxRound).
		Msg("auction session created")
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// CurrentRound returns the round in progress.
func (s *Session) CurrentRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRound
}

// MaxRound returns the configured number of rounds.
func (s *Session) MaxRound() int {
	return s.policy.MaxRound
}

// Pending returns the players of the current round's pool that are neither
// sold nor skipped.
func (s *Session) Pending() []core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPlayers(s.pendingLocked())
}

// Unsold returns the players skipped in the current round, in skip order.
// They can still be sold until the round advances.
func (s *Session) Unsold() []core.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Player, 0, len(s.unsold))
	for _, id := range s.unsold {
		out = append(out, *s.playerMap[id])
	}
	return out
}

// Player returns a copy of one player.
func (s *Session) Player(playerID string) (core.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playerMap[playerID]
	if !ok {
		return core.Player{}, fmt.Errorf("%w: %s", core.ErrUnknownPlayer, playerID)
	}
	return *p, nil
}

// BasePrice returns the minimum bid for a player in the current round.
func (s *Session) BasePrice(playerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.playerMap[playerID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownPlayer, playerID)
	}
	return s.policy.BasePrice(s.currentRound, p), nil
}

// IsComplete reports whether the final round's pool is fully resolved.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isCompleteLocked()
}

// Standing is a team's view of the auction.
type Standing struct {
	Team          core.Team
	Ledger        core.TeamLedger
	Remaining     int64
	MaxAffordable int64
}

// Standings returns every team's position in team order.
func (s *Session) Standings() []Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Standing, 0, len(s.teams))
	for _, t := range s.teams {
		tl, _ := s.ledger.TeamLedger(t.ID)
		out = append(out, Standing{
			Team:          t,
			Ledger:        tl,
			Remaining:     t.MaxBudget - tl.BudgetUsed,
			MaxAffordable: s.validator.MaxAffordableBid(t, tl),
		})
	}
	return out
}

// Dispose writes a final snapshot, drains a background saver and closes the
// session. Later commands return ErrSessionClosed.
func (s *Session) Dispose(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.saveLocked(ctx)
	s.closed = true

	if f, ok := s.saver.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			return fmt.Errorf("flush snapshots: %w", err)
		}
	}
	log.Info().Str("session_id", s.id).Msg("auction session disposed")
	return nil
}

func (s *Session) pendingLocked() []*core.Player {
	return s.policy.EligiblePlayers(s.currentRound, s.players)
}

func (s *Session) isCompleteLocked() bool {
	return s.currentRound >= s.policy.MaxRound && len(s.pendingLocked()) == 0
}

func (s *Session) team(teamID string) (core.Team, error) {
	idx, ok := s.teamIndex[teamID]
	if !ok {
		return core.Team{}, fmt.Errorf("%w: %s", core.ErrUnknownTeam, teamID)
	}
	return s.teams[idx], nil
}

func (s *Session) player(playerID string) (*core.Player, error) {
	p, ok := s.playerMap[playerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownPlayer, playerID)
	}
	return p, nil
}

func copyPlayers(players []*core.Player) []core.Player {
	out := make([]core.Player, 0, len(players))
	for _, p := range players {
		out = append(out, *p)
	}
	return out
}

func (s *Session) saveLocked(ctx context.Context) {
	if s.saver == nil {
		return
	}
	if err := s.saver.Save(ctx, s.snapshotLocked()); err != nil {
		log.Warn().Err(err).Str("session_id", s.id).Int("round", s.currentRound).Msg("failed to save auction snapshot")
	}
}

func (s *Session) publishLocked(ctx context.Context, event sessionapi.Event) {
	if s.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.SessionID = s.id
	event.OccurredAt = s.clock.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to publish auction event")
	}
}
