package events

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cloudx-io/playerauction/sessionapi"
)

// Publisher matches auction.Publisher.
type Publisher interface {
	Publish(ctx context.Context, event sessionapi.Event) error
}

// LogPublisher writes every event to a zerolog logger.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event sessionapi.Event) error {
	e := p.logger.Info().
		Str("event_id", event.ID).
		Str("session_id", event.SessionID).
		Str("event_type", string(event.Type)).
		Int("round", event.Round)
	if event.PlayerID != "" {
		e = e.Str("player_id", event.PlayerID)
	}
	if event.TeamID != "" {
		e = e.Str("team_id", event.TeamID)
	}
	if event.Amount != 0 {
		e = e.Int64("amount", event.Amount)
	}
	if len(event.PlayerIDs) > 0 {
		e = e.Strs("player_ids", event.PlayerIDs)
	}
	e.Time("occurred_at", event.OccurredAt).Msg("auction event")
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, sessionapi.Event) error { return nil }

// Fanout publishes to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event sessionapi.Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
