// Package records loads the team and player data files an auction starts
// from.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/playerauction/core"
	"github.com/cloudx-io/playerauction/sessionapi"
)

// Records is the raw content of the data files.
type Records struct {
	Teams   []sessionapi.TeamRecord
	Players []sessionapi.PlayerRecord
}

// LoadFiles reads the teams and players files concurrently. Each file holds a
// JSON array of records.
func LoadFiles(ctx context.Context, teamsPath, playersPath string) (*Records, error) {
	recs := &Records{}
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		teams, err := readArray[sessionapi.TeamRecord](gCtx, teamsPath)
		if err != nil {
			return fmt.Errorf("load teams: %w", err)
		}
		recs.Teams = teams
		return nil
	})

	g.Go(func() error {
		players, err := readArray[sessionapi.PlayerRecord](gCtx, playersPath)
		if err != nil {
			return fmt.Errorf("load players: %w", err)
		}
		recs.Players = players
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Str("teams_file", teamsPath).
		Str("players_file", playersPath).
		Int("teams", len(recs.Teams)).
		Int("players", len(recs.Players)).
		Msg("auction records loaded")
	return recs, nil
}

func readArray[T any](ctx context.Context, path string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeArray[T](f, path)
}

func decodeArray[T any](r io.Reader, name string) ([]T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("%s: expected a JSON array", name)
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return out, nil
}

// Decode reads records from already opened sources.
func Decode(teams, players io.Reader) (*Records, error) {
	t, err := decodeArray[sessionapi.TeamRecord](teams, "teams")
	if err != nil {
		return nil, err
	}
	p, err := decodeArray[sessionapi.PlayerRecord](players, "players")
	if err != nil {
		return nil, err
	}
	return &Records{Teams: t, Players: p}, nil
}

// DecodeTeams reads a team records array.
func DecodeTeams(r io.Reader) ([]sessionapi.TeamRecord, error) {
	return decodeArray[sessionapi.TeamRecord](r, "teams")
}

// Domain converts the records into the types a session is built from.
func (r *Records) Domain() ([]core.Team, []*core.Player) {
	teams := make([]core.Team, 0, len(r.Teams))
	for _, t := range r.Teams {
		teams = append(teams, t.ToTeam())
	}
	players := make([]*core.Player, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, p.ToPlayer())
	}
	return teams, players
}
