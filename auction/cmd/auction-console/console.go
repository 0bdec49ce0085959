package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudx-io/playerauction/auction"
	"github.com/cloudx-io/playerauction/core"
)

var errQuit = errors.New("quit")

type console struct {
	session *auction.Session
	out     io.Writer
}

// run reads commands line by line until EOF or quit.
func (c *console) run(ctx context.Context, in io.Reader) error {
	c.status()
	scanner := bufio.NewScanner(in)
	fmt.Fprint(c.out, "> ")
	for scanner.Scan() {
		err := c.exec(ctx, scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(c.out, "> ")
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

func (c *console) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "help", "?":
		c.help()
	case "status":
		c.status()
	case "next":
		return c.next()
	case "bid", "sell":
		if len(args) != 3 {
			return errors.New("usage: bid <player> <team> <amount>")
		}
		return c.bid(ctx, args[0], args[1], args[2])
	case "skip":
		return c.skip(ctx, args)
	case "round", "advance":
		return c.advance(ctx)
	case "reset":
		if len(args) != 1 {
			return errors.New("usage: reset <team>")
		}
		return c.reset(ctx, args[0])
	case "teams", "standings":
		c.standings()
	case "unsold":
		c.unsold()
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}

func (c *console) help() {
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  next                          show the player up for bidding")
	fmt.Fprintln(c.out, "  bid <player> <team> <amount>  sell a player, amount like 8.5M or 8500000")
	fmt.Fprintln(c.out, "  skip [player]                 mark the player (default: current) unsold")
	fmt.Fprintln(c.out, "  round                         start the next round")
	fmt.Fprintln(c.out, "  reset <team>                  release every player the team bought")
	fmt.Fprintln(c.out, "  teams                         show purses and rosters")
	fmt.Fprintln(c.out, "  unsold                        list players unsold this round")
	fmt.Fprintln(c.out, "  status                        show the round and pool sizes")
	fmt.Fprintln(c.out, "  quit                          save and exit")
}

func (c *console) status() {
	if c.session.IsComplete() {
		fmt.Fprintln(c.out, "Auction complete.")
		return
	}
	fmt.Fprintf(c.out, "Round %d of %d: %d pending, %d unsold\n",
		c.session.CurrentRound(), c.session.MaxRound(), len(c.session.Pending()), len(c.session.Unsold()))
}

func (c *console) next() error {
	p, ok, err := c.session.NextCandidate()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(c.out, "No players left in round %d. Use round to continue.\n", c.session.CurrentRound())
		return nil
	}
	price, err := c.session.BasePrice(p.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (%s) base $%s, availability %.0f%%\n", p.Name, p.ID, core.FormatMillion(price), p.AvailabilityPercentage)
	if p.AvailabilityComments != "" {
		fmt.Fprintf(c.out, "  %s\n", p.AvailabilityComments)
	}
	return nil
}

func (c *console) bid(ctx context.Context, playerID, teamID, rawAmount string) error {
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return err
	}
	res, err := c.session.PlaceBid(ctx, playerID, teamID, amount)
	if err != nil {
		return err
	}
	if !res.Accepted {
		fmt.Fprintf(c.out, "Rejected (%s): %s\n", res.Reason, res.Message)
		return nil
	}
	fmt.Fprintln(c.out, res.Message)
	return nil
}

func (c *console) skip(ctx context.Context, args []string) error {
	var playerID string
	switch len(args) {
	case 0:
		p, ok, err := c.session.NextCandidate()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("no player is up for bidding")
		}
		playerID = p.ID
	case 1:
		playerID = args[0]
	default:
		return errors.New("usage: skip [player]")
	}
	if err := c.session.SkipCandidate(ctx, playerID); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s marked unsold.\n", playerID)
	return nil
}

func (c *console) advance(ctx context.Context) error {
	round, err := c.session.AdvanceRound(ctx)
	var incomplete *auction.RoundIncompleteError
	switch {
	case errors.As(err, &incomplete):
		fmt.Fprintf(c.out, "Round %d still has %d players to sell or skip.\n", incomplete.Round, incomplete.Unresolved)
		return nil
	case errors.Is(err, auction.ErrAuctionComplete):
		fmt.Fprintln(c.out, "Auction complete.")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(c.out, "Round %d started with %d players.\n", round, len(c.session.Pending()))
	return nil
}

func (c *console) reset(ctx context.Context, teamID string) error {
	released, err := c.session.ResetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Team %s reset, released %d players: %s\n", teamID, len(released), strings.Join(released, ", "))
	return nil
}

func (c *console) standings() {
	for _, st := range c.session.Standings() {
		fmt.Fprintf(c.out, "%-20s purse $%s  players %d/%d  max bid $%s\n",
			st.Team.Name, core.FormatMillion(st.Remaining), st.Ledger.RosterCount(), st.Team.MaxPlayers, core.FormatMillion(st.MaxAffordable))
		for _, e := range st.Ledger.SelectedPlayers {
			name := e.PlayerID
			if p, err := c.session.Player(e.PlayerID); err == nil {
				name = p.Name
			}
			fmt.Fprintf(c.out, "    %-20s $%s (round %d)\n", name, core.FormatMillion(e.BidAmount), e.Round)
		}
	}
}

func (c *console) unsold() {
	unsold := c.session.Unsold()
	if len(unsold) == 0 {
		fmt.Fprintln(c.out, "No unsold players this round.")
		return
	}
	for _, p := range unsold {
		price, _ := c.session.BasePrice(p.ID)
		fmt.Fprintf(c.out, "%-8s %-20s base $%s\n", p.ID, p.Name, core.FormatMillion(price))
	}
}
