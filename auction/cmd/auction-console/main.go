package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/cloudx-io/playerauction/bootstrap"
	"github.com/cloudx-io/playerauction/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to a YAML config file")
		envFile    = flag.String("env", ".env", "Path to a .env file")
		help       = flag.Bool("help", false, "Show usage information")
	)
	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if err := run(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string) error {
	config.LoadDotEnv(envFile)
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := config.SetupLogging(cfg.Log, os.Stderr); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rt, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Closing stdin unblocks the prompt on Ctrl-C so the session is still
	// disposed.
	go func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	}()

	c := &console{session: rt.Session, out: os.Stdout}
	runErr := c.run(ctx, os.Stdin)

	disposeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rt.Session.Dispose(disposeCtx); err != nil {
		return fmt.Errorf("save auction: %w", err)
	}
	return runErr
}

func showUsage() {
	fmt.Println("Auction Console")
	fmt.Println()
	fmt.Println("Runs a player auction interactively. State is saved after every command")
	fmt.Println("and resumed on the next start.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  auction-console [--config auction.yaml] [--env .env]")
	fmt.Println()
	fmt.Println("Type help at the prompt for the list of commands.")
}
