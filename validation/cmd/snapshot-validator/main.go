package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/cloudx-io/playerauction/records"
	"github.com/cloudx-io/playerauction/sessionapi"
	"github.com/cloudx-io/playerauction/validation"
)

func main() {
	// Define CLI flags
	var (
		snapshotPath  = flag.String("snapshot", "", "Path to a stored snapshot blob")
		publicKeyPath = flag.String("public-key", "", "PEM public key to verify the snapshot signature")
		teamsPath     = flag.String("teams", "", "Team records JSON for budget and roster limit checks")
		outputFormat  = flag.String("format", "text", "Output format: text or json")
		help          = flag.Bool("help", false, "Show usage information")
	)

	flag.Parse()

	if *help {
		showUsage()
		os.Exit(0)
	}

	if *snapshotPath == "" {
		showUsage()
		fmt.Fprintf(os.Stderr, "\nError: --snapshot is required\n")
		os.Exit(1)
	}

	input, err := buildInput(*snapshotPath, *publicKeyPath, *teamsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading inputs: %v\n", err)
		os.Exit(2)
	}

	result, err := validation.ValidateSnapshot(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation error: %v\n", err)
		os.Exit(2)
	}

	if *outputFormat == "json" {
		outputJSON(result)
	} else {
		outputText(result)
	}

	if !result.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

func buildInput(snapshotPath, publicKeyPath, teamsPath string) (*validation.SnapshotValidationInput, error) {
	blob, err := os.ReadFile(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	input := &validation.SnapshotValidationInput{Blob: blob}

	if publicKeyPath != "" {
		input.PublicKeyPEM, err = os.ReadFile(publicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
	}

	if teamsPath != "" {
		f, err := os.Open(teamsPath)
		if err != nil {
			return nil, fmt.Errorf("read teams: %w", err)
		}
		defer f.Close()
		input.Teams, err = records.DecodeTeams(f)
		if err != nil {
			return nil, err
		}
		if input.Teams == nil {
			input.Teams = []sessionapi.TeamRecord{}
		}
	}
	return input, nil
}

func showUsage() {
	fmt.Println("Auction Snapshot Validator")
	fmt.Println()
	fmt.Println("Checks a stored auction snapshot: signature, digest, ledger consistency and team limits.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  snapshot-validator --snapshot <path> [options]")
	fmt.Println()
	fmt.Println("Required Flags:")
	fmt.Println("  --snapshot <path>                 Snapshot blob (e.g. data/auctionState.snap)")
	fmt.Println()
	fmt.Println("Optional Flags:")
	fmt.Println("  --public-key <path>               PEM public key; the signature is checked when given")
	fmt.Println("  --teams <path>                    teams.json; budget and roster limits are checked when given")
	fmt.Println("  --format <text|json>              Output format (default: text)")
	fmt.Println("  --help                            Show this help message")
	fmt.Println()
	fmt.Println("Exit Codes:")
	fmt.Println("  0 - Validation passed")
	fmt.Println("  1 - Validation failed")
	fmt.Println("  2 - Invalid input or runtime error")
}

func outputText(result *validation.SnapshotValidationResult) {
	fmt.Println("=== Snapshot Validation Results ===")
	fmt.Println()
	fmt.Printf("Session:               %s\n", result.SessionID)
	fmt.Printf("Round:                 %d\n", result.CurrentRound)
	fmt.Printf("Players sold:          %d\n", result.SoldPlayers)
	fmt.Println()
	fmt.Printf("Signature Valid:       %s\n", formatBool(result.SignatureValid))
	fmt.Printf("Digest Valid:          %s\n", formatBool(result.DigestValid))
	fmt.Printf("Ledger Consistent:     %s\n", formatBool(result.LedgerConsistent))
	fmt.Printf("Rosters Within Limits: %s\n", formatBool(result.RostersWithinLimits))
	fmt.Println()

	if len(result.ValidationDetails) > 0 {
		fmt.Println("Details:")
		for _, detail := range result.ValidationDetails {
			fmt.Printf("  - %s\n", detail)
		}
		fmt.Println()
	}

	if result.IsValid() {
		fmt.Println("✓ SNAPSHOT VALID")
	} else {
		fmt.Println("✗ SNAPSHOT INVALID")
	}
}

func outputJSON(result *validation.SnapshotValidationResult) {
	output := map[string]any{
		"valid":                 result.IsValid(),
		"session_id":            result.SessionID,
		"current_round":         result.CurrentRound,
		"sold_players":          result.SoldPlayers,
		"signed":                result.Signed,
		"signature_valid":       result.SignatureValid,
		"digest_valid":          result.DigestValid,
		"ledger_consistent":     result.LedgerConsistent,
		"rosters_within_limits": result.RostersWithinLimits,
		"details":               result.ValidationDetails,
	}
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(2)
	}
}

func formatBool(b bool) string {
	if b {
		return "✓ PASS"
	}
	return "✗ FAIL"
}
