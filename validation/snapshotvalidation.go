package validation

import (
	"fmt"
	"math"
	"sort"

	"github.com/cloudx-io/playerauction/persist"
	"github.com/cloudx-io/playerauction/sessionapi"
)

// SnapshotValidationInput contains all inputs needed for snapshot validation
type SnapshotValidationInput struct {
	Blob         []byte                  // Stored snapshot blob as written by persist.Codec
	PublicKeyPEM []byte                  // nil = signature not checked
	Teams        []sessionapi.TeamRecord // nil = budget and roster limits not checked
}

// ValidateSnapshot verifies a persisted auction snapshot:
// - COSE_Sign1 signature (when a public key is given)
// - SHA-256 digest of the snapshot payload
// - Ledger consistency (budgets, single owner per player, rounds)
// - Budget and roster limits (when team records are given)
//
// Returns:
//   - SnapshotValidationResult with detailed results (call result.IsValid() to check overall status)
//   - error if validation cannot be performed (e.g., malformed blob or key)
func ValidateSnapshot(input *SnapshotValidationInput) (*SnapshotValidationResult, error) {
	blob, err := persist.ParseBlob(input.Blob)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot blob: %w", err)
	}

	result := &SnapshotValidationResult{Signed: blob.Signed}

	result.SignatureValid, err = validateSignature(input, blob, result)
	if err != nil {
		return nil, err
	}

	if err := blob.Envelope.VerifyDigest(); err != nil {
		result.detail("Digest mismatch: %v", err)
		result.DigestValid = false
	} else {
		result.detail("Digest validation passed: %x", blob.Envelope.Digest)
		result.DigestValid = true
	}

	snap, err := blob.Envelope.Decode()
	if err != nil {
		result.detail("Snapshot payload could not be decoded: %v", err)
		return result, nil
	}
	result.SessionID = snap.SessionID
	result.CurrentRound = snap.CurrentRound

	result.LedgerConsistent = validateLedger(&snap, result)
	result.RostersWithinLimits = validateLimits(input.Teams, &snap, result)
	return result, nil
}

func validateSignature(input *SnapshotValidationInput, blob persist.Blob, result *SnapshotValidationResult) (bool, error) {
	if input.PublicKeyPEM == nil {
		if blob.Signed {
			result.detail("Snapshot is signed but no public key was given; signature not checked")
		} else {
			result.detail("Snapshot is unsigned; signature not checked")
		}
		return true, nil
	}

	publicKey, err := persist.ParsePublicKeyPEM(input.PublicKeyPEM)
	if err != nil {
		return false, fmt.Errorf("parse public key: %w", err)
	}
	verifier, err := persist.NewVerifier(publicKey)
	if err != nil {
		return false, err
	}
	if err := blob.VerifySignature(verifier); err != nil {
		result.detail("Signature validation failed: %v", err)
		return false, nil
	}
	result.detail("Signature validation passed (ES256)")
	return true, nil
}

func validateLedger(snap *sessionapi.Snapshot, result *SnapshotValidationResult) bool {
	ok := true
	if snap.CurrentRound < 1 {
		result.detail("Current round %d is not a valid round", snap.CurrentRound)
		ok = false
	}

	owners := make(map[string]string)
	for _, teamID := range sortedTeamIDs(snap) {
		data := snap.AuctionData[teamID]
		for _, sp := range data.SelectedPlayers {
			if owner, dup := owners[sp.PlayerID]; dup {
				result.detail("Player %s sold to both %s and %s", sp.PlayerID, owner, teamID)
				ok = false
			}
			owners[sp.PlayerID] = teamID
			if sp.BidAmount <= 0 {
				result.detail("Player %s sold to %s for non-positive amount %d", sp.PlayerID, teamID, sp.BidAmount)
				ok = false
			}
			if sp.RoundSold < 1 || sp.RoundSold > snap.CurrentRound {
				result.detail("Player %s sold to %s in round %d, current round is %d", sp.PlayerID, teamID, sp.RoundSold, snap.CurrentRound)
				ok = false
			}
		}
		total, overflow := saleTotal(data.SelectedPlayers)
		switch {
		case overflow:
			result.detail("Team %s sale total overflows", teamID)
			ok = false
		case total != data.BudgetUsed:
			result.detail("Team %s budget used %d does not match sale total %d", teamID, data.BudgetUsed, total)
			ok = false
		}
	}
	result.SoldPlayers = len(owners)

	for _, ps := range snap.PlayerStates {
		_, inLedger := owners[ps.PlayerID]
		if ps.IsSold != inLedger {
			result.detail("Player %s state says sold=%t but ledger says sold=%t", ps.PlayerID, ps.IsSold, inLedger)
			ok = false
		}
	}

	for _, id := range snap.UnsoldPlayers {
		if _, sold := owners[id]; sold {
			result.detail("Player %s is on the unsold list but was sold", id)
			ok = false
		}
	}

	if ok {
		result.detail("Ledger consistency passed: %d players sold across %d teams", len(owners), len(snap.AuctionData))
	}
	return ok
}

func validateLimits(teams []sessionapi.TeamRecord, snap *sessionapi.Snapshot, result *SnapshotValidationResult) bool {
	if teams == nil {
		result.detail("No team records given; budget and roster limits not checked")
		return true
	}

	byID := make(map[string]sessionapi.TeamRecord, len(teams))
	for _, t := range teams {
		byID[t.TeamID] = t
	}

	ok := true
	for _, teamID := range sortedTeamIDs(snap) {
		data := snap.AuctionData[teamID]
		team, known := byID[teamID]
		if !known {
			result.detail("Ledger for unknown team %s", teamID)
			ok = false
			continue
		}
		total, overflow := saleTotal(data.SelectedPlayers)
		if overflow {
			result.detail("Team %s sale total overflows, budget is %d", teamID, team.MaxBudget)
			ok = false
		} else if total > team.MaxBudget {
			result.detail("Team %s spent %d, budget is %d", teamID, total, team.MaxBudget)
			ok = false
		}
		if len(data.SelectedPlayers) > team.MaxPlayers {
			result.detail("Team %s holds %d players, limit is %d", teamID, len(data.SelectedPlayers), team.MaxPlayers)
			ok = false
		}
	}
	if ok {
		result.detail("Budget and roster limits passed for %d teams", len(snap.AuctionData))
	}
	return ok
}

func sortedTeamIDs(snap *sessionapi.Snapshot) []string {
	ids := make([]string, 0, len(snap.AuctionData))
	for id := range snap.AuctionData {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// saleTotal sums the bid amounts and reports whether the sum left the int64 range.
func saleTotal(sales []sessionapi.SoldPlayer) (int64, bool) {
	var total int64
	for _, sp := range sales {
		if sp.BidAmount > 0 && total > math.MaxInt64-sp.BidAmount ||
			sp.BidAmount < 0 && total < math.MinInt64-sp.BidAmount {
			return 0, true
		}
		total += sp.BidAmount
	}
	return total, false
}
