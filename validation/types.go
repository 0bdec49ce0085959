package validation

import "fmt"

// BaseValidationResult contains the blob-level checks for every snapshot
type BaseValidationResult struct {
	SignatureValid    bool
	DigestValid       bool
	ValidationDetails []string
}

// SnapshotValidationResult contains validation results for a persisted
// auction snapshot
type SnapshotValidationResult struct {
	BaseValidationResult
	Signed              bool
	LedgerConsistent    bool
	RostersWithinLimits bool

	SessionID    string
	CurrentRound int
	SoldPlayers  int
}

// IsValid returns true if all snapshot validation checks passed
func (r *SnapshotValidationResult) IsValid() bool {
	return r.SignatureValid && r.DigestValid && r.LedgerConsistent && r.RostersWithinLimits
}

func (r *SnapshotValidationResult) detail(format string, args ...any) {
	r.ValidationDetails = append(r.ValidationDetails, fmt.Sprintf(format, args...))
}
