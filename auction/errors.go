package auction

import (
	"errors"
	"fmt"
)

var (
	// ErrRoundIncomplete is matched by *RoundIncompleteError.
	ErrRoundIncomplete = errors.New("round incomplete")
	ErrAuctionComplete = errors.New("auction complete")
	ErrNotPending      = errors.New("player is not pending in the current round")
	ErrSessionClosed   = errors.New("session closed")
)

// RoundIncompleteError reports how many players of the round's pool are
// still unresolved.
type RoundIncompleteError struct {
	Round      int
	Unresolved int
}

func (e *RoundIncompleteError) Error() string {
	return fmt.Sprintf("round %d has %d unresolved players, sell or skip them first", e.Round, e.Unresolved)
}

func (e *RoundIncompleteError) Is(target error) bool {
	return target == ErrRoundIncomplete
}
