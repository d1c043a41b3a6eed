package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientPayment   = errors.New("insufficient payment")
	ErrNotOpenForEntry       = errors.New("raffle not open for entry")
	ErrUpkeepNotNeeded       = errors.New("upkeep not needed")
	ErrDrawAlreadyInProgress = errors.New("draw already in progress")
	ErrUnknownRequest        = errors.New("unknown randomness request")
	ErrTransferFailed        = errors.New("payout transfer failed")

	ErrRandomnessRequestFailed    = errors.New("randomness request failed")
	ErrInvalidRandomness          = errors.New("invalid random values")
	ErrInvalidParticipant         = errors.New("invalid participant")
	ErrParticipantIndexOutOfRange = errors.New("participant index out of range")
	ErrStakeOverflow              = errors.New("held balance would overflow")
	ErrInvalidRoundConfig         = errors.New("invalid round config")
	ErrDrawNotFound               = errors.New("draw not found")
)

// UpkeepNotNeededError reports why a draw could not start.
// errors.Is(err, ErrUpkeepNotNeeded) matches it.
type UpkeepNotNeededError struct {
	Balance      int64
	Participants int
	State        RaffleState
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%s: balance=%d participants=%d state=%s",
		ErrUpkeepNotNeeded, e.Balance, e.Participants, e.State)
}

func (e *UpkeepNotNeededError) Is(target error) bool {
	return target == ErrUpkeepNotNeeded
}
