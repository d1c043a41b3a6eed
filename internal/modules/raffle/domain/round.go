package domain

import (
	"fmt"
	"math"
	"time"
)

// RaffleState is the draw lifecycle state.
type RaffleState int

const (
	StateOpen               RaffleState = 0
	StateAwaitingRandomness RaffleState = 1
)

func (s RaffleState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateAwaitingRandomness:
		return "AWAITING_RANDOMNESS"
	default:
		return fmt.Sprintf("RaffleState(%d)", int(s))
	}
}

func (s RaffleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RaffleState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "OPEN":
		*s = StateOpen
	case "AWAITING_RANDOMNESS":
		*s = StateAwaitingRandomness
	default:
		return fmt.Errorf("unknown raffle state %q", b)
	}
	return nil
}

// Round is the single live raffle. It is not safe for concurrent use;
// machine.StateMachine serializes access to it.
type Round struct {
	entranceFee  int64
	interval     time.Duration
	state        RaffleState
	lastDrawAt   time.Time
	ledger       EntryLedger
	recentWinner string
	pending      *PendingRequest
}

// NewRound creates an open round whose interval starts counting at genesis.
func NewRound(entranceFee int64, interval time.Duration, genesis time.Time) (*Round, error) {
	if entranceFee <= 0 {
		return nil, fmt.Errorf("%w: entrance fee %d", ErrInvalidRoundConfig, entranceFee)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval %s", ErrInvalidRoundConfig, interval)
	}
	return &Round{
		entranceFee: entranceFee,
		interval:    interval,
		state:       StateOpen,
		lastDrawAt:  genesis,
	}, nil
}

// Enter records one slot for participant. The whole stake is held, even
// when it exceeds the entrance fee. Returns the new participant count.
func (r *Round) Enter(participant string, stake int64) (int, error) {
	if participant == "" {
		return 0, ErrInvalidParticipant
	}
	if stake < r.entranceFee {
		return 0, fmt.Errorf("%w: stake %d below entrance fee %d", ErrInsufficientPayment, stake, r.entranceFee)
	}
	if r.state != StateOpen {
		return 0, ErrNotOpenForEntry
	}
	if r.ledger.Balance() > math.MaxInt64-stake {
		return 0, ErrStakeOverflow
	}
	return r.ledger.Append(participant, stake), nil
}

// Upkeep evaluates the draw condition at now.
func (r *Round) Upkeep(now time.Time) UpkeepStatus {
	return CheckUpkeep(r.View(), now)
}

// CanBeginDraw reports whether BeginDraw may run at now.
func (r *Round) CanBeginDraw(now time.Time) error {
	if r.pending != nil {
		return ErrDrawAlreadyInProgress
	}
	if st := r.Upkeep(now); !st.Needed {
		return st.Err()
	}
	return nil
}

// BeginDraw freezes the participants under requestID and stops entries.
// Callers must check CanBeginDraw first.
func (r *Round) BeginDraw(drawID, requestID string, now time.Time) *PendingRequest {
	r.pending = &PendingRequest{
		DrawID:       drawID,
		RequestID:    requestID,
		IssuedAt:     now,
		Participants: r.ledger.Snapshot(),
		Amount:       r.ledger.Balance(),
	}
	r.state = StateAwaitingRandomness
	return r.pending.Clone()
}

// Match returns the outstanding request if its id is requestID.
func (r *Round) Match(requestID string) (*PendingRequest, error) {
	if r.pending == nil || r.pending.RequestID != requestID {
		return nil, ErrUnknownRequest
	}
	return r.pending, nil
}

// CompleteDraw records the winner and opens the next round.
func (r *Round) CompleteDraw(winner string, at time.Time) {
	r.ledger.Reset()
	r.recentWinner = winner
	r.lastDrawAt = at
	r.pending = nil
	r.state = StateOpen
}

// Participant returns the entry at index in the live ledger.
func (r *Round) Participant(index int) (string, error) {
	return r.ledger.Participant(index)
}

// Pending returns a copy of the outstanding request, or nil.
func (r *Round) Pending() *PendingRequest {
	return r.pending.Clone()
}

// View is a copy of the scalar round fields.
func (r *Round) View() RoundView {
	v := RoundView{
		State:            r.state,
		EntranceFee:      r.entranceFee,
		Interval:         r.interval,
		LastDrawAt:       r.lastDrawAt,
		ParticipantCount: r.ledger.Len(),
		HeldBalance:      r.ledger.Balance(),
		RecentWinner:     r.recentWinner,
	}
	if r.pending != nil {
		v.PendingRequestID = r.pending.RequestID
	}
	return v
}

// RoundView is a read-only snapshot of the round.
type RoundView struct {
	State            RaffleState   `json:"state"`
	EntranceFee      int64         `json:"entrance_fee"`
	Interval         time.Duration `json:"interval"`
	LastDrawAt       time.Time     `json:"last_draw_at"`
	ParticipantCount int           `json:"participant_count"`
	HeldBalance      int64         `json:"held_balance"`
	RecentWinner     string        `json:"recent_winner"`
	PendingRequestID string        `json:"pending_request_id,omitempty"`
}
