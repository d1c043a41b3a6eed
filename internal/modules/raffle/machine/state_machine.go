package machine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/pkg/logger"
	"github.com/frankieli/raffle_engine/pkg/service"
)

// Clock returns the current time. Tests pass a fake.
type Clock func() time.Time

// Options configures a StateMachine. EntranceFee and Interval are fixed
// for the lifetime of the engine.
type Options struct {
	EntranceFee int64
	Interval    time.Duration
	Randomness  service.RandomnessRequest
	Clock       Clock
}

// StateMachine owns the live round. Enter, StartDraw and Fulfill are
// serialized by mu; getters take the read lock and see whole updates only.
type StateMachine struct {
	mu       sync.RWMutex
	round    *domain.Round
	seq      uint64
	provider service.RandomnessProvider
	wallet   service.WalletService
	request  service.RandomnessRequest
	clock    Clock

	handlersMu sync.RWMutex
	handlers   []EventHandler
	queue      *eventQueue
}

// NewStateMachine creates the engine. Genesis is the clock reading at construction.
func NewStateMachine(opts Options, provider service.RandomnessProvider, wallet service.WalletService) (*StateMachine, error) {
	if provider == nil || wallet == nil {
		return nil, fmt.Errorf("%w: provider and wallet are required", domain.ErrInvalidRoundConfig)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	req := opts.Randomness
	if req.NumWords == 0 {
		req.NumWords = 1
	}

	round, err := domain.NewRound(opts.EntranceFee, opts.Interval, clock())
	if err != nil {
		return nil, err
	}
	return &StateMachine{
		round:    round,
		provider: provider,
		wallet:   wallet,
		request:  req,
		clock:    clock,
		queue:    newEventQueue(),
	}, nil
}

// Enter adds participant to the open round.
func (sm *StateMachine) Enter(ctx context.Context, participant string, stake int64) (*domain.EntryReceipt, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	count, err := sm.round.Enter(participant, stake)
	if err != nil {
		return nil, err
	}

	receipt := &domain.EntryReceipt{
		ReceiptID:   uuid.NewString(),
		Participant: participant,
		Stake:       stake,
		Position:    count - 1,
		Count:       count,
		EnteredAt:   sm.clock(),
	}
	sm.emit(domain.Event{
		Type: domain.EventEntryAccepted,
		At:   receipt.EnteredAt,
		Data: domain.EntryAccepted{
			ReceiptID:   receipt.ReceiptID,
			Participant: participant,
			Stake:       stake,
			Count:       count,
		},
	})

	logger.Debug(ctx).
		Str("participant", participant).
		Int64("stake", stake).
		Int("count", count).
		Msg("entry accepted")
	return receipt, nil
}

// IsDrawDue reports whether StartDraw(now) would pass the upkeep check.
func (sm *StateMachine) IsDrawDue(now time.Time) bool {
	return sm.CheckUpkeep(now).Needed
}

// CheckUpkeep returns the upkeep decision with its inputs.
func (sm *StateMachine) CheckUpkeep(now time.Time) domain.UpkeepStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.round.Upkeep(now)
}

// StartDraw freezes the participants and asks the provider for randomness.
// It returns as soon as the provider has issued a request id; the result
// arrives later through Fulfill.
func (sm *StateMachine) StartDraw(ctx context.Context, now time.Time) (string, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if err := sm.round.CanBeginDraw(now); err != nil {
		return "", err
	}

	requestID, err := sm.provider.RequestRandomness(ctx, sm.request)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrRandomnessRequestFailed, err)
	}
	if requestID == "" {
		return "", fmt.Errorf("%w: provider returned an empty request id", domain.ErrRandomnessRequestFailed)
	}

	pending := sm.round.BeginDraw(uuid.NewString(), requestID, now)
	sm.emit(domain.Event{
		Type:      domain.EventDrawStarted,
		RequestID: requestID,
		At:        now,
		Data: domain.DrawStarted{
			DrawID:       pending.DrawID,
			RequestID:    requestID,
			Participants: pending.Participants,
			Amount:       pending.Amount,
		},
	})

	logger.Info(ctx).
		Str("request_id", requestID).
		Str("draw_id", pending.DrawID).
		Int("participants", len(pending.Participants)).
		Int64("amount", pending.Amount).
		Msg("draw started")
	return requestID, nil
}

// Fulfill resolves the pending draw with the first random word.
//
// The request id is checked before anything else; a stray or repeated id
// returns ErrUnknownRequest and changes nothing. A failed transfer keeps
// the request pending so the same delivery can be retried.
func (sm *StateMachine) Fulfill(ctx context.Context, requestID string, words []*big.Int) (*domain.WinnerAnnouncement, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	pending, err := sm.round.Match(requestID)
	if err != nil {
		logger.Warn(ctx).Str("request_id", requestID).Msg("fulfillment for unknown request dropped")
		return nil, err
	}
	if len(words) == 0 || words[0] == nil || words[0].Sign() < 0 {
		return nil, domain.ErrInvalidRandomness
	}

	random := words[0]
	idx, winner := domain.SelectWinner(random, pending.Participants)

	// Request ids restart with the provider; the draw id does not.
	if err := sm.wallet.Transfer(ctx, winner, pending.Amount, pending.DrawID); err != nil {
		logger.Error(ctx).Err(err).
			Str("request_id", requestID).
			Str("winner", winner).
			Int64("amount", pending.Amount).
			Msg("payout failed, draw stays pending")
		return nil, fmt.Errorf("%w: %w", domain.ErrTransferFailed, err)
	}

	drawnAt := sm.clock()
	ann := &domain.WinnerAnnouncement{
		DrawID:       pending.DrawID,
		RequestID:    requestID,
		Winner:       winner,
		WinnerIndex:  idx,
		Amount:       pending.Amount,
		Participants: len(pending.Participants),
		RandomValue:  random.String(),
		DrawnAt:      drawnAt,
	}
	sm.round.CompleteDraw(winner, drawnAt)
	sm.emit(domain.Event{
		Type:      domain.EventWinnerAnnounced,
		RequestID: requestID,
		At:        drawnAt,
		Data: domain.WinnerAnnounced{
			DrawID:      ann.DrawID,
			RequestID:   requestID,
			Winner:      winner,
			WinnerIndex: idx,
			Amount:      ann.Amount,
			RandomValue: ann.RandomValue,
		},
	})

	logger.Info(ctx).
		Str("request_id", requestID).
		Str("winner", winner).
		Int("winner_index", idx).
		Int64("amount", ann.Amount).
		Msg("winner paid")
	return ann, nil
}

// GetCurrentRound returns a consistent snapshot of the round.
func (sm *StateMachine) GetCurrentRound() domain.RoundView {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.round.View()
}

func (sm *StateMachine) State() domain.RaffleState { return sm.GetCurrentRound().State }
func (sm *StateMachine) EntranceFee() int64        { return sm.GetCurrentRound().EntranceFee }
func (sm *StateMachine) Interval() time.Duration   { return sm.GetCurrentRound().Interval }
func (sm *StateMachine) ParticipantCount() int     { return sm.GetCurrentRound().ParticipantCount }
func (sm *StateMachine) HeldBalance() int64        { return sm.GetCurrentRound().HeldBalance }
func (sm *StateMachine) RecentWinner() string      { return sm.GetCurrentRound().RecentWinner }
func (sm *StateMachine) LastDrawTimestamp() time.Time {
	return sm.GetCurrentRound().LastDrawAt
}

// Participant returns the entry at index in the open round.
func (sm *StateMachine) Participant(index int) (string, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.round.Participant(index)
}

// PendingRequest returns a copy of the outstanding request, or nil.
func (sm *StateMachine) PendingRequest() *domain.PendingRequest {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.round.Pending()
}

// Now reads the engine clock.
func (sm *StateMachine) Now() time.Time {
	return sm.clock()
}
