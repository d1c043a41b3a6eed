// Package usecase wires the raffle engine to history, push and the event bus.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/internal/modules/raffle/machine"
	"github.com/frankieli/raffle_engine/pkg/logger"
	"github.com/frankieli/raffle_engine/pkg/service"
)

// GatewayChannel is the push channel raffle events are broadcast on.
const GatewayChannel = "raffle"

// CommandYouWon is sent only to the winner's own connections.
const CommandYouWon = "YOU_WON"

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// RaffleUseCase is the application entry point for the raffle module.
type RaffleUseCase struct {
	engine    *machine.StateMachine
	drawRepo  domain.DrawRepository
	gateway   service.GatewayService
	publisher domain.EventPublisher
	reads     singleflight.Group
}

// NewRaffleUseCase registers itself as an engine event handler. gateway and
// publisher may be nil.
func NewRaffleUseCase(engine *machine.StateMachine, drawRepo domain.DrawRepository, gateway service.GatewayService, publisher domain.EventPublisher) *RaffleUseCase {
	uc := &RaffleUseCase{
		engine:    engine,
		drawRepo:  drawRepo,
		gateway:   gateway,
		publisher: publisher,
	}
	engine.RegisterEventHandler(uc.handleEvent)
	return uc
}

var _ service.FulfillmentReceiver = (*RaffleUseCase)(nil)

func (uc *RaffleUseCase) Enter(ctx context.Context, participant string, stake int64) (*domain.EntryReceipt, error) {
	ctx = logger.WithFields(ctx, map[string]interface{}{
		"participant": participant,
		"stake":       stake,
	})

	receipt, err := uc.engine.Enter(ctx, participant, stake)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("entry rejected")
		return nil, err
	}
	logger.Info(ctx).Int("count", receipt.Count).Str("receipt_id", receipt.ReceiptID).Msg("entry accepted")
	return receipt, nil
}

func (uc *RaffleUseCase) GetRound(ctx context.Context) domain.RoundView {
	return uc.engine.GetCurrentRound()
}

func (uc *RaffleUseCase) GetParticipant(ctx context.Context, index int) (string, error) {
	return uc.engine.Participant(index)
}

// CheckUpkeep evaluates the draw condition at the engine's current time.
func (uc *RaffleUseCase) CheckUpkeep(ctx context.Context) domain.UpkeepStatus {
	return uc.engine.CheckUpkeep(uc.engine.Now())
}

// PerformUpkeep starts a draw if one is due.
func (uc *RaffleUseCase) PerformUpkeep(ctx context.Context) (string, error) {
	requestID, err := uc.engine.StartDraw(ctx, uc.engine.Now())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUpkeepNotNeeded), errors.Is(err, domain.ErrDrawAlreadyInProgress):
			logger.Debug(ctx).Err(err).Msg("upkeep skipped")
		default:
			logger.Error(ctx).Err(err).Msg("upkeep failed")
		}
		return "", err
	}
	return requestID, nil
}

// Fulfill hands the provider's words to the engine.
func (uc *RaffleUseCase) Fulfill(ctx context.Context, requestID string, words []*big.Int) (*domain.WinnerAnnouncement, error) {
	ctx = logger.WithFields(ctx, map[string]interface{}{"request_id": requestID, "words": len(words)})
	return uc.engine.Fulfill(ctx, requestID, words)
}

// FulfillRandomness is the provider callback.
func (uc *RaffleUseCase) FulfillRandomness(ctx context.Context, requestID string, words []*big.Int) error {
	_, err := uc.Fulfill(ctx, requestID, words)
	return err
}

// ListDraws returns recent draw history. Concurrent calls with the same
// limit share one repository query, which does not inherit the first
// caller's cancellation.
func (uc *RaffleUseCase) ListDraws(ctx context.Context, limit int) ([]*domain.DrawRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	v, err, _ := uc.reads.Do("list:"+strconv.Itoa(limit), func() (interface{}, error) {
		return uc.drawRepo.ListRecent(context.WithoutCancel(ctx), limit)
	})
	if err != nil {
		return nil, fmt.Errorf("list draws: %w", err)
	}
	return v.([]*domain.DrawRecord), nil
}

func (uc *RaffleUseCase) GetDraw(ctx context.Context, requestID string) (*domain.DrawRecord, error) {
	v, err, _ := uc.reads.Do("draw:"+requestID, func() (interface{}, error) {
		return uc.drawRepo.Get(context.WithoutCancel(ctx), requestID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.DrawRecord), nil
}

// handleEvent runs on the engine's dispatcher, in event order.
func (uc *RaffleUseCase) handleEvent(ev domain.Event) {
	ctx := logger.WithFields(context.Background(), map[string]interface{}{
		"seq":   ev.Seq,
		"event": string(ev.Type),
	})

	uc.persist(ctx, ev)

	if uc.gateway != nil {
		uc.gateway.Broadcast(GatewayChannel, string(ev.Type), ev)
		if won, ok := ev.Data.(domain.WinnerAnnounced); ok {
			uc.gateway.SendToUser(won.Winner, GatewayChannel, CommandYouWon, won)
		}
	}

	if uc.publisher != nil {
		if err := uc.publisher.Publish(ctx, ev); err != nil {
			logger.Error(ctx).Err(err).Msg("publish raffle event failed")
		}
	}
}

func (uc *RaffleUseCase) persist(ctx context.Context, ev domain.Event) {
	if uc.drawRepo == nil {
		return
	}
	switch data := ev.Data.(type) {
	case domain.DrawStarted:
		if err := uc.drawRepo.Create(ctx, domain.NewDrawRecord(data, ev.At)); err != nil {
			logger.Error(ctx).Err(err).Str("request_id", data.RequestID).Msg("save draw failed")
		}
	case domain.WinnerAnnounced:
		err := uc.drawRepo.UpdateResult(ctx, data.RequestID, domain.DrawResult{
			Winner:      data.Winner,
			WinnerIndex: data.WinnerIndex,
			RandomValue: data.RandomValue,
			CompletedAt: ev.At,
		})
		if err != nil {
			logger.Error(ctx).Err(err).Str("request_id", data.RequestID).Msg("update draw result failed")
		}
	}
}
