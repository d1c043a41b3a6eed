// Package usecase implements the business logic for the gateway module.
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
	"github.com/frankieli/raffle_engine/pkg/logger"
)

const raffleGame = "raffle"

var (
	ErrInvalidMessage   = errors.New("invalid message format")
	ErrUnknownGame      = errors.New("unknown game")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrNotAuthenticated = errors.New("authentication required")
)

// RaffleService is the part of the raffle module reachable over websocket.
type RaffleService interface {
	Enter(ctx context.Context, participant string, stake int64) (*domain.EntryReceipt, error)
	GetRound(ctx context.Context) domain.RoundView
}

// RequestEnvelope is the frame clients send.
type RequestEnvelope struct {
	Game    string          `json:"game"`
	Command string          `json:"command"`
	Data    json.RawMessage `json:"data"`
}

type responseEnvelope struct {
	Game    string      `json:"game"`
	Command string      `json:"command"`
	Data    interface{} `json:"data"`
}

type GatewayUseCase struct {
	raffle RaffleService
}

func NewGatewayUseCase(raffle RaffleService) *GatewayUseCase {
	return &GatewayUseCase{raffle: raffle}
}

// HandleMessage routes one client frame. userID is empty for anonymous
// observers. A nil response means nothing is sent back.
func (uc *GatewayUseCase) HandleMessage(ctx context.Context, userID string, message []byte) ([]byte, error) {
	var req RequestEnvelope
	if err := json.Unmarshal(message, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if req.Game == "" || req.Command == "" {
		return nil, fmt.Errorf("%w: missing game or command", ErrInvalidMessage)
	}

	switch req.Game {
	case raffleGame:
		return uc.handleRaffle(ctx, userID, req.Command, req.Data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, req.Game)
	}
}

func (uc *GatewayUseCase) handleRaffle(ctx context.Context, userID, command string, data json.RawMessage) ([]byte, error) {
	switch command {
	case "ping":
		return reply("pong", nil)

	case "round":
		return reply("round", uc.raffle.GetRound(ctx))

	case "enter":
		if userID == "" {
			return nil, ErrNotAuthenticated
		}
		var payload struct {
			Stake int64 `json:"stake"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: enter payload: %v", ErrInvalidMessage, err)
		}

		receipt, err := uc.raffle.Enter(ctx, userID, payload.Stake)
		if err != nil {
			logger.Warn(ctx).
				Err(err).
				Str("user_id", userID).
				Int64("stake", payload.Stake).
				Msg("ws entry rejected")
			return reply("enter_rsp", map[string]interface{}{"error": err.Error()})
		}
		return reply("enter_rsp", receipt)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func reply(command string, data interface{}) ([]byte, error) {
	return json.Marshal(responseEnvelope{Game: raffleGame, Command: command, Data: data})
}
