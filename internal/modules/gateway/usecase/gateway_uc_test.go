package usecase

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
)

type stubRaffle struct {
	lastParticipant string
	lastStake       int64
	err             error
}

func (s *stubRaffle) Enter(ctx context.Context, participant string, stake int64) (*domain.EntryReceipt, error) {
	s.lastParticipant, s.lastStake = participant, stake
	if s.err != nil {
		return nil, s.err
	}
	return &domain.EntryReceipt{ReceiptID: "x", Participant: participant, Stake: stake, Count: 1}, nil
}

func (s *stubRaffle) GetRound(ctx context.Context) domain.RoundView {
	return domain.RoundView{State: domain.StateAwaitingRandomness, EntranceFee: 10}
}

func TestHandleMessageRouting(t *testing.T) {
	ctx := context.Background()
	uc := NewGatewayUseCase(&stubRaffle{})

	_, err := uc.HandleMessage(ctx, "", []byte("{not json"))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = uc.HandleMessage(ctx, "", []byte(`{"game":"raffle"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = uc.HandleMessage(ctx, "", []byte(`{"game":"poker","command":"ping"}`))
	assert.ErrorIs(t, err, ErrUnknownGame)

	_, err = uc.HandleMessage(ctx, "", []byte(`{"game":"raffle","command":"fly"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	rsp, err := uc.HandleMessage(ctx, "", []byte(`{"game":"raffle","command":"round"}`))
	require.NoError(t, err)
	var out struct {
		Command string           `json:"command"`
		Data    domain.RoundView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rsp, &out))
	assert.Equal(t, "round", out.Command)
	assert.Equal(t, int64(10), out.Data.EntranceFee)
}

func TestHandleEnter(t *testing.T) {
	ctx := context.Background()
	raffle := &stubRaffle{}
	uc := NewGatewayUseCase(raffle)

	_, err := uc.HandleMessage(ctx, "", []byte(`{"game":"raffle","command":"enter","data":{"stake":10}}`))
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = uc.HandleMessage(ctx, "bob", []byte(`{"game":"raffle","command":"enter","data":"x"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)

	rsp, err := uc.HandleMessage(ctx, "bob", []byte(`{"game":"raffle","command":"enter","data":{"stake":10}}`))
	require.NoError(t, err)
	assert.Contains(t, string(rsp), `"enter_rsp"`)
	assert.Equal(t, "bob", raffle.lastParticipant)
	assert.Equal(t, int64(10), raffle.lastStake)

	raffle.err = domain.ErrNotOpenForEntry
	rsp, err = uc.HandleMessage(ctx, "bob", []byte(`{"game":"raffle","command":"enter","data":{"stake":10}}`))
	require.NoError(t, err)
	assert.Contains(t, string(rsp), domain.ErrNotOpenForEntry.Error())
}
