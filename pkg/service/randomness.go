package service

import (
	"context"
	"math/big"
)

// RandomnessRequest carries the provider parameters of one request.
type RandomnessRequest struct {
	NumWords      uint32
	Confirmations uint16
}

// RandomnessProvider issues requests and later answers them through a
// FulfillmentReceiver. RequestRandomness must not deliver synchronously.
type RandomnessProvider interface {
	RequestRandomness(ctx context.Context, req RandomnessRequest) (requestID string, err error)
	SetReceiver(r FulfillmentReceiver)
}

// FulfillmentReceiver accepts provider callbacks.
type FulfillmentReceiver interface {
	FulfillRandomness(ctx context.Context, requestID string, words []*big.Int) error
}
