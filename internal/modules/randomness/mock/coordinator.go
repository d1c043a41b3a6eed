// Package mock is an in-process randomness coordinator for local runs and tests.
package mock

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/frankieli/raffle_engine/internal/modules/randomness"
	"github.com/frankieli/raffle_engine/pkg/logger"
	"github.com/frankieli/raffle_engine/pkg/routine"
	"github.com/frankieli/raffle_engine/pkg/service"
)

var (
	ErrNonexistentRequest = errors.New("mock coordinator: nonexistent request")
	ErrNoReceiver         = errors.New("mock coordinator: no receiver set")
)

// Coordinator hands out request ids 1, 2, 3, ... and answers them when
// Deliver is called, or by itself after AutoDeliver when that is set.
type Coordinator struct {
	mu          sync.Mutex
	nextID      uint64
	outstanding map[string]service.RandomnessRequest
	receiver    service.FulfillmentReceiver

	autoDeliver time.Duration
	routines    *routine.Manager
}

var _ service.RandomnessProvider = (*Coordinator)(nil)

// NewCoordinator builds a coordinator. With autoDeliver > 0 each request is
// answered on its own routine after that delay; routines may be nil otherwise.
func NewCoordinator(autoDeliver time.Duration, routines *routine.Manager) *Coordinator {
	return &Coordinator{
		outstanding: make(map[string]service.RandomnessRequest),
		autoDeliver: autoDeliver,
		routines:    routines,
	}
}

func (c *Coordinator) SetReceiver(r service.FulfillmentReceiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiver = r
}

func (c *Coordinator) RequestRandomness(ctx context.Context, req service.RandomnessRequest) (string, error) {
	c.mu.Lock()
	c.nextID++
	id := strconv.FormatUint(c.nextID, 10)
	c.outstanding[id] = req
	c.mu.Unlock()

	logger.Debug(ctx).Str("request_id", id).Uint32("num_words", req.NumWords).Msg("randomness requested")

	if c.autoDeliver > 0 && c.routines != nil {
		delay := c.autoDeliver
		err := c.routines.Go("mock-vrf:"+id, func(rctx context.Context) error {
			select {
			case <-time.After(delay):
			case <-rctx.Done():
				return nil
			}
			return c.Deliver(rctx, id)
		})
		if err != nil {
			logger.Warn(ctx).Err(err).Str("request_id", id).Msg("auto delivery not scheduled")
		}
	}
	return id, nil
}

// Deliver answers request id with fresh random words.
func (c *Coordinator) Deliver(ctx context.Context, id string) error {
	c.mu.Lock()
	req, ok := c.outstanding[id]
	c.mu.Unlock()
	if !ok {
		return ErrNonexistentRequest
	}
	words, err := randomness.NewWords(req.NumWords)
	if err != nil {
		return err
	}
	return c.DeliverWords(ctx, id, words)
}

// DeliverWords answers request id with the given words. The request stays
// outstanding if the receiver rejects the callback, so it can be delivered again.
func (c *Coordinator) DeliverWords(ctx context.Context, id string, words []*big.Int) error {
	c.mu.Lock()
	_, ok := c.outstanding[id]
	receiver := c.receiver
	c.mu.Unlock()
	if !ok {
		return ErrNonexistentRequest
	}
	if receiver == nil {
		return ErrNoReceiver
	}

	if err := receiver.FulfillRandomness(ctx, id, words); err != nil {
		logger.Warn(ctx).Err(err).Str("request_id", id).Msg("fulfillment rejected")
		return err
	}

	c.mu.Lock()
	delete(c.outstanding, id)
	c.mu.Unlock()
	return nil
}

// Outstanding lists unanswered request ids in issue order.
func (c *Coordinator) Outstanding() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.outstanding))
	for id := range c.outstanding {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseUint(ids[i], 10, 64)
		b, _ := strconv.ParseUint(ids[j], 10, 64)
		return a < b
	})
	return ids
}
