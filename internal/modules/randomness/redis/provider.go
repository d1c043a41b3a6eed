// Package redis talks to an external randomness oracle over Redis pub/sub.
// Requests go out on one channel; the oracle answers on another.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frankieli/raffle_engine/internal/modules/randomness"
	"github.com/frankieli/raffle_engine/pkg/logger"
	"github.com/frankieli/raffle_engine/pkg/service"
)

var ErrNoReceiver = errors.New("redis provider: no receiver set")

// RequestMessage is published for every randomness request.
type RequestMessage struct {
	RequestID     string    `json:"request_id"`
	NumWords      uint32    `json:"num_words"`
	Confirmations uint16    `json:"confirmations"`
	RequestedAt   time.Time `json:"requested_at"`
}

// FulfillmentMessage is what the oracle publishes back.
type FulfillmentMessage struct {
	RequestID   string   `json:"request_id"`
	RandomWords []string `json:"random_words"`
}

type Config struct {
	RequestChannel string
	FulfillChannel string
	SequenceKey    string
}

// Provider implements service.RandomnessProvider on Redis.
type Provider struct {
	client *redis.Client
	cfg    Config

	mu       sync.RWMutex
	receiver service.FulfillmentReceiver
}

var _ service.RandomnessProvider = (*Provider)(nil)

func NewProvider(client *redis.Client, cfg Config) *Provider {
	if cfg.SequenceKey == "" {
		cfg.SequenceKey = cfg.RequestChannel + ":seq"
	}
	return &Provider{client: client, cfg: cfg}
}

func (p *Provider) SetReceiver(r service.FulfillmentReceiver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.receiver = r
}

// RequestRandomness takes the next id from the sequence key and publishes
// the request. Ids are unique for as long as the key survives.
func (p *Provider) RequestRandomness(ctx context.Context, req service.RandomnessRequest) (string, error) {
	seq, err := p.client.Incr(ctx, p.cfg.SequenceKey).Result()
	if err != nil {
		return "", fmt.Errorf("next request id: %w", err)
	}
	id := strconv.FormatInt(seq, 10)

	payload, err := json.Marshal(RequestMessage{
		RequestID:     id,
		NumWords:      req.NumWords,
		Confirmations: req.Confirmations,
		RequestedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if err := p.client.Publish(ctx, p.cfg.RequestChannel, payload).Err(); err != nil {
		return "", fmt.Errorf("publish request %s: %w", id, err)
	}
	return id, nil
}

// Run consumes fulfillments until ctx is cancelled.
func (p *Provider) Run(ctx context.Context) error {
	sub := p.client.Subscribe(ctx, p.cfg.FulfillChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", p.cfg.FulfillChannel, err)
	}
	logger.Info(ctx).Str("channel", p.cfg.FulfillChannel).Msg("listening for randomness fulfillments")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("fulfillment subscription closed")
			}
			p.handle(ctx, msg.Payload)
		}
	}
}

func (p *Provider) handle(ctx context.Context, payload string) {
	var msg FulfillmentMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		logger.Warn(ctx).Err(err).Msg("malformed fulfillment dropped")
		return
	}
	ctx = logger.WithFields(ctx, map[string]interface{}{"request_id": msg.RequestID})

	words, err := randomness.ParseWords(msg.RandomWords)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("fulfillment with bad words dropped")
		return
	}

	p.mu.RLock()
	receiver := p.receiver
	p.mu.RUnlock()
	if receiver == nil {
		logger.Error(ctx).Err(ErrNoReceiver).Msg("fulfillment dropped")
		return
	}

	if err := receiver.FulfillRandomness(ctx, msg.RequestID, words); err != nil {
		logger.Warn(ctx).Err(err).Msg("fulfillment rejected")
	}
}

// PublishFulfillment sends an answer the way an oracle would. Used by
// operators to unstick a draw and by tests.
func PublishFulfillment(ctx context.Context, client *redis.Client, channel, requestID string, words []string) error {
	payload, err := json.Marshal(FulfillmentMessage{RequestID: requestID, RandomWords: words})
	if err != nil {
		return err
	}
	return client.Publish(ctx, channel, payload).Err()
}
