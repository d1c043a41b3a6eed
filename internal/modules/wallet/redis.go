package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frankieli/raffle_engine/pkg/logger"
	"github.com/frankieli/raffle_engine/pkg/service"
)

const ledgerLength = 1000

// creditScript credits ARGV[2] to account ARGV[1] unless reference ARGV[3]
// was already applied. Returns 1 when credited, 0 for a repeat.
var creditScript = redis.NewScript(`
	if ARGV[3] ~= "" and redis.call("SISMEMBER", KEYS[3], ARGV[3]) == 1 then
		return 0
	end
	redis.call("HINCRBY", KEYS[1], ARGV[1], ARGV[2])
	if ARGV[3] ~= "" then
		redis.call("SADD", KEYS[3], ARGV[3])
	end
	redis.call("LPUSH", KEYS[2], ARGV[4])
	redis.call("LTRIM", KEYS[2], 0, tonumber(ARGV[5]) - 1)
	return 1
`)

// RedisService keeps balances in a hash and a capped payout ledger.
type RedisService struct {
	client *redis.Client
	prefix string
}

var _ service.WalletService = (*RedisService)(nil)

func NewRedisService(client *redis.Client, prefix string) *RedisService {
	return &RedisService{client: client, prefix: prefix}
}

func (s *RedisService) balancesKey() string   { return s.prefix + ":balances" }
func (s *RedisService) ledgerKey() string     { return s.prefix + ":ledger" }
func (s *RedisService) referencesKey() string { return s.prefix + ":references" }

func (s *RedisService) GetBalance(ctx context.Context, account string) (int64, error) {
	bal, err := s.client.HGet(ctx, s.balancesKey(), account).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

func (s *RedisService) Transfer(ctx context.Context, to string, amount int64, reference string) error {
	if to == "" {
		return ErrInvalidAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	entry, err := json.Marshal(struct {
		Payout
		At time.Time `json:"at"`
	}{Payout{To: to, Amount: amount, Reference: reference}, time.Now().UTC()})
	if err != nil {
		return err
	}

	keys := []string{s.balancesKey(), s.ledgerKey(), s.referencesKey()}
	credited, err := creditScript.Run(ctx, s.client, keys, to, amount, reference, entry, ledgerLength).Int()
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	if credited == 0 {
		logger.Warn(ctx).Str("to", to).Str("reference", reference).Msg("payout already applied")
	}
	return nil
}

// Ledger returns the newest payouts first.
func (s *RedisService) Ledger(ctx context.Context, limit int64) ([]Payout, error) {
	raw, err := s.client.LRange(ctx, s.ledgerKey(), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Payout, 0, len(raw))
	for _, r := range raw {
		var p Payout
		if err := json.Unmarshal([]byte(r), &p); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}
