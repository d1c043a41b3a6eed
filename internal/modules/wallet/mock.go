package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/frankieli/raffle_engine/pkg/service"
)

var (
	ErrInvalidAmount  = errors.New("wallet: amount must be positive")
	ErrInvalidAccount = errors.New("wallet: empty account")
)

// Payout is one credited transfer.
type Payout struct {
	To        string `json:"to"`
	Amount    int64  `json:"amount"`
	Reference string `json:"reference"`
}

// MockService is an in-memory wallet. A reference is credited at most once,
// so a retried payout is not paid twice.
type MockService struct {
	mu       sync.RWMutex
	balances map[string]int64
	seen     map[string]struct{}
	payouts  []Payout
	failWith error
}

var _ service.WalletService = (*MockService)(nil)

func NewMockService() *MockService {
	return &MockService{
		balances: make(map[string]int64),
		seen:     make(map[string]struct{}),
	}
}

// SetBalance sets the balance for an account (for testing)
func (s *MockService) SetBalance(account string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] = balance
}

// FailTransfers makes every Transfer return err until called with nil.
func (s *MockService) FailTransfers(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *MockService) GetBalance(ctx context.Context, account string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

func (s *MockService) Transfer(ctx context.Context, to string, amount int64, reference string) error {
	if to == "" {
		return ErrInvalidAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, dup := s.seen[reference]; dup && reference != "" {
		return nil
	}
	s.seen[reference] = struct{}{}
	s.balances[to] += amount
	s.payouts = append(s.payouts, Payout{To: to, Amount: amount, Reference: reference})
	return nil
}

// Payouts returns the credited transfers in order.
func (s *MockService) Payouts() []Payout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Payout(nil), s.payouts...)
}
