package service

import "context"

// WalletService pays out and reports balances. Amounts are minor units.
type WalletService interface {
	GetBalance(ctx context.Context, account string) (int64, error)
	// Transfer credits amount to account. reference identifies the payout
	// (the draw's request id) for the ledger.
	Transfer(ctx context.Context, to string, amount int64, reference string) error
}
