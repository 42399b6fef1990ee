package engine

import (
	"context"
	"fmt"

	"solana-swapbot/internal/domain"
)

// checkBalance verifies the wallet can cover the swap amount plus the
// rent-exempt reserve the account must retain. An unreachable RPC is a
// hard failure, never a pass.
func checkBalance(ctx context.Context, chain ChainReader, address string, amountLamports uint64) error {
	balance, err := chain.GetBalance(ctx, address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	required := amountLamports + domain.RentExemptReserve
	if balance < required {
		return &InsufficientFundsError{Balance: balance, Required: required}
	}
	return nil
}
