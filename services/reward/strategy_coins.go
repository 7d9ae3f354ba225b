package reward

import (
	"context"
	"fmt"

	"questline/pkg/errutil"
	"questline/services/notification"
	"questline/services/wallet"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CoinStrategy credits a configured coin amount to the user's wallet.
type CoinStrategy struct {
	wallet   *wallet.Service
	notifier notification.Dispatcher
}

type CoinStrategyParams struct {
	fx.In
	Wallet   *wallet.Service
	Notifier notification.Dispatcher
}

func NewCoinStrategy(p CoinStrategyParams) *CoinStrategy {
	return &CoinStrategy{
		wallet:   p.Wallet,
		notifier: p.Notifier,
	}
}

func (s *CoinStrategy) Grant(ctx context.Context, userID string, r Rewardable, ref string) error {
	if r.Amount <= 0 {
		return errutil.Internal(fmt.Sprintf("rewardable %s has non-positive coin amount %d", r.ID, r.Amount), nil)
	}

	description := r.Description
	if description == "" {
		description = "Reward coins"
	}

	if err := s.wallet.CreditOnce(ctx, userID, r.Amount, description, ref); err != nil {
		return err
	}

	if err := s.notifier.Dispatch(ctx, userID, notification.Payload{
		Icon:      "coin",
		Title:     fmt.Sprintf("You received %d coins!", r.Amount),
		ActionURL: "/wallet",
	}); err != nil {
		zap.L().Warn("coins granted but notification dispatch failed",
			zap.String("user_id", userID),
			zap.Int64("amount", r.Amount),
			zap.Error(err),
		)
	}

	return nil
}
