package wallet

import (
	"context"
	"errors"
	"time"

	"questline/pkg/db/option"
	"questline/pkg/errutil"
	"questline/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errAlreadyApplied aborts the surrounding transaction when a referenced
// credit turns out to be a replay of one that already landed.
var errAlreadyApplied = errors.New("wallet: credit already applied")

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	wallets      repository.Repository[Wallet]
	transactions repository.Repository[Transaction]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,

		wallets:      repository.ProvideStore[Wallet](p.DB),
		transactions: repository.ProvideStore[Transaction](p.DB),
	}
}

// Credit adds amount to the user's balance in its own transaction.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, description string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.creditTx(ctx, tx, userID, amount, description, "")
	})
}

// CreditOnce credits at most once per reference. Replays of a reference that
// has already been applied are a silent no-op, so queue redeliveries cannot
// double-credit.
func (s *Service) CreditOnce(ctx context.Context, userID string, amount int64, description, reference string) error {
	if reference == "" {
		return errutil.BadRequest("credit reference must not be empty", nil)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.creditTx(ctx, tx, userID, amount, description, reference)
	})
	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	return err
}

// CreditTx adds amount to the user's balance inside a caller-owned
// transaction, creating the wallet on first use. One ledger row is appended
// per call.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, description string) error {
	return s.creditTx(ctx, tx, userID, amount, description, "")
}

func (s *Service) creditTx(ctx context.Context, tx *gorm.DB, userID string, amount int64, description, reference string) error {
	if amount <= 0 {
		return errutil.BadRequest("credit amount must be positive", nil)
	}

	locked := tx.Scopes(option.LockingUpdate)

	if reference != "" {
		existing, err := s.transactions.WithTrx(locked).FindOne(ctx, &Transaction{Reference: &reference})
		if err != nil {
			return err
		}
		if existing != nil {
			return errAlreadyApplied
		}
	}

	w, err := s.wallets.WithTrx(locked).FindOne(ctx, &Wallet{UserID: userID})
	if err != nil {
		return err
	}

	if w == nil {
		w = &Wallet{
			ID:        s.node.Generate().String(),
			UserID:    userID,
			Balance:   amount,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := s.wallets.WithTrx(tx).Create(ctx, w); err != nil {
			return err
		}
	} else {
		updates := map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		}
		if err := s.wallets.WithTrx(tx).Update(ctx, w.ID, &updates); err != nil {
			return err
		}
	}

	return s.appendEntry(ctx, tx, w, amount, Addition, description, reference)
}

// Debit subtracts amount from the user's balance, failing when the balance
// is insufficient.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, description string) error {
	if amount <= 0 {
		return errutil.BadRequest("debit amount must be positive", nil)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		locked := tx.Scopes(option.LockingUpdate)

		w, err := s.wallets.WithTrx(locked).FindOne(ctx, &Wallet{UserID: userID})
		if err != nil {
			return err
		}

		if w == nil || w.Balance < amount {
			return errutil.BadRequest("insufficient balance", nil)
		}

		updates := map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		}
		if err := s.wallets.WithTrx(tx).Update(ctx, w.ID, &updates); err != nil {
			return err
		}

		return s.appendEntry(ctx, tx, w, amount, Subtraction, description, "")
	})
}

// Balance returns the current balance, zero for users without a wallet yet.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	w, err := s.wallets.FindOne(ctx, &Wallet{UserID: userID})
	if err != nil {
		return 0, err
	}
	if w == nil {
		return 0, nil
	}
	return w.Balance, nil
}

// History lists ledger rows for a user, most recent first.
func (s *Service) History(ctx context.Context, userID string) ([]*Transaction, error) {
	return s.transactions.Find(ctx, &Transaction{UserID: userID}, option.WithSortBy(
		option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow: map[string]bool{
				"created_at": true,
			},
		},
	))
}

func (s *Service) appendEntry(ctx context.Context, tx *gorm.DB, w *Wallet, amount int64, txType TransactionType, description, reference string) error {
	entry := &Transaction{
		ID:          s.node.Generate().String(),
		WalletID:    w.ID,
		UserID:      w.UserID,
		Amount:      amount,
		Type:        txType,
		Description: description,
		CreatedAt:   time.Now(),
	}
	if reference != "" {
		entry.Reference = &reference
	}

	if err := s.transactions.WithTrx(tx).Create(ctx, entry); err != nil {
		// concurrent replay of the same reference
		if reference != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			return errAlreadyApplied
		}
		zap.L().Error("failed to append wallet transaction",
			zap.String("user_id", w.UserID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return err
	}

	return nil
}
