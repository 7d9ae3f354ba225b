package wallet

import (
	"time"
)

// Wallet holds a user's coin balance. The balance column is only ever
// mutated through Credit/Debit so the transactions table stays the source
// of truth for its history.
type Wallet struct {
	ID        string    `gorm:"column:id;primaryKey;type:char(26)"`
	UserID    string    `gorm:"column:user_id;uniqueIndex;not null"`
	Balance   int64     `gorm:"column:balance;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

type TransactionType string

const (
	Addition    TransactionType = "addition"
	Subtraction TransactionType = "subtraction"
)

// Transaction is an append-only ledger row. Rows are never updated or
// deleted. Reference, when set, identifies the external event that produced
// the row; the unique index makes referenced credits replay-safe.
type Transaction struct {
	ID          string          `gorm:"column:id;primaryKey;type:char(26)"`
	WalletID    string          `gorm:"column:wallet_id;index;not null"`
	UserID      string          `gorm:"column:user_id;index;not null"`
	Amount      int64           `gorm:"column:amount;not null"`
	Type        TransactionType `gorm:"column:transaction_type;type:varchar(20);not null"`
	Description string          `gorm:"column:description;type:text"`
	Reference   *string         `gorm:"column:reference;uniqueIndex"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}
