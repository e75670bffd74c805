package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single expense record from the store.
type Transaction struct {
	Date        time.Time
	Amount      decimal.Decimal
	ID          string
	Description string // Free-text description, often mixed-script
	Notes       string
	AccountID   string
	Hash        string
	CategoryID  int
	Active      bool
}

// GenerateHash creates a unique hash for duplicate detection on import.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.Description,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// CategoryChange records one applied recategorization.
type CategoryChange struct {
	ChangedAt      time.Time
	TransactionID  string
	FromCategoryID int
	ToCategoryID   int
}
