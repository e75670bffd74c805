package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/khata/internal/model"
)

// CategoryName is a category seeded by SetupTestDB.
type CategoryName string

func (c CategoryName) String() string {
	return string(c)
}

// Category names matching the default rule catalog.
const (
	CategoryUtilities     CategoryName = "Utilities"
	CategorySalaries      CategoryName = "Salaries"
	CategoryRent          CategoryName = "Rent"
	CategoryFuel          CategoryName = "Fuel & Transport"
	CategoryFood          CategoryName = "Food & Refreshments"
	CategoryOffice        CategoryName = "Office Supplies"
	CategoryMaintenance   CategoryName = "Maintenance & Repairs"
	CategoryMedical       CategoryName = "Medical"
	CategoryCommunication CategoryName = "Communication"
	CategoryBankCharges   CategoryName = "Bank Charges"
	CategoryMiscellaneous CategoryName = "Miscellaneous"
)

// StandardCategories is the default seed: every catalog category plus the
// fallback.
var StandardCategories = []CategoryName{
	CategoryUtilities,
	CategorySalaries,
	CategoryRent,
	CategoryFuel,
	CategoryFood,
	CategoryOffice,
	CategoryMaintenance,
	CategoryMedical,
	CategoryCommunication,
	CategoryBankCharges,
	CategoryMiscellaneous,
}

// BaseDate is the date fixtures count back from.
var BaseDate = time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC)

// TransactionBuilder builds transaction fixtures.
type TransactionBuilder struct {
	txn model.Transaction
}

// NewTransaction starts a fixture with an amount of 1000 dated BaseDate.
func NewTransaction(id, description string) *TransactionBuilder {
	return &TransactionBuilder{txn: model.Transaction{
		ID:          id,
		Description: description,
		Amount:      decimal.NewFromInt(1000),
		Date:        BaseDate,
		AccountID:   "cash",
		Active:      true,
	}}
}

// WithAmount sets the amount from a string such as "4500.00".
func (b *TransactionBuilder) WithAmount(amount string) *TransactionBuilder {
	b.txn.Amount = decimal.RequireFromString(amount)
	return b
}

// WithNotes sets free-text notes.
func (b *TransactionBuilder) WithNotes(notes string) *TransactionBuilder {
	b.txn.Notes = notes
	return b
}

// WithCategory sets the current category id.
func (b *TransactionBuilder) WithCategory(id int) *TransactionBuilder {
	b.txn.CategoryID = id
	return b
}

// DaysAgo dates the transaction n days before BaseDate.
func (b *TransactionBuilder) DaysAgo(n int) *TransactionBuilder {
	b.txn.Date = BaseDate.AddDate(0, 0, -n)
	return b
}

// Inactive marks the transaction deleted.
func (b *TransactionBuilder) Inactive() *TransactionBuilder {
	b.txn.Active = false
	return b
}

// Build returns the transaction. The hash is keyed on the id so fixtures
// with identical content are still stored separately.
func (b *TransactionBuilder) Build() model.Transaction {
	txn := b.txn
	txn.Hash = txn.ID + ":" + txn.GenerateHash()
	return txn
}
