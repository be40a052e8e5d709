// Package model defines the domain types the fincast engine consumes and produces.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a credit line tracked by the engine. It is owned by the
// upstream account registry; the engine only reads it.
type Account struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	CreditLimit decimal.Decimal   `json:"credit_limit"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Limit returns the credit limit as a float for ratio math.
func (a Account) Limit() float64 {
	return a.CreditLimit.InexactFloat64()
}

// DisplayName prefers the human name and falls back to the ID.
func (a Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// SpendRecord is one realized charge against an account. Installment plans
// arrive already expanded to one record per charged month.
type SpendRecord struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Installment bool            `json:"installment,omitempty"`
	Shared      bool            `json:"shared,omitempty"`
}

// Snapshot is a consistent read of all engine inputs, taken once per cycle.
type Snapshot struct {
	Accounts []Account     `json:"accounts"`
	Records  []SpendRecord `json:"records"`
	TakenAt  time.Time     `json:"taken_at"`
}
