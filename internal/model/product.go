package model

import "time"

type Amount struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type Product struct {
	ID          int64     `json:"id"`
	HouseholdID *int64    `json:"household_id"`
	Name        string    `json:"name"`
	Tag         string    `json:"tag"`
	Amount      Amount    `json:"amount"`
	MinAmount   *Amount   `json:"min_amount"`
	UpdatedBy   *int64    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LowStock reports whether the amount has fallen to the minimum. Amounts in
// different units are never compared.
func (p *Product) LowStock() bool {
	if p.MinAmount == nil || p.MinAmount.Unit != p.Amount.Unit {
		return false
	}
	return p.Amount.Value <= p.MinAmount.Value
}
