// Package product validates household inventory entries before they reach
// the store.
package product

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/shelf/internal/model"
)

const MaxNameLength = 100

var (
	ErrNameRequired = errors.New("name is required")
	ErrNameTooLong  = errors.New("name is too long")
	ErrInvalidValue = errors.New("amount must be greater than zero")
	ErrInvalidUnit  = errors.New("unit must be one of pcs, g, ml, kg, l")
)

var units = map[string]bool{
	"pcs": true,
	"g":   true,
	"ml":  true,
	"kg":  true,
	"l":   true,
}

// Input is a product as submitted by a client.
type Input struct {
	Name      string        `json:"name"`
	Tag       string        `json:"tag"`
	Amount    model.Amount  `json:"amount"`
	MinAmount *model.Amount `json:"min_amount"`
}

// Validate normalizes the input in place and reports the first problem.
func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(in.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	in.Tag = NormalizeTag(in.Tag, in.Name)

	if err := validateAmount(&in.Amount); err != nil {
		return err
	}
	if in.MinAmount != nil {
		if err := validateAmount(in.MinAmount); err != nil {
			return err
		}
	}
	return nil
}

func validateAmount(a *model.Amount) error {
	a.Unit = strings.ToLower(strings.TrimSpace(a.Unit))
	if !units[a.Unit] {
		return ErrInvalidUnit
	}
	if a.Value <= 0 {
		return ErrInvalidValue
	}
	return nil
}
