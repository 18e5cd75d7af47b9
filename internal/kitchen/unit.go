// Package kitchen holds the scheduling and stock rules of the kitchen:
// units of measure, the order status machine, the earliest delivery date
// search and the aggregation of ingredient demand. It has no I/O; the
// service layer feeds it rows and persists what it decides.
package kitchen

import (
	"errors"
	"strings"

	"github.com/donana/kitchen-api/internal/enum"
	"github.com/shopspring/decimal"
)

// Unit is the native unit of measure of an ingredient.
type Unit string

const (
	Kilogram Unit = enum.UnitKilogram
	Gram     Unit = enum.UnitGram
	Count    Unit = enum.UnitCount
)

var ErrInvalidUnit = errors.New("unit must be one of KG, G, UNIT")

var gramsPerKilogram = decimal.NewFromInt(1000)

// ParseUnit accepts the canonical names case-insensitively, plus a few
// spellings that show up on invoices.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kg", "kgs", "kilo", "kilogram":
		return Kilogram, nil
	case "g", "gr", "gram", "grams":
		return Gram, nil
	case "unit", "un", "und", "unidade", "pcs", "pc":
		return Count, nil
	}
	return "", ErrInvalidUnit
}

func (u Unit) Valid() bool {
	switch u {
	case Kilogram, Gram, Count:
		return true
	}
	return false
}

// ToNativeUnit converts a recipe quantity (grams, or counts for UNIT
// ingredients) into the ingredient's native unit. Only kilogram
// ingredients are scaled.
func ToNativeUnit(recipeQty decimal.Decimal, native Unit) decimal.Decimal {
	if native == Kilogram {
		return recipeQty.Div(gramsPerKilogram)
	}
	return recipeQty
}

// ConvertPurchase converts a purchased quantity expressed in unit from
// into the ingredient's native unit. An empty or unknown from unit, and
// any pairing other than gram/kilogram, is taken at face value.
func ConvertPurchase(qty decimal.Decimal, from string, native Unit) decimal.Decimal {
	if from == "" {
		return qty
	}
	u, err := ParseUnit(from)
	if err != nil {
		return qty
	}
	switch {
	case u == Gram && native == Kilogram:
		return qty.Div(gramsPerKilogram)
	case u == Kilogram && native == Gram:
		return qty.Mul(gramsPerKilogram)
	}
	return qty
}
