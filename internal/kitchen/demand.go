package kitchen

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine is one dish of an order with its serving count.
type OrderLine struct {
	DishID   uuid.UUID
	Servings int32
}

// RecipeLine is the quantity of one ingredient used per serving of a dish,
// in grams, or in counts for UNIT ingredients.
type RecipeLine struct {
	DishID             uuid.UUID
	IngredientID       uuid.UUID
	QuantityPerServing decimal.Decimal
}

// Stock is an ingredient as the ledger currently holds it.
type Stock struct {
	IngredientID uuid.UUID
	Name         string
	Unit         Unit
	Quantity     decimal.Decimal
}

// Deduction is an amount to take off one ingredient, in its native unit.
type Deduction struct {
	IngredientID uuid.UUID
	Amount       decimal.Decimal
}

// ShoppingLine is one ingredient of a purchase list.
type ShoppingLine struct {
	IngredientID uuid.UUID
	Name         string
	Unit         Unit
	Required     decimal.Decimal
	InStock      decimal.Decimal
	ToPurchase   decimal.Decimal
}

// RecipeBook indexes recipe lines by dish.
type RecipeBook map[uuid.UUID][]RecipeLine

func NewRecipeBook(lines []RecipeLine) RecipeBook {
	book := make(RecipeBook)
	for _, l := range lines {
		book[l.DishID] = append(book[l.DishID], l)
	}
	return book
}

// requirements sums recipe quantities per ingredient, still in recipe units.
func requirements(lines []OrderLine, book RecipeBook) map[uuid.UUID]decimal.Decimal {
	need := make(map[uuid.UUID]decimal.Decimal)
	for _, line := range lines {
		servings := decimal.NewFromInt32(line.Servings)
		for _, r := range book[line.DishID] {
			need[r.IngredientID] = need[r.IngredientID].Add(r.QuantityPerServing.Mul(servings))
		}
	}
	return need
}

// Consumption returns the stock to deduct for lines, one entry per
// ingredient in native units, ordered by ingredient ID. Recipe lines whose
// ingredient is missing from stock are skipped.
func Consumption(lines []OrderLine, book RecipeBook, stock map[uuid.UUID]Stock) []Deduction {
	need := requirements(lines, book)

	out := make([]Deduction, 0, len(need))
	for id, qty := range need {
		s, ok := stock[id]
		if !ok || qty.IsZero() {
			continue
		}
		out = append(out, Deduction{IngredientID: id, Amount: ToNativeUnit(qty, s.Unit)})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IngredientID.String() < out[j].IngredientID.String()
	})
	return out
}

// Project nets the demand of lines against stock. Ingredients with no
// demand are left out; the rest are ordered by name.
func Project(lines []OrderLine, book RecipeBook, stock map[uuid.UUID]Stock) []ShoppingLine {
	need := requirements(lines, book)

	out := make([]ShoppingLine, 0, len(need))
	for id, qty := range need {
		s, ok := stock[id]
		if !ok {
			continue
		}
		required := ToNativeUnit(qty, s.Unit)
		if !required.IsPositive() {
			continue
		}
		toBuy := required.Sub(s.Quantity)
		if toBuy.IsNegative() {
			toBuy = decimal.Zero
		}
		out = append(out, ShoppingLine{
			IngredientID: id,
			Name:         s.Name,
			Unit:         s.Unit,
			Required:     required,
			InStock:      s.Quantity,
			ToPurchase:   toBuy,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].IngredientID.String() < out[j].IngredientID.String()
	})
	return out
}
