package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/enum"
	"github.com/donana/kitchen-api/internal/kitchen"
	"github.com/donana/kitchen-api/internal/matcher"
	"github.com/donana/kitchen-api/internal/parser"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Errors returned by the ledger service.
var (
	ErrEmptyPurchase   = errors.New("purchase records are required")
	ErrInvalidPurchase = errors.New("purchase quantity must be > 0 and unit price >= 0")
	ErrInvalidNote     = errors.New("purchase note has no readable lines")
)

// LedgerStore defines the DB methods the inventory ledger needs.
type LedgerStore interface {
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	ListIngredients(ctx context.Context) ([]database.Ingredient, error)
	ListIngredientsForUpdate(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
	ReceiveIngredient(ctx context.Context, arg database.ReceiveIngredientParams) (database.Ingredient, error)
	CreatePurchaseReceiptLine(ctx context.Context, arg database.CreatePurchaseReceiptLineParams) (database.PurchaseReceiptLine, error)
}

// NewLedgerStore creates a LedgerStore from a DBTX (pool or tx).
type NewLedgerStore func(db database.DBTX) LedgerStore

// stockConsumer is the part of a store that can take stock out for
// delivered orders. It only runs inside a caller's transaction.
type stockConsumer interface {
	ListRecipeLinesByDishes(ctx context.Context, dishIds []uuid.UUID) ([]database.RecipeLine, error)
	ListIngredientsForUpdate(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
	ConsumeIngredient(ctx context.Context, arg database.ConsumeIngredientParams) (database.Ingredient, error)
}

// PurchaseRecord is one line of a purchase document as recognized
// upstream. Unit is optional; when present and on a different mass scale
// than the ingredient, the quantity is converted.
type PurchaseRecord struct {
	Name      string
	Quantity  decimal.Decimal
	Unit      string
	UnitPrice decimal.Decimal
}

// ReceivedLine is a record that was applied to an ingredient.
type ReceivedLine struct {
	Record         PurchaseRecord
	IngredientID   uuid.UUID
	IngredientName string
	Amount         decimal.Decimal // in the ingredient's native unit
	NewQuantity    decimal.Decimal
}

// AmbiguousLine is a record whose name fits more than one ingredient.
type AmbiguousLine struct {
	Record     PurchaseRecord
	Candidates []string
}

// ReceiveResult reports what happened to every record of a purchase.
type ReceiveResult struct {
	Received  []ReceivedLine
	Ambiguous []AmbiguousLine
	Dropped   []PurchaseRecord
}

// NoteResult is a ReceiveResult plus the note lines that could not be read.
type NoteResult struct {
	ReceiveResult
	Warnings []string
}

// Consumption is stock taken out for a delivered order.
type Consumption struct {
	IngredientID uuid.UUID
	Name         string
	Unit         string
	Amount       decimal.Decimal
	Remaining    decimal.Decimal
}

// LedgerService tracks ingredient stock.
type LedgerService struct {
	pool     Pool
	newStore NewLedgerStore
	log      logrus.FieldLogger
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(pool Pool, newStore NewLedgerStore, log logrus.FieldLogger) *LedgerService {
	return &LedgerService{pool: pool, newStore: newStore, log: log}
}

// StockOf returns the quantity on hand of an ingredient in its native unit.
// The figure can be negative after deliveries that outran the stock.
func (s *LedgerService) StockOf(ctx context.Context, ingredientID uuid.UUID) (decimal.Decimal, error) {
	ing, err := s.newStore(s.pool).GetIngredient(ctx, ingredientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrIngredientNotFound
		}
		return decimal.Zero, fmt.Errorf("get ingredient: %w", err)
	}
	return numericToDecimal(ing.Quantity), nil
}

// ReceiveFromPurchase adds purchased quantities to matching ingredients and
// replaces their unit cost. Records that match no ingredient, or more than
// one, change no stock; they are kept in the receipt log and reported back.
// The whole purchase is applied in one transaction, and the matched
// ingredient rows are locked in id order before any is updated.
func (s *LedgerService) ReceiveFromPurchase(ctx context.Context, records []PurchaseRecord) (*ReceiveResult, error) {
	if len(records) == 0 {
		return nil, ErrEmptyPurchase
	}
	for i, r := range records {
		if !r.Quantity.IsPositive() || r.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("records[%d]: %w", i, ErrInvalidPurchase)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ingredients, err := store.ListIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	items := make([]matcher.Item, len(ingredients))
	units := make(map[uuid.UUID]kitchen.Unit, len(ingredients))
	for i, ing := range ingredients {
		items[i] = matcher.Item{ID: ing.ID, Name: ing.Name, Unit: ing.Unit}
		units[ing.ID] = kitchen.Unit(ing.Unit)
	}
	m := matcher.New(items)

	matches := make([]matcher.MatchResult, len(records))
	var matched []uuid.UUID
	for i, rec := range records {
		matches[i] = m.Match(rec.Name)
		if matches[i].Status == matcher.Matched {
			matched = append(matched, matches[i].Item.ID)
		}
	}
	if len(matched) > 0 {
		if _, err := store.ListIngredientsForUpdate(ctx, sortedIDs(matched)); err != nil {
			return nil, fmt.Errorf("lock ingredients: %w", err)
		}
	}

	result := &ReceiveResult{}
	for i, rec := range records {
		match := matches[i]
		line := database.CreatePurchaseReceiptLineParams{
			RawName:   rec.Name,
			Quantity:  quantityToNumeric(rec.Quantity),
			UnitPrice: quantityToNumeric(rec.UnitPrice),
		}
		if u := strings.TrimSpace(rec.Unit); u != "" {
			line.Unit = pgtype.Text{String: u, Valid: true}
		}

		switch match.Status {
		case matcher.Matched:
			native := units[match.Item.ID]
			converted := kitchen.ConvertPurchase(rec.Quantity, rec.Unit, native)
			cost := rec.UnitPrice
			if !converted.Equal(rec.Quantity) {
				cost = rec.UnitPrice.Mul(rec.Quantity).Div(converted)
			}
			amount := converted.Round(quantityScale)

			ing, err := store.ReceiveIngredient(ctx, database.ReceiveIngredientParams{
				ID:       match.Item.ID,
				Amount:   quantityToNumeric(amount),
				UnitCost: quantityToNumeric(cost),
			})
			if err != nil {
				return nil, fmt.Errorf("records[%d]: receive ingredient: %w", i, err)
			}

			line.IngredientID = pgtype.UUID{Bytes: ing.ID, Valid: true}
			line.MatchStatus = enum.MatchStatusMatched
			result.Received = append(result.Received, ReceivedLine{
				Record:         rec,
				IngredientID:   ing.ID,
				IngredientName: ing.Name,
				Amount:         amount,
				NewQuantity:    numericToDecimal(ing.Quantity),
			})

		case matcher.Ambiguous:
			names := make([]string, len(match.Candidates))
			for j, c := range match.Candidates {
				names[j] = c.Name
			}
			line.MatchStatus = enum.MatchStatusAmbiguous
			result.Ambiguous = append(result.Ambiguous, AmbiguousLine{Record: rec, Candidates: names})
			s.log.WithFields(logrus.Fields{"record": rec.Name, "candidates": names}).Warn("purchase record matches several ingredients, not applied")

		case matcher.Unmatched:
			line.MatchStatus = enum.MatchStatusUnmatched
			result.Dropped = append(result.Dropped, rec)
			s.log.WithField("record", rec.Name).Warn("purchase record matches no ingredient, dropped")
		}

		if _, err := store.CreatePurchaseReceiptLine(ctx, line); err != nil {
			return nil, fmt.Errorf("records[%d]: create receipt line: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"received":  len(result.Received),
		"ambiguous": len(result.Ambiguous),
		"dropped":   len(result.Dropped),
	}).Info("purchase received")
	return result, nil
}

// ReceiveFromNote reads a typed purchase note and receives its lines.
func (s *LedgerService) ReceiveFromNote(ctx context.Context, text string) (*NoteResult, error) {
	note, err := parser.ParseNote(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidNote, err)
	}

	records := make([]PurchaseRecord, len(note.Items))
	for i, item := range note.Items {
		records[i] = PurchaseRecord{
			Name:      item.Description,
			Quantity:  item.Qty,
			Unit:      item.Unit,
			UnitPrice: item.UnitPrice(),
		}
	}

	res, err := s.ReceiveFromPurchase(ctx, records)
	if err != nil {
		return nil, err
	}
	return &NoteResult{ReceiveResult: *res, Warnings: note.Warnings}, nil
}

// consumeForOrder takes the recipe quantities of items out of stock in the
// ingredients' native units. Ingredient rows are locked in id order first.
// Stock is allowed to go negative; the caller reads Remaining to find
// shortages.
func consumeForOrder(ctx context.Context, store stockConsumer, items []database.OrderItem) ([]Consumption, error) {
	if len(items) == 0 {
		return nil, nil
	}

	lines := make([]kitchen.OrderLine, len(items))
	dishIDs := make([]uuid.UUID, len(items))
	for i, it := range items {
		lines[i] = kitchen.OrderLine{DishID: it.DishID, Servings: it.Servings}
		dishIDs[i] = it.DishID
	}

	book, ingredientIDs, err := loadRecipeBook(ctx, store, sortedIDs(dishIDs))
	if err != nil {
		return nil, err
	}
	if len(ingredientIDs) == 0 {
		return nil, nil
	}

	ingredients, err := store.ListIngredientsForUpdate(ctx, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("lock ingredients: %w", err)
	}
	stock := stockMap(ingredients)

	out := make([]Consumption, 0, len(ingredients))
	for _, d := range kitchen.Consumption(lines, book, stock) {
		ing, err := store.ConsumeIngredient(ctx, database.ConsumeIngredientParams{
			ID:     d.IngredientID,
			Amount: quantityToNumeric(d.Amount),
		})
		if err != nil {
			return nil, fmt.Errorf("consume %s: %w", stock[d.IngredientID].Name, err)
		}
		out = append(out, Consumption{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			Amount:       d.Amount,
			Remaining:    numericToDecimal(ing.Quantity),
		})
	}
	return out, nil
}

type recipeLister interface {
	ListRecipeLinesByDishes(ctx context.Context, dishIds []uuid.UUID) ([]database.RecipeLine, error)
}

// loadRecipeBook reads the recipes of dishIDs and returns them indexed by
// dish, with the sorted ids of every ingredient they use.
func loadRecipeBook(ctx context.Context, store recipeLister, dishIDs []uuid.UUID) (kitchen.RecipeBook, []uuid.UUID, error) {
	rows, err := store.ListRecipeLinesByDishes(ctx, dishIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("list recipe lines: %w", err)
	}
	lines := make([]kitchen.RecipeLine, len(rows))
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		lines[i] = kitchen.RecipeLine{
			DishID:             r.DishID,
			IngredientID:       r.IngredientID,
			QuantityPerServing: numericToDecimal(r.QuantityPerServing),
		}
		ids[i] = r.IngredientID
	}
	return kitchen.NewRecipeBook(lines), sortedIDs(ids), nil
}

func stockMap(ingredients []database.Ingredient) map[uuid.UUID]kitchen.Stock {
	stock := make(map[uuid.UUID]kitchen.Stock, len(ingredients))
	for _, ing := range ingredients {
		stock[ing.ID] = kitchen.Stock{
			IngredientID: ing.ID,
			Name:         ing.Name,
			Unit:         kitchen.Unit(ing.Unit),
			Quantity:     numericToDecimal(ing.Quantity),
		}
	}
	return stock
}
