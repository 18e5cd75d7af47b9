package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ingredientColumns = `id, name, unit, quantity, unit_cost, created_at, updated_at`

func scanIngredient(row pgx.Row) (Ingredient, error) {
	var i Ingredient
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Unit,
		&i.Quantity,
		&i.UnitCost,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectIngredients(rows pgx.Rows, err error) ([]Ingredient, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Ingredient{}
	for rows.Next() {
		i, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listIngredients = `SELECT ` + ingredientColumns + ` FROM ingredients
ORDER BY name, id`

func (q *Queries) ListIngredients(ctx context.Context) ([]Ingredient, error) {
	return collectIngredients(q.db.Query(ctx, listIngredients))
}

const listIngredientsByIDs = `SELECT ` + ingredientColumns + ` FROM ingredients
WHERE id = ANY($1::uuid[])
ORDER BY id`

func (q *Queries) ListIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]Ingredient, error) {
	return collectIngredients(q.db.Query(ctx, listIngredientsByIDs, ids))
}

// Rows are locked in id order so concurrent deliveries never deadlock.
const listIngredientsForUpdate = `SELECT ` + ingredientColumns + ` FROM ingredients
WHERE id = ANY($1::uuid[])
ORDER BY id
FOR UPDATE`

func (q *Queries) ListIngredientsForUpdate(ctx context.Context, ids []uuid.UUID) ([]Ingredient, error) {
	return collectIngredients(q.db.Query(ctx, listIngredientsForUpdate, ids))
}

const getIngredient = `SELECT ` + ingredientColumns + ` FROM ingredients
WHERE id = $1`

func (q *Queries) GetIngredient(ctx context.Context, id uuid.UUID) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, getIngredient, id))
}

const createIngredient = `INSERT INTO ingredients (name, unit, quantity, unit_cost)
VALUES ($1, $2, $3, $4)
RETURNING ` + ingredientColumns

type CreateIngredientParams struct {
	Name     string         `json:"name"`
	Unit     string         `json:"unit"`
	Quantity pgtype.Numeric `json:"quantity"`
	UnitCost pgtype.Numeric `json:"unit_cost"`
}

func (q *Queries) CreateIngredient(ctx context.Context, arg CreateIngredientParams) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, createIngredient,
		arg.Name,
		arg.Unit,
		arg.Quantity,
		arg.UnitCost,
	))
}

const consumeIngredient = `UPDATE ingredients
SET quantity = quantity - $2, updated_at = now()
WHERE id = $1
RETURNING ` + ingredientColumns

type ConsumeIngredientParams struct {
	ID     uuid.UUID      `json:"id"`
	Amount pgtype.Numeric `json:"amount"`
}

func (q *Queries) ConsumeIngredient(ctx context.Context, arg ConsumeIngredientParams) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, consumeIngredient, arg.ID, arg.Amount))
}

const receiveIngredient = `UPDATE ingredients
SET quantity = quantity + $2, unit_cost = $3, updated_at = now()
WHERE id = $1
RETURNING ` + ingredientColumns

type ReceiveIngredientParams struct {
	ID       uuid.UUID      `json:"id"`
	Amount   pgtype.Numeric `json:"amount"`
	UnitCost pgtype.Numeric `json:"unit_cost"`
}

func (q *Queries) ReceiveIngredient(ctx context.Context, arg ReceiveIngredientParams) (Ingredient, error) {
	return scanIngredient(q.db.QueryRow(ctx, receiveIngredient, arg.ID, arg.Amount, arg.UnitCost))
}

const createPurchaseReceiptLine = `INSERT INTO purchase_receipt_lines (raw_name, quantity, unit, unit_price, ingredient_id, match_status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, received_at, raw_name, quantity, unit, unit_price, ingredient_id, match_status`

type CreatePurchaseReceiptLineParams struct {
	RawName      string         `json:"raw_name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Unit         pgtype.Text    `json:"unit"`
	UnitPrice    pgtype.Numeric `json:"unit_price"`
	IngredientID pgtype.UUID    `json:"ingredient_id"`
	MatchStatus  string         `json:"match_status"`
}

func (q *Queries) CreatePurchaseReceiptLine(ctx context.Context, arg CreatePurchaseReceiptLineParams) (PurchaseReceiptLine, error) {
	row := q.db.QueryRow(ctx, createPurchaseReceiptLine,
		arg.RawName,
		arg.Quantity,
		arg.Unit,
		arg.UnitPrice,
		arg.IngredientID,
		arg.MatchStatus,
	)
	var i PurchaseReceiptLine
	err := row.Scan(
		&i.ID,
		&i.ReceivedAt,
		&i.RawName,
		&i.Quantity,
		&i.Unit,
		&i.UnitPrice,
		&i.IngredientID,
		&i.MatchStatus,
	)
	return i, err
}
