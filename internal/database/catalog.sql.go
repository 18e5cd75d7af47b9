package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const dishColumns = `id, name, description, price, photo_url, active, created_at`

func scanDish(row pgx.Row) (Dish, error) {
	var i Dish
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.PhotoUrl,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

func collectDishes(rows pgx.Rows, err error) ([]Dish, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Dish{}
	for rows.Next() {
		i, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listActiveDishes = `SELECT ` + dishColumns + ` FROM dishes
WHERE active = TRUE
ORDER BY name, id`

func (q *Queries) ListActiveDishes(ctx context.Context) ([]Dish, error) {
	return collectDishes(q.db.Query(ctx, listActiveDishes))
}

const listDishes = `SELECT ` + dishColumns + ` FROM dishes
ORDER BY name, id`

func (q *Queries) ListDishes(ctx context.Context) ([]Dish, error) {
	return collectDishes(q.db.Query(ctx, listDishes))
}

const getDish = `SELECT ` + dishColumns + ` FROM dishes
WHERE id = $1`

func (q *Queries) GetDish(ctx context.Context, id uuid.UUID) (Dish, error) {
	return scanDish(q.db.QueryRow(ctx, getDish, id))
}

const createDish = `INSERT INTO dishes (name, description, price, photo_url, active)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + dishColumns

type CreateDishParams struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	PhotoUrl    pgtype.Text    `json:"photo_url"`
	Active      bool           `json:"active"`
}

func (q *Queries) CreateDish(ctx context.Context, arg CreateDishParams) (Dish, error) {
	return scanDish(q.db.QueryRow(ctx, createDish,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.PhotoUrl,
		arg.Active,
	))
}

const setDishActive = `UPDATE dishes SET active = $2
WHERE id = $1
RETURNING ` + dishColumns

type SetDishActiveParams struct {
	ID     uuid.UUID `json:"id"`
	Active bool      `json:"active"`
}

func (q *Queries) SetDishActive(ctx context.Context, arg SetDishActiveParams) (Dish, error) {
	return scanDish(q.db.QueryRow(ctx, setDishActive, arg.ID, arg.Active))
}

// --- Recipes ---

func collectRecipeLines(rows pgx.Rows, err error) ([]RecipeLine, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []RecipeLine{}
	for rows.Next() {
		var i RecipeLine
		if err := rows.Scan(&i.DishID, &i.IngredientID, &i.QuantityPerServing); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listRecipeLinesByDish = `SELECT dish_id, ingredient_id, quantity_per_serving FROM recipe_lines
WHERE dish_id = $1
ORDER BY ingredient_id`

func (q *Queries) ListRecipeLinesByDish(ctx context.Context, dishID uuid.UUID) ([]RecipeLine, error) {
	return collectRecipeLines(q.db.Query(ctx, listRecipeLinesByDish, dishID))
}

const listRecipeLinesByDishes = `SELECT dish_id, ingredient_id, quantity_per_serving FROM recipe_lines
WHERE dish_id = ANY($1::uuid[])
ORDER BY dish_id, ingredient_id`

func (q *Queries) ListRecipeLinesByDishes(ctx context.Context, dishIds []uuid.UUID) ([]RecipeLine, error) {
	return collectRecipeLines(q.db.Query(ctx, listRecipeLinesByDishes, dishIds))
}

const createRecipeLine = `INSERT INTO recipe_lines (dish_id, ingredient_id, quantity_per_serving)
VALUES ($1, $2, $3)
RETURNING dish_id, ingredient_id, quantity_per_serving`

type CreateRecipeLineParams struct {
	DishID             uuid.UUID      `json:"dish_id"`
	IngredientID       uuid.UUID      `json:"ingredient_id"`
	QuantityPerServing pgtype.Numeric `json:"quantity_per_serving"`
}

func (q *Queries) CreateRecipeLine(ctx context.Context, arg CreateRecipeLineParams) (RecipeLine, error) {
	row := q.db.QueryRow(ctx, createRecipeLine, arg.DishID, arg.IngredientID, arg.QuantityPerServing)
	var i RecipeLine
	err := row.Scan(&i.DishID, &i.IngredientID, &i.QuantityPerServing)
	return i, err
}
