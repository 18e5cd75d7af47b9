package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/kitchen"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Errors returned by the catalog service.
var (
	ErrDishNotFound        = errors.New("dish not found")
	ErrIngredientNotFound  = errors.New("ingredient not found")
	ErrNameRequired        = errors.New("name is required")
	ErrDuplicateName       = errors.New("name already exists")
	ErrInvalidUnit         = kitchen.ErrInvalidUnit
	ErrInvalidQuantity     = errors.New("quantity must be a non-negative number with at most 6 decimals")
	ErrInvalidPrice        = errors.New("price must be a non-negative number")
	ErrInvalidIngredientID = errors.New("invalid ingredient_id")
	ErrInvalidRecipeQty    = errors.New("quantity_per_serving must be > 0 with at most 3 decimals")
	ErrDuplicateIngredient = errors.New("ingredient listed twice in recipe")
)

// CatalogStore defines the DB methods the catalog needs.
// Satisfied by *database.Queries (and its WithTx variant).
type CatalogStore interface {
	ListActiveDishes(ctx context.Context) ([]database.Dish, error)
	ListDishes(ctx context.Context) ([]database.Dish, error)
	GetDish(ctx context.Context, id uuid.UUID) (database.Dish, error)
	CreateDish(ctx context.Context, arg database.CreateDishParams) (database.Dish, error)
	SetDishActive(ctx context.Context, arg database.SetDishActiveParams) (database.Dish, error)
	ListRecipeLinesByDish(ctx context.Context, dishID uuid.UUID) ([]database.RecipeLine, error)
	CreateRecipeLine(ctx context.Context, arg database.CreateRecipeLineParams) (database.RecipeLine, error)
	ListIngredients(ctx context.Context) ([]database.Ingredient, error)
	ListIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
	GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error)
	CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error)
}

// NewCatalogStore creates a CatalogStore from a DBTX (pool or tx).
type NewCatalogStore func(db database.DBTX) CatalogStore

// recipeScale is the number of decimals of a recipe quantity: a milligram,
// which converts to kilograms within quantityScale.
const recipeScale = 3

// CreateIngredientRequest is the input for registering an ingredient.
// Numbers arrive as strings and are parsed as decimals.
type CreateIngredientRequest struct {
	Name     string
	Unit     string
	Quantity string
	UnitCost string
}

// CreateDishRequest is the input for adding a dish with its recipe.
type CreateDishRequest struct {
	Name        string
	Description string
	Price       string
	PhotoURL    string
	Recipe      []RecipeInput
}

// RecipeInput is one recipe line: grams per serving, or units for UNIT
// ingredients.
type RecipeInput struct {
	IngredientID       string
	QuantityPerServing string
}

// DishResult is a created dish with its recipe.
type DishResult struct {
	Dish   database.Dish
	Recipe []database.RecipeLine
}

// RecipeEntry is a recipe line joined with its ingredient.
type RecipeEntry struct {
	IngredientID       uuid.UUID
	IngredientName     string
	Unit               string
	QuantityPerServing decimal.Decimal
}

// CatalogService serves dishes, recipes and ingredient registration.
type CatalogService struct {
	pool     Pool
	newStore NewCatalogStore
	log      logrus.FieldLogger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(pool Pool, newStore NewCatalogStore, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{pool: pool, newStore: newStore, log: log}
}

// ListActiveDishes returns the dishes customers can order, by name.
func (s *CatalogService) ListActiveDishes(ctx context.Context) ([]database.Dish, error) {
	dishes, err := s.newStore(s.pool).ListActiveDishes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active dishes: %w", err)
	}
	return dishes, nil
}

// ListDishes returns every dish, active or not.
func (s *CatalogService) ListDishes(ctx context.Context) ([]database.Dish, error) {
	dishes, err := s.newStore(s.pool).ListDishes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	return dishes, nil
}

// RecipeFor returns the recipe of a dish. An unknown dish has an empty
// recipe.
func (s *CatalogService) RecipeFor(ctx context.Context, dishID uuid.UUID) ([]RecipeEntry, error) {
	store := s.newStore(s.pool)

	lines, err := store.ListRecipeLinesByDish(ctx, dishID)
	if err != nil {
		return nil, fmt.Errorf("list recipe lines: %w", err)
	}
	if len(lines) == 0 {
		return []RecipeEntry{}, nil
	}

	ids := make([]uuid.UUID, len(lines))
	for i, l := range lines {
		ids[i] = l.IngredientID
	}
	ingredients, err := store.ListIngredientsByIDs(ctx, sortedIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	byID := make(map[uuid.UUID]database.Ingredient, len(ingredients))
	for _, ing := range ingredients {
		byID[ing.ID] = ing
	}

	entries := make([]RecipeEntry, 0, len(lines))
	for _, l := range lines {
		ing := byID[l.IngredientID]
		entries = append(entries, RecipeEntry{
			IngredientID:       l.IngredientID,
			IngredientName:     ing.Name,
			Unit:               ing.Unit,
			QuantityPerServing: numericToDecimal(l.QuantityPerServing),
		})
	}
	return entries, nil
}

// ListIngredients returns every ingredient with its stock, by name.
func (s *CatalogService) ListIngredients(ctx context.Context) ([]database.Ingredient, error) {
	ingredients, err := s.newStore(s.pool).ListIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return ingredients, nil
}

// CreateIngredient registers an ingredient with its opening stock.
func (s *CatalogService) CreateIngredient(ctx context.Context, req CreateIngredientRequest) (database.Ingredient, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return database.Ingredient{}, ErrNameRequired
	}
	unit, err := kitchen.ParseUnit(req.Unit)
	if err != nil {
		return database.Ingredient{}, ErrInvalidUnit
	}
	qty, err := parseNonNegative(req.Quantity)
	if err != nil || !fitsScale(qty, quantityScale) {
		return database.Ingredient{}, ErrInvalidQuantity
	}
	cost, err := parseNonNegative(req.UnitCost)
	if err != nil || !fitsScale(cost, quantityScale) {
		return database.Ingredient{}, ErrInvalidPrice
	}

	ing, err := s.newStore(s.pool).CreateIngredient(ctx, database.CreateIngredientParams{
		Name:     name,
		Unit:     string(unit),
		Quantity: quantityToNumeric(qty),
		UnitCost: quantityToNumeric(cost),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return database.Ingredient{}, ErrDuplicateName
		}
		return database.Ingredient{}, fmt.Errorf("create ingredient: %w", err)
	}

	s.log.WithFields(logrus.Fields{"ingredient_id": ing.ID, "name": ing.Name}).Info("ingredient created")
	return ing, nil
}

// CreateDish inserts a dish and its recipe atomically. Every recipe line
// must reference an existing ingredient.
func (s *CatalogService) CreateDish(ctx context.Context, req CreateDishRequest) (*DishResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	price, err := parseNonNegative(req.Price)
	if err != nil || strings.TrimSpace(req.Price) == "" {
		return nil, ErrInvalidPrice
	}

	type recipeParam struct {
		ingredientID uuid.UUID
		qty          decimal.Decimal
	}
	recipe := make([]recipeParam, 0, len(req.Recipe))
	seen := make(map[uuid.UUID]bool, len(req.Recipe))
	for i, r := range req.Recipe {
		id, err := uuid.Parse(r.IngredientID)
		if err != nil {
			return nil, fmt.Errorf("recipe[%d]: %w", i, ErrInvalidIngredientID)
		}
		if seen[id] {
			return nil, fmt.Errorf("recipe[%d]: %w", i, ErrDuplicateIngredient)
		}
		seen[id] = true
		qty, err := decimal.NewFromString(strings.TrimSpace(r.QuantityPerServing))
		if err != nil || !qty.IsPositive() || !fitsScale(qty, recipeScale) {
			return nil, fmt.Errorf("recipe[%d]: %w", i, ErrInvalidRecipeQty)
		}
		recipe = append(recipe, recipeParam{ingredientID: id, qty: qty})
	}

	photo := pgtype.Text{}
	if url := strings.TrimSpace(req.PhotoURL); url != "" {
		photo = pgtype.Text{String: url, Valid: true}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	for i, r := range recipe {
		if _, err := store.GetIngredient(ctx, r.ingredientID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("recipe[%d]: %w", i, ErrIngredientNotFound)
			}
			return nil, fmt.Errorf("recipe[%d]: get ingredient: %w", i, err)
		}
	}

	dish, err := store.CreateDish(ctx, database.CreateDishParams{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Price:       decimalToNumeric(price),
		PhotoUrl:    photo,
		Active:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create dish: %w", err)
	}

	lines := make([]database.RecipeLine, 0, len(recipe))
	for _, r := range recipe {
		line, err := store.CreateRecipeLine(ctx, database.CreateRecipeLineParams{
			DishID:             dish.ID,
			IngredientID:       r.ingredientID,
			QuantityPerServing: quantityToNumeric(r.qty),
		})
		if err != nil {
			return nil, fmt.Errorf("create recipe line: %w", err)
		}
		lines = append(lines, line)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.WithFields(logrus.Fields{"dish_id": dish.ID, "name": dish.Name, "recipe_lines": len(lines)}).Info("dish created")
	return &DishResult{Dish: dish, Recipe: lines}, nil
}

// SetDishActive shows or hides a dish from the menu. Existing orders keep
// their frozen prices either way.
func (s *CatalogService) SetDishActive(ctx context.Context, id uuid.UUID, active bool) (database.Dish, error) {
	dish, err := s.newStore(s.pool).SetDishActive(ctx, database.SetDishActiveParams{ID: id, Active: active})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Dish{}, ErrDishNotFound
		}
		return database.Dish{}, fmt.Errorf("set dish active: %w", err)
	}
	return dish, nil
}

func parseNonNegative(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative value %s", s)
	}
	return d, nil
}

// isUniqueViolation checks for a unique constraint violation (pgconn
// error code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
