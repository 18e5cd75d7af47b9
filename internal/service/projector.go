package service

import (
	"context"
	"fmt"
	"time"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/kitchen"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"
)

// ProjectorStore defines the DB methods the demand projector needs.
type ProjectorStore interface {
	ListScheduledItemsForDate(ctx context.Context, day pgtype.Date) ([]database.ListScheduledItemsForDateRow, error)
	ListRecipeLinesByDishes(ctx context.Context, dishIds []uuid.UUID) ([]database.RecipeLine, error)
	ListIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error)
}

// NewProjectorStore creates a ProjectorStore from a DBTX (pool or tx).
type NewProjectorStore func(db database.DBTX) ProjectorStore

// ProjectorService turns scheduled orders into shopping lists.
type ProjectorService struct {
	pool     Pool
	newStore NewProjectorStore
	log      logrus.FieldLogger
}

// NewProjectorService creates a new ProjectorService.
func NewProjectorService(pool Pool, newStore NewProjectorStore, log logrus.FieldLogger) *ProjectorService {
	return &ProjectorService{pool: pool, newStore: newStore, log: log}
}

// ShoppingListFor returns what must be bought to cook every scheduled order
// of date: per ingredient the required quantity, the stock on hand and the
// shortfall, in native units, sorted by ingredient name. Orders and stock
// are read from one snapshot. Nothing is written.
func (s *ProjectorService) ShoppingListFor(ctx context.Context, date time.Time) ([]kitchen.ShoppingLine, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	rows, err := store.ListScheduledItemsForDate(ctx, dateToPg(date))
	if err != nil {
		return nil, fmt.Errorf("list scheduled items: %w", err)
	}
	if len(rows) == 0 {
		return []kitchen.ShoppingLine{}, nil
	}

	lines := make([]kitchen.OrderLine, len(rows))
	dishIDs := make([]uuid.UUID, len(rows))
	orders := make(map[uuid.UUID]struct{})
	for i, r := range rows {
		lines[i] = kitchen.OrderLine{DishID: r.DishID, Servings: r.Servings}
		dishIDs[i] = r.DishID
		orders[r.OrderID] = struct{}{}
	}

	book, ingredientIDs, err := loadRecipeBook(ctx, store, sortedIDs(dishIDs))
	if err != nil {
		return nil, err
	}
	ingredients, err := store.ListIngredientsByIDs(ctx, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	list := kitchen.Project(lines, book, stockMap(ingredients))

	s.log.WithFields(logrus.Fields{
		"delivery_date": civilDay(date).Format(time.DateOnly),
		"orders":        len(orders),
		"ingredients":   len(list),
	}).Debug("shopping list projected")
	return list, nil
}
