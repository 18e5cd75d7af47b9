package service

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// --- In-memory database ---
//
// memDB stands in for the pgx pool. A transaction holds the database mutex
// from Begin until Commit or Rollback and restores a snapshot on rollback,
// so services see the same isolation and atomicity they get from
// PostgreSQL row and advisory locks. Statements run through the pool
// outside a transaction take the mutex per call.

type memState struct {
	ingredients map[uuid.UUID]database.Ingredient
	dishes      map[uuid.UUID]database.Dish
	recipes     []database.RecipeLine
	orders      map[uuid.UUID]database.Order
	items       []database.OrderItem
	receipts    []database.PurchaseReceiptLine
	seq         int64
}

func newMemState() *memState {
	return &memState{
		ingredients: map[uuid.UUID]database.Ingredient{},
		dishes:      map[uuid.UUID]database.Dish{},
		orders:      map[uuid.UUID]database.Order{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		ingredients: maps.Clone(s.ingredients),
		dishes:      maps.Clone(s.dishes),
		recipes:     slices.Clone(s.recipes),
		orders:      maps.Clone(s.orders),
		items:       slices.Clone(s.items),
		receipts:    slices.Clone(s.receipts),
		seq:         s.seq,
	}
}

func (s *memState) tick() time.Time {
	s.seq++
	return time.Unix(1_700_000_000+s.seq, 0).UTC()
}

type memDB struct {
	mu         sync.Mutex
	state      *memState
	failOn     map[string]error
	locked     [][]time.Time // advisory-locked days, per finished transaction
	lockedRows [][]uuid.UUID // ingredient ids per ListIngredientsForUpdate
	txOpts     []pgx.TxOptions
	calls      []string // store methods in call order
	commits    int
	rollbacks  int
}

func newMemDB() *memDB {
	return &memDB{state: newMemState(), failOn: map[string]error{}}
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.BeginTx(ctx, pgx.TxOptions{})
}

func (db *memDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	db.mu.Lock()
	if err := db.failOn["Begin"]; err != nil {
		db.mu.Unlock()
		return nil, err
	}
	db.txOpts = append(db.txOpts, opts)
	return &memTx{db: db, snapshot: db.state.clone()}, nil
}

func (db *memDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (db *memDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (db *memDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("not implemented")
}

// snapshot returns a copy of the committed state.
func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

func (db *memDB) storeFor(x database.DBTX) *memStore {
	if tx, ok := x.(*memTx); ok {
		return &memStore{db: db, tx: tx}
	}
	return &memStore{db: db}
}

// memTx implements pgx.Tx. The unused methods panic so we catch accidental calls.
type memTx struct {
	db       *memDB
	snapshot *memState
	locks    []time.Time
	done     bool
}

func (t *memTx) finish(restore bool) {
	if restore {
		t.db.state = t.snapshot
		t.db.rollbacks++
	} else {
		t.db.commits++
	}
	t.db.locked = append(t.db.locked, t.locks)
	t.done = true
	t.db.mu.Unlock()
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if err := t.db.failOn["Commit"]; err != nil {
		t.finish(true)
		return err
	}
	t.finish(false)
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.finish(true)
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (t *memTx) Conn() *pgx.Conn { panic("not implemented") }

// memStore implements every service store interface over memDB.
type memStore struct {
	db *memDB
	tx *memTx
}

func (m *memStore) do(name string, fn func(st *memState) error) error {
	if m.tx == nil {
		m.db.mu.Lock()
		defer m.db.mu.Unlock()
	} else if m.tx.done {
		return pgx.ErrTxClosed
	}
	m.db.calls = append(m.db.calls, name)
	if err := m.db.failOn[name]; err != nil {
		return err
	}
	return fn(m.db.state)
}

func sameDay(a, b pgtype.Date) bool {
	return a.Valid && b.Valid && a.Time.Equal(b.Time)
}

func idSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Dishes

func sortDishes(d []database.Dish) {
	sort.Slice(d, func(i, j int) bool {
		if d[i].Name != d[j].Name {
			return d[i].Name < d[j].Name
		}
		return d[i].ID.String() < d[j].ID.String()
	})
}

func (m *memStore) ListActiveDishes(ctx context.Context) ([]database.Dish, error) {
	out := []database.Dish{}
	err := m.do("ListActiveDishes", func(st *memState) error {
		for _, d := range st.dishes {
			if d.Active {
				out = append(out, d)
			}
		}
		sortDishes(out)
		return nil
	})
	return out, err
}

func (m *memStore) ListDishes(ctx context.Context) ([]database.Dish, error) {
	out := []database.Dish{}
	err := m.do("ListDishes", func(st *memState) error {
		for _, d := range st.dishes {
			out = append(out, d)
		}
		sortDishes(out)
		return nil
	})
	return out, err
}

func (m *memStore) GetDish(ctx context.Context, id uuid.UUID) (database.Dish, error) {
	var out database.Dish
	err := m.do("GetDish", func(st *memState) error {
		d, ok := st.dishes[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = d
		return nil
	})
	return out, err
}

func (m *memStore) CreateDish(ctx context.Context, arg database.CreateDishParams) (database.Dish, error) {
	var out database.Dish
	err := m.do("CreateDish", func(st *memState) error {
		out = database.Dish{
			ID:          uuid.New(),
			Name:        arg.Name,
			Description: arg.Description,
			Price:       arg.Price,
			PhotoUrl:    arg.PhotoUrl,
			Active:      arg.Active,
			CreatedAt:   st.tick(),
		}
		st.dishes[out.ID] = out
		return nil
	})
	return out, err
}

func (m *memStore) SetDishActive(ctx context.Context, arg database.SetDishActiveParams) (database.Dish, error) {
	var out database.Dish
	err := m.do("SetDishActive", func(st *memState) error {
		d, ok := st.dishes[arg.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		d.Active = arg.Active
		st.dishes[d.ID] = d
		out = d
		return nil
	})
	return out, err
}

// Recipes

func (m *memStore) ListRecipeLinesByDish(ctx context.Context, dishID uuid.UUID) ([]database.RecipeLine, error) {
	return m.ListRecipeLinesByDishes(ctx, []uuid.UUID{dishID})
}

func (m *memStore) ListRecipeLinesByDishes(ctx context.Context, dishIds []uuid.UUID) ([]database.RecipeLine, error) {
	out := []database.RecipeLine{}
	want := idSet(dishIds)
	err := m.do("ListRecipeLinesByDishes", func(st *memState) error {
		for _, r := range st.recipes {
			if want[r.DishID] {
				out = append(out, r)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].DishID != out[j].DishID {
				return out[i].DishID.String() < out[j].DishID.String()
			}
			return out[i].IngredientID.String() < out[j].IngredientID.String()
		})
		return nil
	})
	return out, err
}

func (m *memStore) CreateRecipeLine(ctx context.Context, arg database.CreateRecipeLineParams) (database.RecipeLine, error) {
	line := database.RecipeLine{
		DishID:             arg.DishID,
		IngredientID:       arg.IngredientID,
		QuantityPerServing: arg.QuantityPerServing,
	}
	err := m.do("CreateRecipeLine", func(st *memState) error {
		for _, r := range st.recipes {
			if r.DishID == arg.DishID && r.IngredientID == arg.IngredientID {
				return &pgconn.PgError{Code: "23505"}
			}
		}
		st.recipes = append(st.recipes, line)
		return nil
	})
	return line, err
}

// Ingredients

func sortIngredientsByID(in []database.Ingredient) {
	sort.Slice(in, func(i, j int) bool { return in[i].ID.String() < in[j].ID.String() })
}

func (m *memStore) ListIngredients(ctx context.Context) ([]database.Ingredient, error) {
	out := []database.Ingredient{}
	err := m.do("ListIngredients", func(st *memState) error {
		for _, ing := range st.ingredients {
			out = append(out, ing)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Name != out[j].Name {
				return out[i].Name < out[j].Name
			}
			return out[i].ID.String() < out[j].ID.String()
		})
		return nil
	})
	return out, err
}

func (m *memStore) listByIDs(name string, ids []uuid.UUID) ([]database.Ingredient, error) {
	out := []database.Ingredient{}
	want := idSet(ids)
	err := m.do(name, func(st *memState) error {
		for _, ing := range st.ingredients {
			if want[ing.ID] {
				out = append(out, ing)
			}
		}
		sortIngredientsByID(out)
		return nil
	})
	return out, err
}

func (m *memStore) ListIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error) {
	return m.listByIDs("ListIngredientsByIDs", ids)
}

func (m *memStore) ListIngredientsForUpdate(ctx context.Context, ids []uuid.UUID) ([]database.Ingredient, error) {
	if m.tx == nil {
		return nil, errors.New("FOR UPDATE outside transaction")
	}
	m.db.lockedRows = append(m.db.lockedRows, slices.Clone(ids))
	return m.listByIDs("ListIngredientsForUpdate", ids)
}

func (m *memStore) GetIngredient(ctx context.Context, id uuid.UUID) (database.Ingredient, error) {
	var out database.Ingredient
	err := m.do("GetIngredient", func(st *memState) error {
		ing, ok := st.ingredients[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = ing
		return nil
	})
	return out, err
}

func (m *memStore) CreateIngredient(ctx context.Context, arg database.CreateIngredientParams) (database.Ingredient, error) {
	var out database.Ingredient
	err := m.do("CreateIngredient", func(st *memState) error {
		for _, ing := range st.ingredients {
			if ing.Name == arg.Name {
				return &pgconn.PgError{Code: "23505", ConstraintName: "ingredients_name_key"}
			}
		}
		now := st.tick()
		out = database.Ingredient{
			ID:        uuid.New(),
			Name:      arg.Name,
			Unit:      arg.Unit,
			Quantity:  arg.Quantity,
			UnitCost:  arg.UnitCost,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.ingredients[out.ID] = out
		return nil
	})
	return out, err
}

func (m *memStore) ConsumeIngredient(ctx context.Context, arg database.ConsumeIngredientParams) (database.Ingredient, error) {
	var out database.Ingredient
	err := m.do("ConsumeIngredient", func(st *memState) error {
		ing, ok := st.ingredients[arg.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		qty := numericToDecimal(ing.Quantity).Sub(numericToDecimal(arg.Amount))
		ing.Quantity = quantityToNumeric(qty)
		ing.UpdatedAt = st.tick()
		st.ingredients[ing.ID] = ing
		out = ing
		return nil
	})
	return out, err
}

func (m *memStore) ReceiveIngredient(ctx context.Context, arg database.ReceiveIngredientParams) (database.Ingredient, error) {
	var out database.Ingredient
	err := m.do("ReceiveIngredient", func(st *memState) error {
		ing, ok := st.ingredients[arg.ID]
		if !ok {
			return pgx.ErrNoRows
		}
		qty := numericToDecimal(ing.Quantity).Add(numericToDecimal(arg.Amount))
		ing.Quantity = quantityToNumeric(qty)
		ing.UnitCost = arg.UnitCost
		ing.UpdatedAt = st.tick()
		st.ingredients[ing.ID] = ing
		out = ing
		return nil
	})
	return out, err
}

func (m *memStore) CreatePurchaseReceiptLine(ctx context.Context, arg database.CreatePurchaseReceiptLineParams) (database.PurchaseReceiptLine, error) {
	var out database.PurchaseReceiptLine
	err := m.do("CreatePurchaseReceiptLine", func(st *memState) error {
		out = database.PurchaseReceiptLine{
			ID:           uuid.New(),
			ReceivedAt:   st.tick(),
			RawName:      arg.RawName,
			Quantity:     arg.Quantity,
			Unit:         arg.Unit,
			UnitPrice:    arg.UnitPrice,
			IngredientID: arg.IngredientID,
			MatchStatus:  arg.MatchStatus,
		}
		st.receipts = append(st.receipts, out)
		return nil
	})
	return out, err
}

// Orders

func (m *memStore) LockDeliveryDate(ctx context.Context, day pgtype.Date) error {
	if m.tx == nil {
		return errors.New("advisory transaction lock outside transaction")
	}
	return m.do("LockDeliveryDate", func(st *memState) error {
		m.tx.locks = append(m.tx.locks, day.Time)
		return nil
	})
}

func (m *memStore) SumCommittedServings(ctx context.Context, day pgtype.Date) (int32, error) {
	var total int32
	err := m.do("SumCommittedServings", func(st *memState) error {
		for _, o := range st.orders {
			if sameDay(o.DeliveryDate, day) && o.Status != enum.OrderStatusCancelled {
				total += o.TotalServings
			}
		}
		return nil
	})
	return total, err
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	var out database.Order
	err := m.do("CreateOrder", func(st *memState) error {
		out = database.Order{
			ID:            uuid.New(),
			CustomerID:    arg.CustomerID,
			CustomerName:  arg.CustomerName,
			Status:        enum.OrderStatusScheduled,
			DeliveryDate:  arg.DeliveryDate,
			TotalServings: arg.TotalServings,
			TotalAmount:   arg.TotalAmount,
			CreatedAt:     st.tick(),
		}
		st.orders[out.ID] = out
		return nil
	})
	return out, err
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	var out database.OrderItem
	err := m.do("CreateOrderItem", func(st *memState) error {
		if _, ok := st.orders[arg.OrderID]; !ok {
			return &pgconn.PgError{Code: "23503"}
		}
		out = database.OrderItem{
			ID:        uuid.New(),
			OrderID:   arg.OrderID,
			DishID:    arg.DishID,
			Servings:  arg.Servings,
			UnitPrice: arg.UnitPrice,
			Position:  arg.Position,
		}
		st.items = append(st.items, out)
		return nil
	})
	return out, err
}

func (m *memStore) getOrder(name string, id uuid.UUID) (database.Order, error) {
	var out database.Order
	err := m.do(name, func(st *memState) error {
		o, ok := st.orders[id]
		if !ok {
			return pgx.ErrNoRows
		}
		out = o
		return nil
	})
	return out, err
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.getOrder("GetOrder", id)
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if m.tx == nil {
		return database.Order{}, errors.New("FOR UPDATE outside transaction")
	}
	return m.getOrder("GetOrderForUpdate", id)
}

func (m *memStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	out := []database.Order{}
	err := m.do("ListOrders", func(st *memState) error {
		for _, o := range st.orders {
			if arg.Status.Valid && o.Status != arg.Status.String {
				continue
			}
			if arg.DeliveryDate.Valid && !sameDay(o.DeliveryDate, arg.DeliveryDate) {
				continue
			}
			if arg.CustomerID.Valid && o.CustomerID != uuid.UUID(arg.CustomerID.Bytes) {
				continue
			}
			out = append(out, o)
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].DeliveryDate.Time.Equal(out[j].DeliveryDate.Time) {
				return out[i].DeliveryDate.Time.After(out[j].DeliveryDate.Time)
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
		start := min(int(arg.Offset), len(out))
		end := min(start+int(arg.Limit), len(out))
		out = out[start:end]
		return nil
	})
	return out, err
}

func (m *memStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	out := []database.OrderItem{}
	err := m.do("ListOrderItemsByOrder", func(st *memState) error {
		for _, it := range st.items {
			if it.OrderID == orderID {
				out = append(out, it)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
		return nil
	})
	return out, err
}

func (m *memStore) ListScheduledItemsForDate(ctx context.Context, day pgtype.Date) ([]database.ListScheduledItemsForDateRow, error) {
	out := []database.ListScheduledItemsForDateRow{}
	err := m.do("ListScheduledItemsForDate", func(st *memState) error {
		items := slices.Clone(st.items)
		sort.SliceStable(items, func(i, j int) bool {
			if items[i].OrderID != items[j].OrderID {
				return items[i].OrderID.String() < items[j].OrderID.String()
			}
			return items[i].Position < items[j].Position
		})
		for _, it := range items {
			o := st.orders[it.OrderID]
			if o.Status == enum.OrderStatusScheduled && sameDay(o.DeliveryDate, day) {
				out = append(out, database.ListScheduledItemsForDateRow{
					OrderID:  it.OrderID,
					DishID:   it.DishID,
					Servings: it.Servings,
				})
			}
		}
		return nil
	})
	return out, err
}

func (m *memStore) transition(name string, id uuid.UUID, apply func(st *memState, o *database.Order)) (database.Order, error) {
	var out database.Order
	err := m.do(name, func(st *memState) error {
		o, ok := st.orders[id]
		if !ok || o.Status != enum.OrderStatusScheduled {
			return pgx.ErrNoRows
		}
		apply(st, &o)
		st.orders[id] = o
		out = o
		return nil
	})
	return out, err
}

func (m *memStore) MarkOrderDelivered(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.transition("MarkOrderDelivered", id, func(st *memState, o *database.Order) {
		o.Status = enum.OrderStatusDelivered
		o.Paid = true
		o.DeliveredAt = pgtype.Timestamptz{Time: st.tick(), Valid: true}
	})
}

func (m *memStore) CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	return m.transition("CancelOrder", id, func(st *memState, o *database.Order) {
		o.Status = enum.OrderStatusCancelled
		o.CancelledAt = pgtype.Timestamptz{Time: st.tick(), Valid: true}
	})
}

func (m *memStore) ListDailyLoad(ctx context.Context, arg database.ListDailyLoadParams) ([]database.ListDailyLoadRow, error) {
	out := []database.ListDailyLoadRow{}
	err := m.do("ListDailyLoad", func(st *memState) error {
		byDay := map[time.Time]*database.ListDailyLoadRow{}
		for _, o := range st.orders {
			d := o.DeliveryDate.Time
			if o.Status == enum.OrderStatusCancelled || d.Before(arg.From.Time) || !d.Before(arg.Until.Time) {
				continue
			}
			row, ok := byDay[d]
			if !ok {
				row = &database.ListDailyLoadRow{DeliveryDate: o.DeliveryDate}
				byDay[d] = row
			}
			row.Servings += o.TotalServings
			row.Orders++
		}
		for _, row := range byDay {
			out = append(out, *row)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].DeliveryDate.Time.Before(out[j].DeliveryDate.Time) })
		return nil
	})
	return out, err
}

// --- Fixture ---

// kitchenTZ is a fixed UTC-3 zone so tests do not depend on tzdata.
var kitchenTZ = time.FixedZone("BRT", -3*60*60)

// clock is 2026-03-10 15:00 in the kitchen; tomorrow is 2026-03-11.
var clock = time.Date(2026, 3, 10, 15, 0, 0, 0, kitchenTZ)

// onDay(1) is tomorrow.
func onDay(n int) time.Time {
	return time.Date(2026, 3, 10+n, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	db        *memDB
	hook      *test.Hook
	catalog   *CatalogService
	scheduler *SchedulerService
	ledger    *LedgerService
	projector *ProjectorService
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	db := newMemDB()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	return &fixture{
		db:   db,
		hook: hook,
		catalog: NewCatalogService(db, func(x database.DBTX) CatalogStore {
			return db.storeFor(x)
		}, log),
		scheduler: NewSchedulerService(db, func(x database.DBTX) SchedulerStore {
			return db.storeFor(x)
		}, SchedulerOptions{
			DailyCapacity: capacity,
			Location:      kitchenTZ,
			Now:           func() time.Time { return clock },
		}, log),
		ledger: NewLedgerService(db, func(x database.DBTX) LedgerStore {
			return db.storeFor(x)
		}, log),
		projector: NewProjectorService(db, func(x database.DBTX) ProjectorStore {
			return db.storeFor(x)
		}, log),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func num(s string) pgtype.Numeric {
	return quantityToNumeric(dec(s))
}

func (f *fixture) addIngredient(t *testing.T, name, unit, qty string) uuid.UUID {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	id := uuid.New()
	f.db.state.ingredients[id] = database.Ingredient{ID: id, Name: name, Unit: unit, Quantity: num(qty), UnitCost: num("0")}
	return id
}

// addDish registers an active dish; recipe maps ingredient to grams (or
// units) per serving.
func (f *fixture) addDish(t *testing.T, name, price string, recipe map[uuid.UUID]string) uuid.UUID {
	t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	id := uuid.New()
	f.db.state.dishes[id] = database.Dish{ID: id, Name: name, Price: decimalToNumeric(dec(price)), Active: true}
	for ing, qty := range recipe {
		f.db.state.recipes = append(f.db.state.recipes, database.RecipeLine{DishID: id, IngredientID: ing, QuantityPerServing: num(qty)})
	}
	return id
}

func (f *fixture) setDish(id uuid.UUID, update func(d *database.Dish)) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	d := f.db.state.dishes[id]
	update(&d)
	f.db.state.dishes[id] = d
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	qty, err := f.ledger.StockOf(context.Background(), id)
	require.NoError(t, err)
	return qty
}

func (f *fixture) place(t *testing.T, customer uuid.UUID, dish uuid.UUID, servings int32) database.Order {
	t.Helper()
	res, err := f.scheduler.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:   customer,
		CustomerName: "Cliente",
		Lines:        []PlaceOrderLine{{DishID: dish.String(), Servings: servings}},
	})
	require.NoError(t, err)
	return res.Order
}

func (f *fixture) warnings() []string {
	var out []string
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e.Message)
		}
	}
	return out
}
