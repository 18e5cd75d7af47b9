package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/kitchen"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxLoadDays      = 90
)

// Errors returned by the scheduler service.
var (
	ErrEmptyLines        = errors.New("lines are required")
	ErrInvalidServings   = kitchen.ErrInvalidServings
	ErrExceedsCapacity   = kitchen.ErrExceedsCapacity
	ErrInvalidDishID     = errors.New("invalid dish_id")
	ErrDishInactive      = errors.New("dish is not available")
	ErrMissingCustomer   = errors.New("customer is required")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderCancelled    = errors.New("order is cancelled")
	ErrOrderDelivered    = errors.New("order is already delivered")
	ErrNotOrderOwner     = errors.New("order belongs to another customer")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidRange      = errors.New("days must be between 1 and 90")
	ErrOrderStateChanged = errors.New("order status changed concurrently")
)

// SchedulerStore defines the DB methods the scheduler needs.
// Satisfied by *database.Queries (and its WithTx variant).
type SchedulerStore interface {
	stockConsumer

	GetDish(ctx context.Context, id uuid.UUID) (database.Dish, error)
	LockDeliveryDate(ctx context.Context, day pgtype.Date) error
	SumCommittedServings(ctx context.Context, day pgtype.Date) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	MarkOrderDelivered(ctx context.Context, id uuid.UUID) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListDailyLoad(ctx context.Context, arg database.ListDailyLoadParams) ([]database.ListDailyLoadRow, error)
}

// NewSchedulerStore creates a SchedulerStore from a DBTX (pool or tx).
type NewSchedulerStore func(db database.DBTX) SchedulerStore

// SchedulerOptions configures the scheduler.
type SchedulerOptions struct {
	DailyCapacity int
	Location      *time.Location   // calendar of the kitchen; UTC when nil
	Now           func() time.Time // time.Now when nil
}

// PlaceOrderRequest is the input for placing an order.
type PlaceOrderRequest struct {
	CustomerID   uuid.UUID
	CustomerName string
	Lines        []PlaceOrderLine
}

// PlaceOrderLine is one dish of the order.
type PlaceOrderLine struct {
	DishID   string
	Servings int32
}

// OrderDetail is an order with its items.
type OrderDetail struct {
	Order database.Order
	Items []database.OrderItem
}

// Actor is who asks for an order change.
type Actor struct {
	CustomerID uuid.UUID
	Admin      bool
}

// DeliveryResult reports a delivery confirmation. Order is nil when the
// order does not exist. Applied is false when nothing changed.
type DeliveryResult struct {
	Order     *database.Order
	Applied   bool
	Consumed  []Consumption
	Shortages []Consumption // consumed ingredients whose stock ended below zero
}

// CancelResult reports a cancellation. Applied is false when the order
// was already cancelled.
type CancelResult struct {
	Order   database.Order
	Applied bool
}

// OrderFilter narrows ListOrders. Zero values mean no filter.
type OrderFilter struct {
	Status       string
	DeliveryDate time.Time
	CustomerID   uuid.UUID
	Limit        int32
	Offset       int32
}

// DayLoad is the committed servings of one delivery date.
type DayLoad struct {
	Date      time.Time
	Servings  int
	Orders    int
	Capacity  int
	Remaining int
}

// SchedulerService places orders on the earliest date with spare capacity
// and drives them through delivery or cancellation.
type SchedulerService struct {
	pool     Pool
	newStore NewSchedulerStore
	capacity int
	loc      *time.Location
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewSchedulerService creates a new SchedulerService.
func NewSchedulerService(pool Pool, newStore NewSchedulerStore, opts SchedulerOptions, log logrus.FieldLogger) *SchedulerService {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SchedulerService{
		pool:     pool,
		newStore: newStore,
		capacity: opts.DailyCapacity,
		loc:      loc,
		now:      now,
		log:      log,
	}
}

// Capacity is the maximum servings produced per day.
func (s *SchedulerService) Capacity() int { return s.capacity }

// Tomorrow is the earliest delivery date for an order placed now.
func (s *SchedulerService) Tomorrow() time.Time {
	return kitchen.Tomorrow(s.now(), s.loc)
}

// PlaceOrder validates the order, freezes catalog prices and books it on
// the earliest date from tomorrow whose committed servings leave room.
// Candidate dates are locked one by one in increasing order inside the
// transaction, so two orders can never both fit into the last free servings
// of a day.
func (s *SchedulerService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*OrderDetail, error) {
	if req.CustomerID == uuid.Nil {
		return nil, ErrMissingCustomer
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyLines
	}

	dishIDs := make([]uuid.UUID, len(req.Lines))
	total := 0
	for i, line := range req.Lines {
		if line.Servings < 1 {
			return nil, fmt.Errorf("lines[%d]: %w", i, ErrInvalidServings)
		}
		id, err := uuid.Parse(line.DishID)
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: %w", i, ErrInvalidDishID)
		}
		dishIDs[i] = id
		total += int(line.Servings)
	}
	if total > s.capacity {
		return nil, fmt.Errorf("%w: %d servings, capacity %d", ErrExceedsCapacity, total, s.capacity)
	}

	// --- Begin transaction ---
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Freeze prices ---
	prices := make([]decimal.Decimal, len(req.Lines))
	amount := decimal.Zero
	for i, line := range req.Lines {
		dish, err := store.GetDish(ctx, dishIDs[i])
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("lines[%d]: %w", i, ErrDishNotFound)
			}
			return nil, fmt.Errorf("lines[%d]: get dish: %w", i, err)
		}
		if !dish.Active {
			return nil, fmt.Errorf("lines[%d]: %w", i, ErrDishInactive)
		}
		prices[i] = numericToDecimal(dish.Price)
		amount = amount.Add(prices[i].Mul(decimal.NewFromInt32(line.Servings)))
	}

	// --- Find the delivery date ---
	day, err := kitchen.EarliestDeliveryDate(s.Tomorrow(), total, s.capacity, func(day time.Time) (int, error) {
		if err := store.LockDeliveryDate(ctx, dateToPg(day)); err != nil {
			return 0, fmt.Errorf("lock: %w", err)
		}
		used, err := store.SumCommittedServings(ctx, dateToPg(day))
		return int(used), err
	})
	if err != nil {
		return nil, err
	}

	// --- Insert order and items ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerID:    req.CustomerID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		DeliveryDate:  dateToPg(day),
		TotalServings: int32(total),
		TotalAmount:   decimalToNumeric(amount),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(req.Lines))
	for i, line := range req.Lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			DishID:    dishIDs[i],
			Servings:  line.Servings,
			UnitPrice: decimalToNumeric(prices[i]),
			Position:  int32(i),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":      order.ID,
		"customer_id":   order.CustomerID,
		"delivery_date": day.Format(time.DateOnly),
		"servings":      total,
	}).Info("order placed")

	return &OrderDetail{Order: order, Items: items}, nil
}

// ConfirmDelivery marks a scheduled order delivered and paid and takes its
// ingredients out of stock, all in one transaction. Confirming a missing or
// already delivered order changes nothing. A cancelled order cannot be
// delivered.
func (s *SchedulerService) ConfirmDelivery(ctx context.Context, orderID uuid.UUID) (*DeliveryResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &DeliveryResult{}, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	status, err := kitchen.ParseOrderStatus(order.Status)
	if err != nil {
		return nil, err
	}
	_, outcome, err := kitchen.Transition(status, kitchen.Deliver)
	if err != nil {
		if errors.Is(err, kitchen.ErrCancelledNotDeliverable) {
			return nil, ErrOrderCancelled
		}
		return nil, err
	}
	switch outcome {
	case kitchen.NoOp:
		return &DeliveryResult{Order: &order}, nil
	case kitchen.Apply:
	}

	items, err := store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	consumed, err := consumeForOrder(ctx, store, items)
	if err != nil {
		return nil, err
	}

	delivered, err := store.MarkOrderDelivered(ctx, order.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderStateChanged
		}
		return nil, fmt.Errorf("mark delivered: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	res := &DeliveryResult{Order: &delivered, Applied: true, Consumed: consumed}
	for _, c := range consumed {
		if c.Remaining.IsNegative() {
			res.Shortages = append(res.Shortages, c)
			s.log.WithFields(logrus.Fields{
				"order_id":   delivered.ID,
				"ingredient": c.Name,
				"remaining":  c.Remaining.String(),
				"unit":       c.Unit,
			}).Warn("stock below zero after delivery")
		}
	}

	s.log.WithFields(logrus.Fields{
		"order_id":    delivered.ID,
		"ingredients": len(consumed),
	}).Info("order delivered")
	return res, nil
}

// CancelOrder cancels a scheduled order, freeing its servings on the
// delivery date. Cancelling a cancelled order changes nothing; a delivered
// order cannot be cancelled. Customers may only cancel their own orders.
func (s *SchedulerService) CancelOrder(ctx context.Context, orderID uuid.UUID, by Actor) (*CancelResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !by.Admin && order.CustomerID != by.CustomerID {
		return nil, ErrNotOrderOwner
	}

	status, err := kitchen.ParseOrderStatus(order.Status)
	if err != nil {
		return nil, err
	}
	_, outcome, err := kitchen.Transition(status, kitchen.Cancel)
	if err != nil {
		if errors.Is(err, kitchen.ErrDeliveredNotCancellable) {
			return nil, ErrOrderDelivered
		}
		return nil, err
	}
	switch outcome {
	case kitchen.NoOp:
		return &CancelResult{Order: order}, nil
	case kitchen.Apply:
	}

	cancelled, err := store.CancelOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderStateChanged
		}
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":      cancelled.ID,
		"delivery_date": pgToDate(cancelled.DeliveryDate).Format(time.DateOnly),
		"admin":         by.Admin,
	}).Info("order cancelled")
	return &CancelResult{Order: cancelled, Applied: true}, nil
}

// GetOrder returns an order with its items.
func (s *SchedulerService) GetOrder(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	store := s.newStore(s.pool)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderDetail{Order: order, Items: items}, nil
}

// ListOrders returns orders newest delivery date first.
func (s *SchedulerService) ListOrders(ctx context.Context, f OrderFilter) ([]database.Order, error) {
	params := database.ListOrdersParams{
		Limit:  f.Limit,
		Offset: f.Offset,
	}
	if f.Status != "" {
		st, err := kitchen.ParseOrderStatus(strings.ToUpper(f.Status))
		if err != nil {
			return nil, ErrInvalidStatus
		}
		params.Status = pgtype.Text{String: string(st), Valid: true}
	}
	if !f.DeliveryDate.IsZero() {
		params.DeliveryDate = dateToPg(f.DeliveryDate)
	}
	if f.CustomerID != uuid.Nil {
		params.CustomerID = pgtype.UUID{Bytes: f.CustomerID, Valid: true}
	}
	if params.Limit <= 0 {
		params.Limit = defaultListLimit
	}
	if params.Limit > maxListLimit {
		params.Limit = maxListLimit
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	orders, err := s.newStore(s.pool).ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// DailyLoad returns committed servings per day for days consecutive dates
// starting at from (tomorrow when zero). Days without orders are included.
func (s *SchedulerService) DailyLoad(ctx context.Context, from time.Time, days int) ([]DayLoad, error) {
	if days < 1 || days > maxLoadDays {
		return nil, ErrInvalidRange
	}
	start := s.Tomorrow()
	if !from.IsZero() {
		start = civilDay(from)
	}
	until := start.AddDate(0, 0, days)

	rows, err := s.newStore(s.pool).ListDailyLoad(ctx, database.ListDailyLoadParams{
		From:  dateToPg(start),
		Until: dateToPg(until),
	})
	if err != nil {
		return nil, fmt.Errorf("list daily load: %w", err)
	}
	byDay := make(map[time.Time]database.ListDailyLoadRow, len(rows))
	for _, r := range rows {
		byDay[pgToDate(r.DeliveryDate)] = r
	}

	out := make([]DayLoad, 0, days)
	for day := start; day.Before(until); day = day.AddDate(0, 0, 1) {
		r := byDay[day]
		out = append(out, DayLoad{
			Date:      day,
			Servings:  int(r.Servings),
			Orders:    int(r.Orders),
			Capacity:  s.capacity,
			Remaining: s.capacity - int(r.Servings),
		})
	}
	return out, nil
}
