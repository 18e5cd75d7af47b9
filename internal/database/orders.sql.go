package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// deliveryDateLockSpace is the first key of the two-key advisory lock taken
// per delivery date; the second key is the day number since 2000-01-01.
const deliveryDateLockSpace = 0x6b74

const orderColumns = `id, customer_id, customer_name, status, delivery_date, total_servings,
    total_amount, paid, created_at, delivered_at, cancelled_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CustomerID,
		&i.CustomerName,
		&i.Status,
		&i.DeliveryDate,
		&i.TotalServings,
		&i.TotalAmount,
		&i.Paid,
		&i.CreatedAt,
		&i.DeliveredAt,
		&i.CancelledAt,
	)
	return i, err
}

func collectOrders(rows pgx.Rows, err error) ([]Order, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const lockDeliveryDate = `SELECT pg_advisory_xact_lock($1::int, ($2::date - DATE '2000-01-01'))`

// LockDeliveryDate serializes capacity checks for one delivery date until
// the surrounding transaction ends. It must run inside a transaction.
func (q *Queries) LockDeliveryDate(ctx context.Context, day pgtype.Date) error {
	_, err := q.db.Exec(ctx, lockDeliveryDate, deliveryDateLockSpace, day)
	return err
}

const sumCommittedServings = `SELECT COALESCE(SUM(total_servings), 0)::int FROM orders
WHERE delivery_date = $1 AND status <> 'CANCELLED'`

func (q *Queries) SumCommittedServings(ctx context.Context, day pgtype.Date) (int32, error) {
	row := q.db.QueryRow(ctx, sumCommittedServings, day)
	var total int32
	err := row.Scan(&total)
	return total, err
}

const createOrder = `INSERT INTO orders (customer_id, customer_name, status, delivery_date, total_servings, total_amount, paid)
VALUES ($1, $2, 'SCHEDULED', $3, $4, $5, FALSE)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	CustomerID    uuid.UUID      `json:"customer_id"`
	CustomerName  string         `json:"customer_name"`
	DeliveryDate  pgtype.Date    `json:"delivery_date"`
	TotalServings int32          `json:"total_servings"`
	TotalAmount   pgtype.Numeric `json:"total_amount"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.CustomerID,
		arg.CustomerName,
		arg.DeliveryDate,
		arg.TotalServings,
		arg.TotalAmount,
	))
}

const createOrderItem = `INSERT INTO order_items (order_id, dish_id, servings, unit_price, position)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, order_id, dish_id, servings, unit_price, position`

type CreateOrderItemParams struct {
	OrderID   uuid.UUID      `json:"order_id"`
	DishID    uuid.UUID      `json:"dish_id"`
	Servings  int32          `json:"servings"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Position  int32          `json:"position"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.DishID,
		arg.Servings,
		arg.UnitPrice,
		arg.Position,
	)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.DishID, &i.Servings, &i.UnitPrice, &i.Position)
	return i, err
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders
WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::date IS NULL OR delivery_date = $2)
  AND ($3::uuid IS NULL OR customer_id = $3)
ORDER BY delivery_date DESC, created_at DESC
LIMIT $4 OFFSET $5`

type ListOrdersParams struct {
	Status       pgtype.Text `json:"status"`
	DeliveryDate pgtype.Date `json:"delivery_date"`
	CustomerID   pgtype.UUID `json:"customer_id"`
	Limit        int32       `json:"limit"`
	Offset       int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	return collectOrders(q.db.Query(ctx, listOrders,
		arg.Status,
		arg.DeliveryDate,
		arg.CustomerID,
		arg.Limit,
		arg.Offset,
	))
}

const listOrderItemsByOrder = `SELECT id, order_id, dish_id, servings, unit_price, position FROM order_items
WHERE order_id = $1
ORDER BY position`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.DishID, &i.Servings, &i.UnitPrice, &i.Position); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listScheduledItemsForDate = `SELECT oi.order_id, oi.dish_id, oi.servings
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.delivery_date = $1 AND o.status = 'SCHEDULED'
ORDER BY oi.order_id, oi.position`

type ListScheduledItemsForDateRow struct {
	OrderID  uuid.UUID `json:"order_id"`
	DishID   uuid.UUID `json:"dish_id"`
	Servings int32     `json:"servings"`
}

func (q *Queries) ListScheduledItemsForDate(ctx context.Context, day pgtype.Date) ([]ListScheduledItemsForDateRow, error) {
	rows, err := q.db.Query(ctx, listScheduledItemsForDate, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListScheduledItemsForDateRow{}
	for rows.Next() {
		var i ListScheduledItemsForDateRow
		if err := rows.Scan(&i.OrderID, &i.DishID, &i.Servings); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

// The status predicate makes these updates a compare-and-swap: no row is
// returned unless the order was still SCHEDULED.
const markOrderDelivered = `UPDATE orders
SET status = 'DELIVERED', paid = TRUE, delivered_at = now()
WHERE id = $1 AND status = 'SCHEDULED'
RETURNING ` + orderColumns

func (q *Queries) MarkOrderDelivered(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, markOrderDelivered, id))
}

const cancelOrder = `UPDATE orders
SET status = 'CANCELLED', cancelled_at = now()
WHERE id = $1 AND status = 'SCHEDULED'
RETURNING ` + orderColumns

func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, id))
}

const listDailyLoad = `SELECT delivery_date, COALESCE(SUM(total_servings), 0)::int AS servings, COUNT(*)::int AS orders
FROM orders
WHERE delivery_date >= $1 AND delivery_date < $2 AND status <> 'CANCELLED'
GROUP BY delivery_date
ORDER BY delivery_date`

type ListDailyLoadParams struct {
	From  pgtype.Date `json:"from"`
	Until pgtype.Date `json:"until"`
}

type ListDailyLoadRow struct {
	DeliveryDate pgtype.Date `json:"delivery_date"`
	Servings     int32       `json:"servings"`
	Orders       int32       `json:"orders"`
}

func (q *Queries) ListDailyLoad(ctx context.Context, arg ListDailyLoadParams) ([]ListDailyLoadRow, error) {
	rows, err := q.db.Query(ctx, listDailyLoad, arg.From, arg.Until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ListDailyLoadRow{}
	for rows.Next() {
		var i ListDailyLoadRow
		if err := rows.Scan(&i.DeliveryDate, &i.Servings, &i.Orders); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
