package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Ingredient struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Unit      string         `json:"unit"`
	Quantity  pgtype.Numeric `json:"quantity"`
	UnitCost  pgtype.Numeric `json:"unit_cost"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type Dish struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       pgtype.Numeric `json:"price"`
	PhotoUrl    pgtype.Text    `json:"photo_url"`
	Active      bool           `json:"active"`
	CreatedAt   time.Time      `json:"created_at"`
}

type RecipeLine struct {
	DishID             uuid.UUID      `json:"dish_id"`
	IngredientID       uuid.UUID      `json:"ingredient_id"`
	QuantityPerServing pgtype.Numeric `json:"quantity_per_serving"`
}

type Order struct {
	ID            uuid.UUID          `json:"id"`
	CustomerID    uuid.UUID          `json:"customer_id"`
	CustomerName  string             `json:"customer_name"`
	Status        string             `json:"status"`
	DeliveryDate  pgtype.Date        `json:"delivery_date"`
	TotalServings int32              `json:"total_servings"`
	TotalAmount   pgtype.Numeric     `json:"total_amount"`
	Paid          bool               `json:"paid"`
	CreatedAt     time.Time          `json:"created_at"`
	DeliveredAt   pgtype.Timestamptz `json:"delivered_at"`
	CancelledAt   pgtype.Timestamptz `json:"cancelled_at"`
}

type OrderItem struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"order_id"`
	DishID    uuid.UUID      `json:"dish_id"`
	Servings  int32          `json:"servings"`
	UnitPrice pgtype.Numeric `json:"unit_price"`
	Position  int32          `json:"position"`
}

type PurchaseReceiptLine struct {
	ID           uuid.UUID      `json:"id"`
	ReceivedAt   time.Time      `json:"received_at"`
	RawName      string         `json:"raw_name"`
	Quantity     pgtype.Numeric `json:"quantity"`
	Unit         pgtype.Text    `json:"unit"`
	UnitPrice    pgtype.Numeric `json:"unit_price"`
	IngredientID pgtype.UUID    `json:"ingredient_id"`
	MatchStatus  string         `json:"match_status"`
}
