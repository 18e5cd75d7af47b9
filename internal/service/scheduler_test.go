package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/enum"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrder_FillsEarliestDayWithRoom(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango com Batata Doce", "25.00", nil)
	customer := uuid.New()

	first := f.place(t, customer, dish, 12)
	second := f.place(t, customer, dish, 12)
	third := f.place(t, customer, dish, 10)

	assert.Equal(t, onDay(1), pgToDate(first.DeliveryDate))
	assert.Equal(t, onDay(1), pgToDate(second.DeliveryDate))
	assert.Equal(t, onDay(2), pgToDate(third.DeliveryDate))
	assert.Equal(t, enum.OrderStatusScheduled, third.Status)
	assert.False(t, third.Paid)
	assert.True(t, numericToDecimal(third.TotalAmount).Equal(dec("250")))
}

func TestPlaceOrder_ExactFitStaysOnDay(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Patinho com Arroz", "28.00", nil)

	f.place(t, uuid.New(), dish, 20)
	o := f.place(t, uuid.New(), dish, 10)

	assert.Equal(t, onDay(1), pgToDate(o.DeliveryDate))
}

func TestPlaceOrder_SkipsFullDays(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Patinho com Arroz", "28.00", nil)

	f.place(t, uuid.New(), dish, 30)
	f.place(t, uuid.New(), dish, 25)
	o := f.place(t, uuid.New(), dish, 6)

	assert.Equal(t, onDay(3), pgToDate(o.DeliveryDate))
}

func TestPlaceOrder_LocksCandidateDaysInOrder(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Patinho com Arroz", "28.00", nil)

	f.place(t, uuid.New(), dish, 30)
	f.place(t, uuid.New(), dish, 30)
	f.place(t, uuid.New(), dish, 5)

	require.Len(t, f.db.locked, 3)
	assert.Equal(t, onDay(1), f.db.locked[0][0])
	last := f.db.locked[2]
	require.Len(t, last, 3)
	assert.Equal(t, onDay(1), last[0])
	assert.Equal(t, onDay(2), last[1])
	assert.Equal(t, onDay(3), last[2])
}

func TestPlaceOrder_MultipleLinesFreezePrices(t *testing.T) {
	f := newFixture(t, 30)
	frango := f.addDish(t, "Frango com Batata Doce", "25.00", nil)
	patinho := f.addDish(t, "Patinho com Arroz", "28.00", nil)

	res, err := f.scheduler.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID:   uuid.New(),
		CustomerName: "  Ana  ",
		Lines: []PlaceOrderLine{
			{DishID: frango.String(), Servings: 2},
			{DishID: patinho.String(), Servings: 3},
		},
	})
	require.NoError(t, err)

	f.setDish(frango, func(d *database.Dish) { d.Price = decimalToNumeric(dec("99")) })

	detail, err := f.scheduler.GetOrder(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", detail.Order.CustomerName)
	assert.Equal(t, int32(5), detail.Order.TotalServings)
	assert.True(t, numericToDecimal(detail.Order.TotalAmount).Equal(dec("134")))
	require.Len(t, detail.Items, 2)
	assert.Equal(t, frango, detail.Items[0].DishID)
	assert.True(t, numericToDecimal(detail.Items[0].UnitPrice).Equal(dec("25")))
	assert.Equal(t, patinho, detail.Items[1].DishID)
	assert.Equal(t, int32(1), detail.Items[1].Position)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango com Batata Doce", "25.00", nil)
	hidden := f.addDish(t, "Feijoada", "30.00", nil)
	f.setDish(hidden, func(d *database.Dish) { d.Active = false })

	line := func(id uuid.UUID, servings int32) []PlaceOrderLine {
		return []PlaceOrderLine{{DishID: id.String(), Servings: servings}}
	}

	tests := []struct {
		name string
		req  PlaceOrderRequest
		want error
	}{
		{"missing customer", PlaceOrderRequest{Lines: line(dish, 1)}, ErrMissingCustomer},
		{"no lines", PlaceOrderRequest{CustomerID: uuid.New()}, ErrEmptyLines},
		{"zero servings", PlaceOrderRequest{CustomerID: uuid.New(), Lines: line(dish, 0)}, ErrInvalidServings},
		{"bad dish id", PlaceOrderRequest{CustomerID: uuid.New(), Lines: []PlaceOrderLine{{DishID: "nope", Servings: 1}}}, ErrInvalidDishID},
		{"over capacity", PlaceOrderRequest{CustomerID: uuid.New(), Lines: line(dish, 31)}, ErrExceedsCapacity},
		{"unknown dish", PlaceOrderRequest{CustomerID: uuid.New(), Lines: line(uuid.New(), 1)}, ErrDishNotFound},
		{"inactive dish", PlaceOrderRequest{CustomerID: uuid.New(), Lines: line(hidden, 1)}, ErrDishInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.scheduler.PlaceOrder(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, f.db.snapshot().orders)
	assert.Zero(t, f.db.commits)
}

func TestPlaceOrder_CapacitySplitAcrossLines(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango com Batata Doce", "25.00", nil)

	_, err := f.scheduler.PlaceOrder(context.Background(), PlaceOrderRequest{
		CustomerID: uuid.New(),
		Lines: []PlaceOrderLine{
			{DishID: dish.String(), Servings: 20},
			{DishID: dish.String(), Servings: 11},
		},
	})
	require.ErrorIs(t, err, ErrExceedsCapacity)
}

func TestPlaceOrder_CancelledOrdersFreeCapacity(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango com Batata Doce", "25.00", nil)
	customer := uuid.New()

	o := f.place(t, customer, dish, 30)
	_, err := f.scheduler.CancelOrder(context.Background(), o.ID, Actor{CustomerID: customer})
	require.NoError(t, err)

	again := f.place(t, customer, dish, 30)
	assert.Equal(t, onDay(1), pgToDate(again.DeliveryDate))
}

func TestPlaceOrder_ConcurrentNeverExceedsCapacity(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango com Batata Doce", "25.00", nil)

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.scheduler.PlaceOrder(context.Background(), PlaceOrderRequest{
				CustomerID: uuid.New(),
				Lines:      []PlaceOrderLine{{DishID: dish.String(), Servings: 10}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	load, err := f.scheduler.DailyLoad(context.Background(), onDay(1), 5)
	require.NoError(t, err)
	for i, d := range load[:4] {
		assert.Equal(t, 30, d.Servings, "day %d", i+1)
		assert.Equal(t, 3, d.Orders, "day %d", i+1)
	}
	assert.Zero(t, load[4].Servings)
}

func TestConfirmDelivery_ConsumesStockOnce(t *testing.T) {
	f := newFixture(t, 30)
	frango := f.addIngredient(t, "Peito de Frango", "KG", "5")
	batata := f.addIngredient(t, "Batata Doce", "KG", "3")
	ovo := f.addIngredient(t, "Ovo", "UNIT", "12")
	dish := f.addDish(t, "Frango com Batata Doce", "25.00", map[uuid.UUID]string{
		frango: "250",
		batata: "200",
		ovo:    "1",
	})
	o := f.place(t, uuid.New(), dish, 4)

	res, err := f.scheduler.ConfirmDelivery(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.NotNil(t, res.Order)
	assert.Equal(t, enum.OrderStatusDelivered, res.Order.Status)
	assert.True(t, res.Order.Paid)
	assert.True(t, res.Order.DeliveredAt.Valid)
	assert.Len(t, res.Consumed, 3)
	assert.Empty(t, res.Shortages)

	assert.True(t, f.stock(t, frango).Equal(dec("4")), "250 g x 4 servings is 1 kg")
	assert.True(t, f.stock(t, batata).Equal(dec("2.2")))
	assert.True(t, f.stock(t, ovo).Equal(dec("8")))

	again, err := f.scheduler.ConfirmDelivery(context.Background(), o.ID)
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, enum.OrderStatusDelivered, again.Order.Status)
	assert.True(t, f.stock(t, frango).Equal(dec("4")))
}

func TestConfirmDelivery_MissingOrderIsNoOp(t *testing.T) {
	f := newFixture(t, 30)

	res, err := f.scheduler.ConfirmDelivery(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Nil(t, res.Order)
}

func TestConfirmDelivery_CancelledOrderRejected(t *testing.T) {
	f := newFixture(t, 30)
	frango := f.addIngredient(t, "Peito de Frango", "KG", "5")
	dish := f.addDish(t, "Frango", "25.00", map[uuid.UUID]string{frango: "250"})
	customer := uuid.New()
	o := f.place(t, customer, dish, 4)
	_, err := f.scheduler.CancelOrder(context.Background(), o.ID, Actor{CustomerID: customer})
	require.NoError(t, err)

	_, err = f.scheduler.ConfirmDelivery(context.Background(), o.ID)
	require.ErrorIs(t, err, ErrOrderCancelled)
	assert.True(t, f.stock(t, frango).Equal(dec("5")))
}

func TestConfirmDelivery_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t, 30)
	frango := f.addIngredient(t, "Peito de Frango", "KG", "5")
	dish := f.addDish(t, "Frango", "25.00", map[uuid.UUID]string{frango: "250"})
	o := f.place(t, uuid.New(), dish, 4)

	f.db.failOn["MarkOrderDelivered"] = errors.New("connection reset")

	_, err := f.scheduler.ConfirmDelivery(context.Background(), o.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	assert.True(t, f.stock(t, frango).Equal(dec("5")), "stock restored")
	detail, err := f.scheduler.GetOrder(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusScheduled, detail.Order.Status)
	assert.False(t, detail.Order.Paid)
}

func TestConfirmDelivery_ReportsShortages(t *testing.T) {
	f := newFixture(t, 30)
	frango := f.addIngredient(t, "Peito de Frango", "KG", "0.5")
	dish := f.addDish(t, "Frango", "25.00", map[uuid.UUID]string{frango: "250"})
	o := f.place(t, uuid.New(), dish, 4)

	res, err := f.scheduler.ConfirmDelivery(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	require.Len(t, res.Shortages, 1)
	assert.Equal(t, "Peito de Frango", res.Shortages[0].Name)
	assert.True(t, res.Shortages[0].Remaining.Equal(dec("-0.5")))
	assert.True(t, f.stock(t, frango).Equal(dec("-0.5")))
	assert.Contains(t, f.warnings(), "stock below zero after delivery")
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango", "25.00", nil)
	owner := uuid.New()
	ctx := context.Background()

	t.Run("owner cancels scheduled order", func(t *testing.T) {
		o := f.place(t, owner, dish, 2)
		got, err := f.scheduler.CancelOrder(ctx, o.ID, Actor{CustomerID: owner})
		require.NoError(t, err)
		assert.True(t, got.Applied)
		assert.Equal(t, enum.OrderStatusCancelled, got.Order.Status)
		assert.True(t, got.Order.CancelledAt.Valid)

		again, err := f.scheduler.CancelOrder(ctx, o.ID, Actor{CustomerID: owner})
		require.NoError(t, err)
		assert.False(t, again.Applied, "second cancel changes nothing")
		assert.Equal(t, enum.OrderStatusCancelled, again.Order.Status)
		assert.Equal(t, got.Order.CancelledAt, again.Order.CancelledAt)
	})

	t.Run("other customer is refused", func(t *testing.T) {
		o := f.place(t, owner, dish, 2)
		_, err := f.scheduler.CancelOrder(ctx, o.ID, Actor{CustomerID: uuid.New()})
		require.ErrorIs(t, err, ErrNotOrderOwner)
	})

	t.Run("admin cancels any order", func(t *testing.T) {
		o := f.place(t, owner, dish, 2)
		got, err := f.scheduler.CancelOrder(ctx, o.ID, Actor{Admin: true})
		require.NoError(t, err)
		assert.True(t, got.Applied)
		assert.Equal(t, enum.OrderStatusCancelled, got.Order.Status)
	})

	t.Run("delivered order cannot be cancelled", func(t *testing.T) {
		o := f.place(t, owner, dish, 2)
		_, err := f.scheduler.ConfirmDelivery(ctx, o.ID)
		require.NoError(t, err)
		_, err = f.scheduler.CancelOrder(ctx, o.ID, Actor{Admin: true})
		require.ErrorIs(t, err, ErrOrderDelivered)
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := f.scheduler.CancelOrder(ctx, uuid.New(), Actor{Admin: true})
		require.ErrorIs(t, err, ErrOrderNotFound)
	})
}

func TestListOrders_Filters(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango", "25.00", nil)
	ana, bia := uuid.New(), uuid.New()

	f.place(t, ana, dish, 20)
	f.place(t, bia, dish, 20)
	cancelled := f.place(t, ana, dish, 5)
	_, err := f.scheduler.CancelOrder(context.Background(), cancelled.ID, Actor{CustomerID: ana})
	require.NoError(t, err)

	mine, err := f.scheduler.ListOrders(context.Background(), OrderFilter{CustomerID: ana})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	scheduled, err := f.scheduler.ListOrders(context.Background(), OrderFilter{Status: "scheduled"})
	require.NoError(t, err)
	assert.Len(t, scheduled, 2)

	onSecond, err := f.scheduler.ListOrders(context.Background(), OrderFilter{DeliveryDate: onDay(2)})
	require.NoError(t, err)
	assert.Len(t, onSecond, 1)

	_, err = f.scheduler.ListOrders(context.Background(), OrderFilter{Status: "LOST"})
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestDailyLoad(t *testing.T) {
	f := newFixture(t, 30)
	dish := f.addDish(t, "Frango", "25.00", nil)
	f.place(t, uuid.New(), dish, 12)
	f.place(t, uuid.New(), dish, 12)
	f.place(t, uuid.New(), dish, 10)

	load, err := f.scheduler.DailyLoad(context.Background(), time.Time{}, 3)
	require.NoError(t, err)
	require.Len(t, load, 3)
	assert.Equal(t, DayLoad{Date: onDay(1), Servings: 24, Orders: 2, Capacity: 30, Remaining: 6}, load[0])
	assert.Equal(t, DayLoad{Date: onDay(2), Servings: 10, Orders: 1, Capacity: 30, Remaining: 20}, load[1])
	assert.Equal(t, DayLoad{Date: onDay(3), Servings: 0, Orders: 0, Capacity: 30, Remaining: 30}, load[2])

	_, err = f.scheduler.DailyLoad(context.Background(), time.Time{}, 0)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestConfirmDelivery_SubGramRecipeLines(t *testing.T) {
	f := newFixture(t, 30)
	pimenta := f.addIngredient(t, "Pimenta do Reino", "KG", "1")
	dish := f.addDish(t, "Frango", "25.00", map[uuid.UUID]string{pimenta: "0.25"})
	o := f.place(t, uuid.New(), dish, 1)
	ctx := context.Background()

	list, err := f.projector.ShoppingListFor(ctx, pgToDate(o.DeliveryDate))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Required.Equal(dec("0.00025")), "required = %s", list[0].Required)

	res, err := f.scheduler.ConfirmDelivery(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, res.Consumed, 1)
	assert.True(t, res.Consumed[0].Amount.Equal(list[0].Required))
	assert.True(t, f.stock(t, pimenta).Equal(dec("0.99975")), "stock = %s", f.stock(t, pimenta))
}
