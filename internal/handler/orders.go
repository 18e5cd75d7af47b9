package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/enum"
	"github.com/donana/kitchen-api/internal/middleware"
	"github.com/donana/kitchen-api/internal/service"
	"github.com/donana/kitchen-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OrderServicer defines the scheduler operations used by OrderHandler.
// Satisfied by *service.SchedulerService.
type OrderServicer interface {
	PlaceOrder(ctx context.Context, req service.PlaceOrderRequest) (*service.OrderDetail, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*service.OrderDetail, error)
	ListOrders(ctx context.Context, f service.OrderFilter) ([]database.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, by service.Actor) (*service.CancelResult, error)
	ConfirmDelivery(ctx context.Context, orderID uuid.UUID) (*service.DeliveryResult, error)
	DailyLoad(ctx context.Context, from time.Time, days int) ([]service.DayLoad, error)
}

// OrderHandler handles order placement, lookup, delivery and cancellation.
type OrderHandler struct {
	svc    OrderServicer
	events Publisher
	log    logrus.FieldLogger
}

func NewOrderHandler(svc OrderServicer, events Publisher, log logrus.FieldLogger) *OrderHandler {
	return &OrderHandler{svc: svc, events: events, log: log}
}

// RegisterRoutes mounts the order routes for authenticated callers.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.Place)
	r.Get("/orders", h.List)
	r.Get("/orders/{id}", h.Get)
	r.Delete("/orders/{id}", h.Cancel)
}

// RegisterAdminRoutes mounts kitchen-only order routes.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/orders/{id}/deliver", h.Deliver)
	r.Get("/load", h.Load)
}

var orderErrors = []errorStatus{
	{service.ErrEmptyLines, http.StatusBadRequest},
	{service.ErrInvalidServings, http.StatusBadRequest},
	{service.ErrInvalidDishID, http.StatusBadRequest},
	{service.ErrMissingCustomer, http.StatusBadRequest},
	{service.ErrInvalidStatus, http.StatusBadRequest},
	{service.ErrInvalidRange, http.StatusBadRequest},
	{service.ErrExceedsCapacity, http.StatusUnprocessableEntity},
	{service.ErrDishNotFound, http.StatusUnprocessableEntity},
	{service.ErrDishInactive, http.StatusUnprocessableEntity},
	{service.ErrNotOrderOwner, http.StatusForbidden},
	{service.ErrOrderNotFound, http.StatusNotFound},
	{service.ErrOrderCancelled, http.StatusConflict},
	{service.ErrOrderDelivered, http.StatusConflict},
	{service.ErrOrderStateChanged, http.StatusConflict},
}

// --- Request / Response types ---

type placeOrderRequest struct {
	Lines []placeOrderLine `json:"lines"`
}

type placeOrderLine struct {
	DishID   string `json:"dish_id"`
	Servings int32  `json:"servings"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	CustomerName  string              `json:"customer_name"`
	Status        string              `json:"status"`
	DeliveryDate  string              `json:"delivery_date"`
	TotalServings int32               `json:"total_servings"`
	TotalAmount   string              `json:"total_amount"`
	Paid          bool                `json:"paid"`
	CreatedAt     time.Time           `json:"created_at"`
	DeliveredAt   *time.Time          `json:"delivered_at"`
	CancelledAt   *time.Time          `json:"cancelled_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	DishID    uuid.UUID `json:"dish_id"`
	Servings  int32     `json:"servings"`
	UnitPrice string    `json:"unit_price"`
	Subtotal  string    `json:"subtotal"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type consumptionResponse struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	Amount       string    `json:"amount"`
	Remaining    string    `json:"remaining"`
}

type deliveryResponse struct {
	Order     orderResponse         `json:"order"`
	Applied   bool                  `json:"applied"`
	Consumed  []consumptionResponse `json:"consumed"`
	Shortages []consumptionResponse `json:"shortages"`
}

type dayLoadResponse struct {
	Date      string `json:"date"`
	Servings  int    `json:"servings"`
	Orders    int    `json:"orders"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
}

// --- Handlers ---

// Place handles POST /orders. The customer is the caller.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]service.PlaceOrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.PlaceOrderLine{DishID: l.DishID, Servings: l.Servings}
	}

	detail, err := h.svc.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		CustomerID:   claims.CustomerID,
		CustomerName: claims.Name,
		Lines:        lines,
	})
	if err != nil {
		writeServiceError(w, h.log, "place order", err, orderErrors)
		return
	}

	resp := toOrderResponse(detail.Order, detail.Items)
	h.events.Broadcast(enum.TopicKitchen, ws.Event{Type: enum.EventOrderPlaced, Data: resp})
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders. Customers only ever see their own orders;
// admins may filter by customer_id.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	q := r.URL.Query()
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	f := service.OrderFilter{
		Status: q.Get("status"),
		Limit:  int32(limit),
		Offset: int32(offset),
	}
	if s := q.Get("delivery_date"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid delivery_date format, use YYYY-MM-DD")
			return
		}
		f.DeliveryDate = d
	}

	if middleware.IsAdmin(r.Context()) {
		if s := q.Get("customer_id"); s != "" {
			id, err := uuid.Parse(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid customer_id")
				return
			}
			f.CustomerID = id
		}
	} else {
		f.CustomerID = claims.CustomerID
	}

	orders, err := h.svc.ListOrders(r.Context(), f)
	if err != nil {
		writeServiceError(w, h.log, "list orders", err, orderErrors)
		return
	}

	resp := orderListResponse{Orders: make([]orderResponse, len(orders)), Limit: limit, Offset: offset}
	for i, o := range orders {
		resp.Orders[i] = toOrderResponse(o, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	detail, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "get order", err, orderErrors)
		return
	}
	if !middleware.IsAdmin(r.Context()) && detail.Order.CustomerID != claims.CustomerID {
		writeError(w, http.StatusForbidden, service.ErrNotOrderOwner.Error())
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(detail.Order, detail.Items))
}

// Cancel handles DELETE /orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	res, err := h.svc.CancelOrder(r.Context(), id, service.Actor{
		CustomerID: claims.CustomerID,
		Admin:      middleware.IsAdmin(r.Context()),
	})
	if err != nil {
		writeServiceError(w, h.log, "cancel order", err, orderErrors)
		return
	}

	resp := toOrderResponse(res.Order, nil)
	if res.Applied {
		h.events.Broadcast(enum.TopicKitchen, ws.Event{Type: enum.EventOrderCancelled, Data: resp})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Deliver handles POST /admin/orders/{id}/deliver.
func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	res, err := h.svc.ConfirmDelivery(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "confirm delivery", err, orderErrors)
		return
	}
	if res.Order == nil {
		writeError(w, http.StatusNotFound, service.ErrOrderNotFound.Error())
		return
	}

	resp := deliveryResponse{
		Order:     toOrderResponse(*res.Order, nil),
		Applied:   res.Applied,
		Consumed:  toConsumptionResponses(res.Consumed),
		Shortages: toConsumptionResponses(res.Shortages),
	}
	if res.Applied {
		h.events.Broadcast(enum.TopicKitchen, ws.Event{Type: enum.EventOrderDelivered, Data: resp})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Load handles GET /admin/load?from=YYYY-MM-DD&days=N.
func (h *OrderHandler) Load(w http.ResponseWriter, r *http.Request) {
	var from time.Time
	if s := r.URL.Query().Get("from"); s != "" {
		d, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from format, use YYYY-MM-DD")
			return
		}
		from = d
	}
	days, err := queryInt(r, "days", 14)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	load, err := h.svc.DailyLoad(r.Context(), from, days)
	if err != nil {
		writeServiceError(w, h.log, "daily load", err, orderErrors)
		return
	}

	resp := make([]dayLoadResponse, len(load))
	for i, d := range load {
		resp[i] = dayLoadResponse{
			Date:      d.Date.Format(dateLayout),
			Servings:  d.Servings,
			Orders:    d.Orders,
			Capacity:  d.Capacity,
			Remaining: d.Remaining,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		Status:        o.Status,
		DeliveryDate:  dateString(o.DeliveryDate),
		TotalServings: o.TotalServings,
		TotalAmount:   numericString(o.TotalAmount, 2),
		Paid:          o.Paid,
		CreatedAt:     o.CreatedAt,
		DeliveredAt:   timestampPtr(o.DeliveredAt),
		CancelledAt:   timestampPtr(o.CancelledAt),
	}
	for _, it := range items {
		price := numericString(it.UnitPrice, 2)
		resp.Items = append(resp.Items, orderItemResponse{
			ID:        it.ID,
			DishID:    it.DishID,
			Servings:  it.Servings,
			UnitPrice: price,
			Subtotal:  subtotal(it),
		})
	}
	return resp
}

func subtotal(it database.OrderItem) string {
	d, err := decimalFromNumeric(it.UnitPrice)
	if err != nil {
		return "0.00"
	}
	return d.Mul(decimal.NewFromInt32(it.Servings)).StringFixed(2)
}

func toConsumptionResponses(cs []service.Consumption) []consumptionResponse {
	resp := make([]consumptionResponse, len(cs))
	for i, c := range cs {
		resp[i] = consumptionResponse{
			IngredientID: c.IngredientID,
			Name:         c.Name,
			Unit:         c.Unit,
			Amount:       c.Amount.String(),
			Remaining:    c.Remaining.String(),
		}
	}
	return resp
}
