package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/donana/kitchen-api/internal/enum"
	"github.com/donana/kitchen-api/internal/kitchen"
	"github.com/donana/kitchen-api/internal/service"
	"github.com/donana/kitchen-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxNoteBytes = 64 << 10

// LedgerServicer defines the stock intake operations used by
// PurchaseHandler. Satisfied by *service.LedgerService.
type LedgerServicer interface {
	ReceiveFromPurchase(ctx context.Context, records []service.PurchaseRecord) (*service.ReceiveResult, error)
	ReceiveFromNote(ctx context.Context, text string) (*service.NoteResult, error)
}

// ShoppingLister projects ingredient needs for a delivery date.
// Satisfied by *service.ProjectorService.
type ShoppingLister interface {
	ShoppingListFor(ctx context.Context, date time.Time) ([]kitchen.ShoppingLine, error)
}

// PurchaseHandler serves stock intake and the shopping list.
type PurchaseHandler struct {
	ledger    LedgerServicer
	projector ShoppingLister
	events    Publisher
	log       logrus.FieldLogger
}

func NewPurchaseHandler(ledger LedgerServicer, projector ShoppingLister, events Publisher, log logrus.FieldLogger) *PurchaseHandler {
	return &PurchaseHandler{ledger: ledger, projector: projector, events: events, log: log}
}

// RegisterAdminRoutes mounts the purchase routes under an admin subrouter.
func (h *PurchaseHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/purchases", h.Receive)
	r.Post("/purchases/note", h.ReceiveNote)
	r.Get("/shopping-list", h.ShoppingList)
}

var purchaseErrors = []errorStatus{
	{service.ErrEmptyPurchase, http.StatusBadRequest},
	{service.ErrInvalidPurchase, http.StatusBadRequest},
	{service.ErrInvalidNote, http.StatusUnprocessableEntity},
}

// --- Request / Response types ---

type purchaseRequest struct {
	Records []purchaseRecordRequest `json:"records"`
}

type purchaseRecordRequest struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit"`
	UnitPrice string `json:"unit_price"`
}

type noteRequest struct {
	Text string `json:"text"`
}

type purchaseRecordResponse struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Unit      string `json:"unit,omitempty"`
	UnitPrice string `json:"unit_price"`
}

type receivedLineResponse struct {
	Record         purchaseRecordResponse `json:"record"`
	IngredientID   uuid.UUID              `json:"ingredient_id"`
	IngredientName string                 `json:"ingredient_name"`
	Amount         string                 `json:"amount"`
	NewQuantity    string                 `json:"new_quantity"`
}

type ambiguousLineResponse struct {
	Record     purchaseRecordResponse `json:"record"`
	Candidates []string               `json:"candidates"`
}

type receiveResponse struct {
	Received  []receivedLineResponse   `json:"received"`
	Ambiguous []ambiguousLineResponse  `json:"ambiguous"`
	Dropped   []purchaseRecordResponse `json:"dropped"`
	Warnings  []string                 `json:"warnings,omitempty"`
}

type shoppingLineResponse struct {
	IngredientID uuid.UUID `json:"ingredient_id"`
	Name         string    `json:"name"`
	Unit         string    `json:"unit"`
	Required     string    `json:"required"`
	InStock      string    `json:"in_stock"`
	ToPurchase   string    `json:"to_purchase"`
}

type shoppingListResponse struct {
	Date  string                 `json:"date"`
	Lines []shoppingLineResponse `json:"lines"`
}

// --- Handlers ---

// Receive handles POST /admin/purchases with records recognized from a
// purchase document.
func (h *PurchaseHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	records := make([]service.PurchaseRecord, len(req.Records))
	for i, rec := range req.Records {
		qty, err := decimal.NewFromString(rec.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("records[%d]: invalid quantity", i))
			return
		}
		price, err := decimal.NewFromString(rec.UnitPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("records[%d]: invalid unit_price", i))
			return
		}
		records[i] = service.PurchaseRecord{Name: rec.Name, Quantity: qty, Unit: rec.Unit, UnitPrice: price}
	}

	res, err := h.ledger.ReceiveFromPurchase(r.Context(), records)
	if err != nil {
		writeServiceError(w, h.log, "receive purchase", err, purchaseErrors)
		return
	}

	resp := toReceiveResponse(res, nil)
	h.publishStock(resp)
	writeJSON(w, http.StatusOK, resp)
}

// ReceiveNote handles POST /admin/purchases/note. The note is either a
// text/plain body or JSON {"text": "..."}.
func (h *PurchaseHandler) ReceiveNote(w http.ResponseWriter, r *http.Request) {
	text, err := readNote(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.ledger.ReceiveFromNote(r.Context(), text)
	if err != nil {
		writeServiceError(w, h.log, "receive note", err, purchaseErrors)
		return
	}

	resp := toReceiveResponse(&res.ReceiveResult, res.Warnings)
	h.publishStock(resp)
	writeJSON(w, http.StatusOK, resp)
}

// ShoppingList handles GET /admin/shopping-list?date=YYYY-MM-DD.
func (h *PurchaseHandler) ShoppingList(w http.ResponseWriter, r *http.Request) {
	s := r.URL.Query().Get("date")
	if s == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := parseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format, use YYYY-MM-DD")
		return
	}

	lines, err := h.projector.ShoppingListFor(r.Context(), date)
	if err != nil {
		writeServiceError(w, h.log, "shopping list", err, nil)
		return
	}

	resp := shoppingListResponse{Date: date.Format(dateLayout), Lines: make([]shoppingLineResponse, len(lines))}
	for i, l := range lines {
		resp.Lines[i] = shoppingLineResponse{
			IngredientID: l.IngredientID,
			Name:         l.Name,
			Unit:         string(l.Unit),
			Required:     l.Required.String(),
			InStock:      l.InStock.String(),
			ToPurchase:   l.ToPurchase.String(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func readNote(w http.ResponseWriter, r *http.Request) (string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	body := http.MaxBytesReader(w, r.Body, maxNoteBytes)

	if ct == "application/json" {
		var req noteRequest
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			return "", errors.New("invalid request body")
		}
		return req.Text, nil
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", errors.New("note too large or unreadable")
	}
	return string(raw), nil
}

func (h *PurchaseHandler) publishStock(resp receiveResponse) {
	if len(resp.Received) == 0 {
		return
	}
	h.events.Broadcast(enum.TopicKitchen, ws.Event{Type: enum.EventStockReceived, Data: resp.Received})
}

func toRecordResponse(rec service.PurchaseRecord) purchaseRecordResponse {
	return purchaseRecordResponse{
		Name:      rec.Name,
		Quantity:  rec.Quantity.String(),
		Unit:      rec.Unit,
		UnitPrice: rec.UnitPrice.Round(quantityPlaces).String(),
	}
}

func toReceiveResponse(res *service.ReceiveResult, warnings []string) receiveResponse {
	resp := receiveResponse{
		Received:  make([]receivedLineResponse, len(res.Received)),
		Ambiguous: make([]ambiguousLineResponse, len(res.Ambiguous)),
		Dropped:   make([]purchaseRecordResponse, len(res.Dropped)),
		Warnings:  warnings,
	}
	for i, l := range res.Received {
		resp.Received[i] = receivedLineResponse{
			Record:         toRecordResponse(l.Record),
			IngredientID:   l.IngredientID,
			IngredientName: l.IngredientName,
			Amount:         l.Amount.String(),
			NewQuantity:    l.NewQuantity.String(),
		}
	}
	for i, l := range res.Ambiguous {
		resp.Ambiguous[i] = ambiguousLineResponse{Record: toRecordResponse(l.Record), Candidates: l.Candidates}
	}
	for i, rec := range res.Dropped {
		resp.Dropped[i] = toRecordResponse(rec)
	}
	return resp
}
