package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/donana/kitchen-api/internal/database"
	"github.com/donana/kitchen-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CatalogServicer defines the catalog operations used by CatalogHandler.
// Satisfied by *service.CatalogService.
type CatalogServicer interface {
	ListActiveDishes(ctx context.Context) ([]database.Dish, error)
	ListDishes(ctx context.Context) ([]database.Dish, error)
	RecipeFor(ctx context.Context, dishID uuid.UUID) ([]service.RecipeEntry, error)
	ListIngredients(ctx context.Context) ([]database.Ingredient, error)
	CreateIngredient(ctx context.Context, req service.CreateIngredientRequest) (database.Ingredient, error)
	CreateDish(ctx context.Context, req service.CreateDishRequest) (*service.DishResult, error)
	SetDishActive(ctx context.Context, id uuid.UUID, active bool) (database.Dish, error)
}

// StockReader reads the quantity on hand of one ingredient.
// Satisfied by *service.LedgerService.
type StockReader interface {
	StockOf(ctx context.Context, ingredientID uuid.UUID) (decimal.Decimal, error)
}

// CatalogHandler serves the menu and ingredient registration.
type CatalogHandler struct {
	svc   CatalogServicer
	stock StockReader
	log   logrus.FieldLogger
}

func NewCatalogHandler(svc CatalogServicer, stock StockReader, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{svc: svc, stock: stock, log: log}
}

// RegisterRoutes mounts the menu routes any caller may read.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dishes", h.ListMenu)
	r.Get("/dishes/{id}/recipe", h.Recipe)
}

// RegisterAdminRoutes mounts catalog maintenance under an admin subrouter.
func (h *CatalogHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/dishes", h.ListAllDishes)
	r.Post("/dishes", h.CreateDish)
	r.Patch("/dishes/{id}/active", h.SetActive)
	r.Get("/ingredients", h.ListIngredients)
	r.Post("/ingredients", h.CreateIngredient)
	r.Get("/ingredients/{id}/stock", h.Stock)
}

var catalogErrors = []errorStatus{
	{service.ErrNameRequired, http.StatusBadRequest},
	{service.ErrInvalidUnit, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidPrice, http.StatusBadRequest},
	{service.ErrInvalidIngredientID, http.StatusBadRequest},
	{service.ErrInvalidRecipeQty, http.StatusBadRequest},
	{service.ErrDuplicateIngredient, http.StatusBadRequest},
	{service.ErrIngredientNotFound, http.StatusNotFound},
	{service.ErrDishNotFound, http.StatusNotFound},
	{service.ErrDuplicateName, http.StatusConflict},
}

// --- Request / Response types ---

type dishResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       string    `json:"price"`
	PhotoURL    *string   `json:"photo_url"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type recipeLineResponse struct {
	IngredientID       uuid.UUID `json:"ingredient_id"`
	IngredientName     string    `json:"ingredient_name,omitempty"`
	Unit               string    `json:"unit,omitempty"`
	QuantityPerServing string    `json:"quantity_per_serving"`
}

type dishDetailResponse struct {
	dishResponse
	Recipe []recipeLineResponse `json:"recipe"`
}

type ingredientResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Quantity  string    `json:"quantity"`
	UnitCost  string    `json:"unit_cost"`
	UpdatedAt time.Time `json:"updated_at"`
}

type createDishRequest struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       string              `json:"price"`
	PhotoURL    string              `json:"photo_url"`
	Recipe      []recipeLineRequest `json:"recipe"`
}

type recipeLineRequest struct {
	IngredientID       string `json:"ingredient_id"`
	QuantityPerServing string `json:"quantity_per_serving"`
}

type createIngredientRequest struct {
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
	UnitCost string `json:"unit_cost"`
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// --- Handlers ---

// ListMenu handles GET /dishes.
func (h *CatalogHandler) ListMenu(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.svc.ListActiveDishes(r.Context())
	if err != nil {
		writeServiceError(w, h.log, "list menu", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toDishResponses(dishes))
}

// ListAllDishes handles GET /admin/dishes.
func (h *CatalogHandler) ListAllDishes(w http.ResponseWriter, r *http.Request) {
	dishes, err := h.svc.ListDishes(r.Context())
	if err != nil {
		writeServiceError(w, h.log, "list dishes", err, nil)
		return
	}
	writeJSON(w, http.StatusOK, toDishResponses(dishes))
}

// Recipe handles GET /dishes/{id}/recipe.
func (h *CatalogHandler) Recipe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dish ID")
		return
	}

	entries, err := h.svc.RecipeFor(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "recipe", err, nil)
		return
	}

	resp := make([]recipeLineResponse, len(entries))
	for i, e := range entries {
		resp[i] = recipeLineResponse{
			IngredientID:       e.IngredientID,
			IngredientName:     e.IngredientName,
			Unit:               e.Unit,
			QuantityPerServing: e.QuantityPerServing.String(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateDish handles POST /admin/dishes.
func (h *CatalogHandler) CreateDish(w http.ResponseWriter, r *http.Request) {
	var req createDishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	recipe := make([]service.RecipeInput, len(req.Recipe))
	for i, l := range req.Recipe {
		recipe[i] = service.RecipeInput{IngredientID: l.IngredientID, QuantityPerServing: l.QuantityPerServing}
	}

	res, err := h.svc.CreateDish(r.Context(), service.CreateDishRequest{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		PhotoURL:    req.PhotoURL,
		Recipe:      recipe,
	})
	if err != nil {
		writeServiceError(w, h.log, "create dish", err, catalogErrors)
		return
	}

	lines := make([]recipeLineResponse, len(res.Recipe))
	for i, l := range res.Recipe {
		lines[i] = recipeLineResponse{
			IngredientID:       l.IngredientID,
			QuantityPerServing: quantityString(l.QuantityPerServing),
		}
	}
	writeJSON(w, http.StatusCreated, dishDetailResponse{dishResponse: toDishResponse(res.Dish), Recipe: lines})
}

// SetActive handles PATCH /admin/dishes/{id}/active.
func (h *CatalogHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid dish ID")
		return
	}

	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "active is required")
		return
	}

	dish, err := h.svc.SetDishActive(r.Context(), id, *req.Active)
	if err != nil {
		writeServiceError(w, h.log, "set dish active", err, catalogErrors)
		return
	}
	writeJSON(w, http.StatusOK, toDishResponse(dish))
}

// ListIngredients handles GET /admin/ingredients.
func (h *CatalogHandler) ListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.svc.ListIngredients(r.Context())
	if err != nil {
		writeServiceError(w, h.log, "list ingredients", err, nil)
		return
	}
	resp := make([]ingredientResponse, len(ingredients))
	for i, ing := range ingredients {
		resp[i] = toIngredientResponse(ing)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateIngredient handles POST /admin/ingredients.
func (h *CatalogHandler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req createIngredientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ing, err := h.svc.CreateIngredient(r.Context(), service.CreateIngredientRequest{
		Name:     req.Name,
		Unit:     req.Unit,
		Quantity: req.Quantity,
		UnitCost: req.UnitCost,
	})
	if err != nil {
		writeServiceError(w, h.log, "create ingredient", err, catalogErrors)
		return
	}
	writeJSON(w, http.StatusCreated, toIngredientResponse(ing))
}

// Stock handles GET /admin/ingredients/{id}/stock.
func (h *CatalogHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid ingredient ID")
		return
	}

	qty, err := h.stock.StockOf(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, "stock of", err, catalogErrors)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ingredient_id": id.String(),
		"quantity":      qty.String(),
	})
}

// --- Helpers ---

func toDishResponse(d database.Dish) dishResponse {
	resp := dishResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       numericString(d.Price, 2),
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
	}
	if d.PhotoUrl.Valid {
		resp.PhotoURL = &d.PhotoUrl.String
	}
	return resp
}

func toDishResponses(dishes []database.Dish) []dishResponse {
	resp := make([]dishResponse, len(dishes))
	for i, d := range dishes {
		resp[i] = toDishResponse(d)
	}
	return resp
}

func toIngredientResponse(ing database.Ingredient) ingredientResponse {
	return ingredientResponse{
		ID:        ing.ID,
		Name:      ing.Name,
		Unit:      ing.Unit,
		Quantity:  quantityString(ing.Quantity),
		UnitCost:  quantityString(ing.UnitCost),
		UpdatedAt: ing.UpdatedAt,
	}
}
