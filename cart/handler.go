package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"eventhour-gateway/cart/application"
	"eventhour-gateway/cart/domain"
	"eventhour-gateway/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultSessionCookie = "eventhour_session"
	PersistWarningHeader = "X-Cart-Persist-Warning"

	// MaxBodyBytes limita o corpo JSON das requisições do carrinho.
	MaxBodyBytes = 16 << 10
)

type Handler struct {
	sessions *application.Sessions
	cookie   string
	log      *logger.Logger
}

func NewHandler(sessions *application.Sessions, cookie string, log *logger.Logger) *Handler {
	if cookie == "" {
		cookie = DefaultSessionCookie
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{sessions: sessions, cookie: cookie, log: log}
}

// Routes monta as rotas do carrinho num subrouter chi.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.session)
	r.Get("/", h.GetCart)
	r.Delete("/", h.ClearCart)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{id}", h.UpdateQuantity)
	r.Delete("/items/{id}", h.RemoveItem)
	return r
}

type AddItemRequestDTO struct {
	ID           string          `json:"id"`
	ExperienceID string          `json:"experienceId"`
	Title        string          `json:"title"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Date         string          `json:"date"`
	Participants int             `json:"participants"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartResponseDTO struct {
	Items      []domain.Item `json:"items"`
	TotalItems int           `json:"totalItems"`
	TotalPrice string        `json:"totalPrice"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type sessionKey struct{}

// session garante um id de sessão via cookie e injeta o Store no context.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(h.cookie); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     h.cookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(30 * 24 * time.Hour),
			})
		}

		ctx := h.log.WithField(r.Context(), "session", id)
		store := h.sessions.Get(ctx, id)
		ctx = context.WithValue(ctx, sessionKey{}, store)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func storeFrom(ctx context.Context) *application.Store {
	s, _ := ctx.Value(sessionKey{}).(*application.Store)
	return s
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondCart(w, http.StatusOK, storeFrom(r.Context()))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := storeFrom(ctx)

	var req AddItemRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	err := store.AddItem(ctx, domain.Item{
		ID:           req.ID,
		ExperienceID: req.ExperienceID,
		Title:        req.Title,
		Price:        req.Price,
		Quantity:     req.Quantity,
		Date:         req.Date,
		Participants: req.Participants,
	})
	if errors.Is(err, application.ErrInvalidItem) {
		respondError(w, http.StatusBadRequest, "invalid_item", err.Error())
		return
	}
	if err != nil {
		h.log.Error(ctx, "cart.add.failed", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondCart(w, http.StatusCreated, store)
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := storeFrom(ctx)

	var req UpdateQuantityRequestDTO
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "quantity is required")
		return
	}
	if *req.Quantity > domain.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", fmt.Sprintf("quantity must be at most %d", domain.MaxQuantity))
		return
	}

	if !store.UpdateQuantity(ctx, chi.URLParam(r, "id"), *req.Quantity) {
		respondError(w, http.StatusNotFound, "not_found", "item not in cart")
		return
	}
	respondCart(w, http.StatusOK, store)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := storeFrom(ctx)

	store.RemoveItem(ctx, chi.URLParam(r, "id"))
	respondCart(w, http.StatusOK, store)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := storeFrom(ctx)

	store.Clear(ctx)
	respondCart(w, http.StatusOK, store)
}

// decodeBody lê o JSON com limite de tamanho; em caso de erro já responde (400/413).
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", fmt.Sprintf("body exceeds %d bytes", MaxBodyBytes))
		return false
	}
	respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
	return false
}

func respondCart(w http.ResponseWriter, status int, store *application.Store) {
	if store.PersistErr() != nil {
		w.Header().Set(PersistWarningHeader, "cart not persisted")
	}

	c := store.Cart()
	if c.Items == nil {
		c.Items = []domain.Item{}
	}
	respondJSON(w, status, CartResponseDTO{
		Items:      c.Items,
		TotalItems: c.TotalItems(),
		TotalPrice: c.TotalPrice().StringFixed(2),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}
