package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dejobratic/checkout/internal/orders/app"
	"github.com/dejobratic/checkout/internal/orders/domain"
	"github.com/dejobratic/checkout/internal/orders/ports"
)

const (
	headerUserID         = "X-User-ID"
	headerUserRole       = "X-User-Role"
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"

	maxBodyBytes = 1 << 20
	// createTimeout bounds a checkout that other requests with the same key may be waiting on.
	createTimeout = 30 * time.Second
)

// Handler exposes HTTP endpoints for checkout operations.
type Handler struct {
	service *app.Service
	logger  *slog.Logger
	ready   func(context.Context) error

	// creates collapses concurrent requests that share an idempotency key.
	creates singleflight.Group
}

type Option func(*Handler)

// WithReadinessCheck makes /readyz report the result of check.
func WithReadinessCheck(check func(context.Context) error) Option {
	return func(h *Handler) {
		h.ready = check
	}
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register binds the checkout handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/orders", h.createOrder)
	mux.HandleFunc("GET /v1/orders", h.listOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /v1/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /v1/orders/{id}/status", h.changeStatus)
	mux.HandleFunc("POST /v1/orders/{id}/payment-intent", h.createPaymentIntent)
	mux.HandleFunc("POST /v1/orders/{id}/payment-failure", h.failPayment)
	mux.HandleFunc("POST /v1/payments/verify", h.verifyPayment)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
}

// actorFrom reads the identity set by the upstream auth proxy.
func actorFrom(r *http.Request) domain.Actor {
	role := domain.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole))))
	if role != domain.RoleAdmin {
		role = domain.RoleUser
	}
	return domain.Actor{UserID: strings.TrimSpace(r.Header.Get(headerUserID)), Role: role}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.Authenticated() {
		h.writeDomainError(w, r, actor, &domain.UnauthorizedError{Reason: "authentication required"})
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	if idemKey == "" {
		h.writeValidationError(w, r, headerIdempotencyKey, "header is required")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeValidationError(w, r, "body", "could not be read")
		return
	}

	scoped := ports.ScopedKey(actor.UserID, idemKey)
	// The checkout outlives the request that started it: a client that hangs
	// up must not fail the retries waiting on the same key.
	result, err, _ := h.creates.Do(scoped, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), createTimeout)
		defer cancel()
		return h.createOnce(ctx, actor, scoped, payload)
	})
	if err != nil {
		h.writeDomainError(w, r, actor, err)
		return
	}

	reply := result.(replay)
	if reply.replayed {
		w.Header().Set(headerReplayed, "true")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.response.StatusCode)
	_, _ = w.Write(reply.response.Body)
}

type replay struct {
	response ports.StoredResponse
	replayed bool
}

// createOnce replays a stored response for the key or places the order and
// stores its response. Failed attempts are not stored so the client may retry.
func (h *Handler) createOnce(ctx context.Context, actor domain.Actor, key string, payload []byte) (replay, error) {
	stored, err := h.service.GetIdempotentResponse(ctx, key)
	if err != nil {
		return replay{}, err
	}
	if stored != nil {
		return replay{response: *stored, replayed: true}, nil
	}

	var input app.CreateOrderInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return replay{}, &domain.ValidationError{Field: "body", Message: "invalid JSON payload"}
	}

	order, err := h.service.CreateOrder(ctx, actor, input)
	if err != nil {
		return replay{}, err
	}

	body, err := json.Marshal(map[string]any{"order": order})
	if err != nil {
		return replay{}, err
	}

	response := ports.StoredResponse{
		StatusCode: http.StatusCreated,
		Body:       body,
		OrderID:    order.ID,
	}
	if err := h.service.SaveIdempotentResponse(ctx, key, response); err != nil {
		// the order exists; a retry with this key would place a second one
		h.logger.ErrorContext(ctx, "failed to store idempotent response",
			"order_id", order.ID,
			"error", err,
		)
	}
	return replay{response: response}, nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	order, err := h.service.GetOrder(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, actor, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	query := r.URL.Query()

	var input app.ListOrdersInput
	if raw := query.Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			h.writeDomainError(w, r, actor, err)
			return
		}
		input.Status = &status
	}

	for _, param := range []struct {
		name   string
		target *int
	}{
		{"page", &input.Page},
		{"page_size", &input.PageSize},
	} {
		raw := query.Get(param.name)
		if raw == "" {
			continue
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			h.writeValidationError(w, r, param.name, "must be an integer")
			return
		}
		*param.target = value
	}

	orders, err := h.service.ListOrders(r.Context(), actor, input)
	if err != nil {
		h.writeDomainError(w, r, actor, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	var req reasonRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), actor, r.PathValue("id"), req.Reason)
	h.writeOrderResult(w, r, actor, order, err)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.service.ChangeStatus(r.Context(), actor, r.PathValue("id"), domain.OrderStatus(req.Status))
	h.writeOrderResult(w, r, actor, order, err)
}

func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	id := r.PathValue("id")

	gatewayOrderID, err := h.service.CreatePaymentIntent(r.Context(), actor, id)
	if err != nil {
		h.writeDomainError(w, r, actor, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"order_id":         id,
		"gateway_order_id": gatewayOrderID,
	})
}

func (h *Handler) failPayment(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	var req reasonRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	order, err := h.service.FailPayment(r.Context(), actor, r.PathValue("id"), req.Reason)
	h.writeOrderResult(w, r, actor, order, err)
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var input app.VerifyPaymentInput
	if !h.decode(w, r, &input) {
		return
	}

	order, err := h.service.VerifyPayment(r.Context(), input)
	h.writeOrderResult(w, r, actorFrom(r), order, err)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeOrderResult reports an order that changed even when a follow-up step
// such as returning stock failed; that failure is logged instead.
func (h *Handler) writeOrderResult(w http.ResponseWriter, r *http.Request, actor domain.Actor, order *domain.Order, err error) {
	if err != nil && order == nil {
		h.writeDomainError(w, r, actor, err)
		return
	}
	if err != nil {
		h.logPartialFailure(r, order.ID, err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.writeValidationError(w, r, "body", "invalid JSON payload")
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		h.writeValidationError(w, r, "body", "invalid JSON payload")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
