package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dejobratic/checkout/internal/orders/domain"
)

type errorBody struct {
	Kind      domain.ErrorKind `json:"kind"`
	Message   string           `json:"message"`
	Field     string           `json:"field,omitempty"`
	ProductID string           `json:"product_id,omitempty"`
	Size      string           `json:"size,omitempty"`
	Requested int              `json:"requested,omitempty"`
	Available *int             `json:"available,omitempty"`
}

var statusByKind = map[domain.ErrorKind]int{
	domain.KindValidation:        http.StatusBadRequest,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindInsufficientStock: http.StatusConflict,
	domain.KindUnauthorized:      http.StatusForbidden,
	domain.KindPaymentSignature:  http.StatusBadRequest,
	domain.KindGateway:           http.StatusBadGateway,
	domain.KindConflict:          http.StatusConflict,
}

// writeDomainError maps err to a status and a structured body. Internal
// failures are logged and reported without detail.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, actor domain.Actor, err error) {
	kind := domain.KindOf(err)
	status, known := statusByKind[kind]
	if !known {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{
			"error": {Kind: domain.KindInternal, Message: "internal error"},
		})
		return
	}
	if kind == domain.KindUnauthorized && !actor.Authenticated() {
		status = http.StatusUnauthorized
	}

	body := errorBody{Kind: kind, Message: err.Error()}

	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		body.Field = validation.Field
	}
	var stock *domain.InsufficientStockError
	if errors.As(err, &stock) {
		body.ProductID = stock.ProductID
		body.Size = stock.Size.String()
		body.Requested = stock.Requested
		body.Available = &stock.Available
	}

	if kind == domain.KindGateway {
		h.logger.WarnContext(r.Context(), "payment gateway call failed", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, map[string]errorBody{"error": body})
}

func (h *Handler) writeValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	h.writeDomainError(w, r, domain.Actor{}, &domain.ValidationError{Field: field, Message: message})
}

// logPartialFailure records an operation that took effect but whose follow-up failed.
func (h *Handler) logPartialFailure(r *http.Request, orderID string, err error) {
	h.logger.LogAttrs(r.Context(), slog.LevelWarn, "order updated with errors",
		slog.String("order_id", orderID),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
}
