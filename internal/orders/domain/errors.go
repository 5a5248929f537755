package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for callers that need to react to them.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindPaymentSignature  ErrorKind = "payment_signature"
	KindGateway           ErrorKind = "gateway"
	KindConflict          ErrorKind = "conflict"
	KindInternal          ErrorKind = "internal"
)

// ValidationError reports a malformed request. Nothing has been changed when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports a missing product or order.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InsufficientStockError carries the offending line so clients can adjust the cart.
type InsufficientStockError struct {
	ProductID string
	Size      Size
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s: requested %d, available %d",
		e.ProductID, e.Size, e.Requested, e.Available)
}

// UnauthorizedError is returned when the actor is neither the owner nor an admin.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason == "" {
		return "not authorized"
	}
	return "not authorized: " + e.Reason
}

// PaymentSignatureError is returned when a gateway signature does not match.
type PaymentSignatureError struct {
	GatewayOrderID string
}

func (e *PaymentSignatureError) Error() string {
	return fmt.Sprintf("payment signature mismatch for gateway order %s", e.GatewayOrderID)
}

// GatewayError wraps an upstream payment gateway failure. Callers may retry.
type GatewayError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment gateway %s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ConflictError reports an illegal state transition.
type ConflictError struct {
	From string
	To   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// KindOf maps an error chain to its ErrorKind.
func KindOf(err error) ErrorKind {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		stock      *InsufficientStockError
		unauth     *UnauthorizedError
		signature  *PaymentSignatureError
		gateway    *GatewayError
		conflict   *ConflictError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &stock):
		return KindInsufficientStock
	case errors.As(err, &unauth):
		return KindUnauthorized
	case errors.As(err, &signature):
		return KindPaymentSignature
	case errors.As(err, &gateway):
		return KindGateway
	case errors.As(err, &conflict):
		return KindConflict
	default:
		return KindInternal
	}
}
