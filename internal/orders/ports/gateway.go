package ports

import "context"

// IntentRequest describes the amount to collect for an order.
type IntentRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

// PaymentGateway creates payment intents and checks callback signatures.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (string, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}
