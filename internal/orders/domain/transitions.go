package domain

import "time"

var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransitionTo reports whether next directly follows s in the lifecycle.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionTo moves the order to next, stamping lifecycle timestamps.
// Gateway orders cannot advance until their payment has completed.
func (o *Order) TransitionTo(next OrderStatus, at time.Time) error {
	if o.Status.IsTerminal() || !o.Status.CanTransitionTo(next) {
		return &ConflictError{From: string(o.Status), To: string(next)}
	}
	if next != StatusCancelled && o.PaymentMethod == PaymentMethodGateway && o.PaymentStatus != PaymentCompleted {
		return &ConflictError{From: "payment_" + string(o.PaymentStatus), To: string(next)}
	}

	o.Status = next
	switch next {
	case StatusDelivered:
		o.DeliveredAt = &at
		if o.PaymentMethod == PaymentMethodCashOnDelivery && o.PaidAt == nil {
			o.PaidAt = &at
		}
	case StatusCancelled:
		o.CancelledAt = &at
	}
	o.touch(at)
	return nil
}

// AttachPaymentIntent records the gateway order created for this order.
func (o *Order) AttachPaymentIntent(gatewayOrderID string, at time.Time) error {
	if o.PaymentMethod != PaymentMethodGateway {
		return &ValidationError{Field: "payment_method", Message: "order is not paid through the gateway"}
	}
	if o.Status != StatusPending || o.PaymentStatus != PaymentPending {
		return &ConflictError{From: string(o.Status) + "/payment_" + string(o.PaymentStatus), To: "payment_intent"}
	}
	if o.GatewayOrderID != "" {
		return &ConflictError{From: "payment_intent " + o.GatewayOrderID, To: "payment_intent " + gatewayOrderID}
	}
	o.GatewayOrderID = gatewayOrderID
	o.touch(at)
	return nil
}

// MarkPaid completes gateway payment and confirms the order for fulfilment.
func (o *Order) MarkPaid(paymentID string, at time.Time) error {
	if err := o.requireOpenPayment(PaymentCompleted); err != nil {
		return err
	}
	if o.Status != StatusPending {
		return &ConflictError{From: string(o.Status), To: string(StatusProcessing)}
	}

	o.PaymentStatus = PaymentCompleted
	o.Status = StatusProcessing
	o.GatewayPaymentID = paymentID
	o.PaidAt = &at
	o.touch(at)
	return nil
}

// MarkPaymentFailed settles the payment as failed and cancels the order.
// An order the owner already cancelled only has its payment settled.
func (o *Order) MarkPaymentFailed(reason string, at time.Time) error {
	if err := o.requireOpenPayment(PaymentFailed); err != nil {
		return err
	}
	if o.Status != StatusCancelled && !o.Status.CanTransitionTo(StatusCancelled) {
		return &ConflictError{From: string(o.Status), To: string(StatusCancelled)}
	}

	o.PaymentStatus = PaymentFailed
	o.PaymentFailureReason = reason
	if o.Status != StatusCancelled {
		o.Status = StatusCancelled
		o.CancelledAt = &at
	}
	o.touch(at)
	return nil
}

// requireOpenPayment guards settling the gateway payment as outcome.
func (o *Order) requireOpenPayment(outcome PaymentStatus) error {
	switch {
	case o.PaymentMethod != PaymentMethodGateway:
		return &ValidationError{Field: "payment_method", Message: "order is not paid through the gateway"}
	case o.PaymentStatus.IsTerminal():
		return &ConflictError{From: "payment_" + string(o.PaymentStatus), To: "payment_" + string(outcome)}
	case o.PaymentStatus != PaymentPending:
		return &ValidationError{Field: "payment_status", Message: "has no open gateway payment"}
	}
	return nil
}

func (o *Order) touch(at time.Time) {
	o.UpdatedAt = at
	o.Version++
}
