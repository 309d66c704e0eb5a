package models

// PaymentStatus values reported back by the checkout provider.
const (
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
	PaymentStatusCancelled = "cancelled"
)

// PaymentIntent is the upstream answer to a payment initialization.
type PaymentIntent struct {
	CheckoutURL string  `json:"checkout_url"`
	Reference   string  `json:"reference"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
}

// PaymentResult is what the viewer returns with from the checkout provider.
type PaymentResult struct {
	Reference         string `json:"reference"`
	Status            string `json:"status"`
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
}

// Succeeded reports whether the provider confirmed the charge.
func (r PaymentResult) Succeeded() bool {
	return r.Status == PaymentStatusSuccess
}
