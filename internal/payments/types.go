package payments

import "encoding/json"

// Payment statuses surfaced by the provider. Only approved settles tickets.
const (
	StatusApproved  = "approved"
	StatusPending   = "pending"
	StatusInProcess = "in_process"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

type PreferenceItem struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	CategoryID  string  `json:"category_id,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

type PreferencePayer struct {
	Name    string `json:"name,omitempty"`
	Surname string `json:"surname,omitempty"`
	Email   string `json:"email"`
}

type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest is the outbound checkout-preference creation payload.
// ExternalReference is stored verbatim by the provider and echoed back in
// the payment detail.
type PreferenceRequest struct {
	Items             []PreferenceItem  `json:"items"`
	Payer             PreferencePayer   `json:"payer"`
	BackURLs          BackURLs          `json:"back_urls"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url"`
	ExternalReference string            `json:"external_reference"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Expires           bool              `json:"expires"`
	BinaryMode        bool              `json:"binary_mode"`
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type PaymentPayer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Payment is the authoritative payment detail fetched by id.
type Payment struct {
	ID                json.Number  `json:"id"`
	Status            string       `json:"status"`
	TransactionAmount float64      `json:"transaction_amount"`
	ExternalReference string       `json:"external_reference"`
	PaymentMethodID   string       `json:"payment_method_id"`
	Payer             PaymentPayer `json:"payer"`
}
