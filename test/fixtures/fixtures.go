package fixtures

import (
	"fmt"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/payments"
	"github.com/rifadigital/raffle-gateway/internal/services"
)

// WebhookSecret signs every fixture delivery.
const WebhookSecret = "test-webhook-secret"

// PaymentUpdateBody is the provider callback announcing a payment change.
func PaymentUpdateBody(paymentID int64) []byte {
	return []byte(fmt.Sprintf(`{"type":"payment","action":"payment.updated","data":{"id":%d}}`, paymentID))
}

// UnrelatedNotificationBody is a callback the pipeline must ignore.
func UnrelatedNotificationBody() []byte {
	return []byte(`{"type":"plan","action":"plan.updated","data":{"id":"plan-1"}}`)
}

// Sign produces the signature header value for a fixture body.
func Sign(body []byte) string {
	return payments.Sign(WebhookSecret, body)
}

// EncodeReference builds the external reference a checkout would have stored
// with the provider.
func EncodeReference(userID int64, numbers []int64) string {
	ref := model.PaymentReference{UserID: userID, Numbers: numbers}
	encoded, err := ref.Encode()
	if err != nil {
		panic(err)
	}
	return encoded
}

// ProviderPayment is the payment detail document a stub provider serves. The
// field layout mirrors what the real API returns.
type ProviderPayment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	TransactionAmount float64 `json:"transaction_amount"`
	ExternalReference string  `json:"external_reference"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"payer"`
}

func ApprovedPayment(id int64, reference string, amount float64, email, firstName string) ProviderPayment {
	p := ProviderPayment{
		ID:                id,
		Status:            payments.StatusApproved,
		TransactionAmount: amount,
		ExternalReference: reference,
		PaymentMethodID:   "account_money",
	}
	p.Payer.Email = email
	p.Payer.FirstName = firstName
	return p
}

func RejectedPayment(id int64, reference string) ProviderPayment {
	return ProviderPayment{
		ID:                id,
		Status:            payments.StatusRejected,
		ExternalReference: reference,
		PaymentMethodID:   "credit_card",
	}
}

func PendingPayment(id int64, reference string) ProviderPayment {
	return ProviderPayment{
		ID:                id,
		Status:            payments.StatusPending,
		ExternalReference: reference,
		PaymentMethodID:   "ticket",
	}
}

// NewCheckoutRequest is a valid checkout request for a buyer.
func NewCheckoutRequest(buyerID int64, numbers ...int64) services.CheckoutRequest {
	return services.CheckoutRequest{
		BuyerID: buyerID,
		Email:   fmt.Sprintf("buyer%d@example.com", buyerID),
		Name:    "Ana",
		Surname: "García",
		Numbers: numbers,
	}
}
