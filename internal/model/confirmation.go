package model

import "time"

// PurchaseConfirmation is the email job published to the notification queue
// after settlement. Publishing is fire-and-forget: a failure here never rolls
// back or blocks the settlement.
type PurchaseConfirmation struct {
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Numbers     []int64   `json:"numbers"`
	Amount      float64   `json:"amount"`
	PaymentID   string    `json:"payment_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}
