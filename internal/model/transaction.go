package model

import "time"

const TransactionStatusCompleted = "completed"

// Transaction is one completed purchase, appended exactly once per confirmed
// payment id. Rows are never updated or deleted here.
type Transaction struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	RaffleID      int64     `json:"raffle_id"`
	Amount        float64   `json:"amount"`
	PaymentID     string    `json:"payment_id"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
	Numbers       []int64   `json:"numbers"`
	CreatedAt     time.Time `json:"created_at"`
}
