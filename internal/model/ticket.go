package model

import "time"

// TicketStatus is the lifecycle state of a raffle number.
type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "available"
	TicketStatusReserved  TicketStatus = "reserved"
	TicketStatusSold      TicketStatus = "sold"
)

// Ticket is one raffle number. Version is the optimistic-concurrency token:
// it increases on every successful transition and a stale version makes the
// conditional update match zero rows.
type Ticket struct {
	Number      int64        `json:"number"`
	RaffleID    int64        `json:"raffle_id"`
	Status      TicketStatus `json:"status"`
	OwnerID     *int64       `json:"owner_id,omitempty"`
	Version     int64        `json:"version"`
	ReservedAt  *time.Time   `json:"reserved_at,omitempty"`
	PurchasedAt *time.Time   `json:"purchased_at,omitempty"`
}

// ReservationResult reports per-number outcomes of a reserve call. A number
// lands in Rejected when its conditional update lost to another actor; that
// is a normal outcome, not an error.
type ReservationResult struct {
	Reserved []int64 `json:"reserved"`
	Rejected []int64 `json:"rejected"`
}

// SettlementResult reports how many numbers a webhook actually moved to sold.
type SettlementResult struct {
	Sold    []int64 `json:"sold"`
	Skipped []int64 `json:"skipped"`
}
