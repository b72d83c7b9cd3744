package model

// RaffleStats is the admin aggregate view, read from the ticket store and
// the transaction ledger independently of the settlement path.
type RaffleStats struct {
	RaffleID     int64   `json:"raffle_id"`
	TotalNumbers int64   `json:"total_numbers"`
	Sold         int64   `json:"sold"`
	Reserved     int64   `json:"reserved"`
	Available    int64   `json:"available"`
	Revenue      float64 `json:"revenue"`
	Progress     float64 `json:"progress"`
}
