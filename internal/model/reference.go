package model

import (
	"encoding/json"
	"errors"
)

var ErrInvalidReference = errors.New("invalid payment reference")

// PaymentReference is the purchase intent round-tripped through the payment
// provider's external reference field. The provider stores it verbatim and
// echoes it back in the payment detail, which is the only place it is read.
type PaymentReference struct {
	UserID  int64   `json:"user_id"`
	Numbers []int64 `json:"numbers"`
}

func (r PaymentReference) Encode() (string, error) {
	if r.UserID == 0 || len(r.Numbers) == 0 {
		return "", ErrInvalidReference
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePaymentReference parses the echoed reference. A malformed reference
// is a data error: the caller must reject without touching the ticket store.
func DecodePaymentReference(s string) (PaymentReference, error) {
	var r PaymentReference
	if s == "" {
		return r, ErrInvalidReference
	}
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return r, ErrInvalidReference
	}
	if r.UserID == 0 || len(r.Numbers) == 0 {
		return r, ErrInvalidReference
	}
	return r, nil
}
