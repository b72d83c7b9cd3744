package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/payments"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
)

var ErrNothingReserved = errors.New("no numbers could be reserved")

type PaymentPreferenceClient interface {
	CreatePreference(ctx context.Context, req *payments.PreferenceRequest, idempotencyKey string) (*payments.Preference, error)
}

type CheckoutConfig struct {
	RaffleID   int64
	RaffleName string
	UnitPrice  float64
	PublicURL  string
}

type CheckoutRequest struct {
	BuyerID int64   `json:"buyer_id"`
	Email   string  `json:"email"`
	Name    string  `json:"name"`
	Surname string  `json:"surname"`
	Numbers []int64 `json:"numbers"`
}

type CheckoutResponse struct {
	Reserved     []int64 `json:"reserved"`
	Rejected     []int64 `json:"rejected"`
	Total        float64 `json:"total"`
	PreferenceID string  `json:"preference_id"`
	RedirectURL  string  `json:"redirect_url"`
}

// CheckoutService reserves the buyer's numbers and opens a hosted checkout
// for them. Reservation and payment stay two separate steps: a reservation
// that cannot reach the provider is rolled back so the numbers return to the
// pool instead of waiting for the expiry sweeper.
type CheckoutService struct {
	reservations *ReservationService
	payments     PaymentPreferenceClient
	config       CheckoutConfig
}

func NewCheckoutService(reservations *ReservationService, paymentClient PaymentPreferenceClient, config CheckoutConfig) *CheckoutService {
	return &CheckoutService{
		reservations: reservations,
		payments:     paymentClient,
		config:       config,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	reservation, err := s.reservations.Reserve(ctx, s.config.RaffleID, req.Numbers, req.BuyerID)
	if err != nil {
		return nil, err
	}

	resp := &CheckoutResponse{
		Reserved: reservation.Reserved,
		Rejected: reservation.Rejected,
	}

	if len(reservation.Reserved) == 0 {
		return resp, ErrNothingReserved
	}

	reference := model.PaymentReference{
		UserID:  req.BuyerID,
		Numbers: reservation.Reserved,
	}
	encodedRef, err := reference.Encode()
	if err != nil {
		s.releaseReserved(ctx, reservation.Reserved, req.BuyerID)
		return nil, err
	}

	resp.Total = s.config.UnitPrice * float64(len(reservation.Reserved))

	prefReq := &payments.PreferenceRequest{
		Items: []payments.PreferenceItem{
			{
				Title:       fmt.Sprintf("%s - %d número(s)", s.config.RaffleName, len(reservation.Reserved)),
				Description: fmt.Sprintf("Números: %v", reservation.Reserved),
				CategoryID:  "tickets",
				Quantity:    len(reservation.Reserved),
				UnitPrice:   s.config.UnitPrice,
				CurrencyID:  "ARS",
			},
		},
		Payer: payments.PreferencePayer{
			Name:    req.Name,
			Surname: req.Surname,
			Email:   req.Email,
		},
		BackURLs: payments.BackURLs{
			Success: s.config.PublicURL + "/payment/success",
			Failure: s.config.PublicURL + "/payment/failure",
			Pending: s.config.PublicURL + "/payment/pending",
		},
		AutoReturn:        "approved",
		NotificationURL:   s.config.PublicURL + "/api/v1/webhooks/payments",
		ExternalReference: encodedRef,
		Metadata: map[string]string{
			"raffle_id": fmt.Sprintf("%d", s.config.RaffleID),
		},
		BinaryMode: false,
	}

	idempotencyKey := fmt.Sprintf("%d-%d", req.BuyerID, time.Now().UnixMilli())

	pref, err := s.payments.CreatePreference(ctx, prefReq, idempotencyKey)
	if err != nil {
		s.releaseReserved(ctx, reservation.Reserved, req.BuyerID)
		return nil, fmt.Errorf("open checkout: %w", err)
	}

	resp.PreferenceID = pref.ID
	resp.RedirectURL = pref.InitPoint

	logger.Info("checkout opened",
		"buyer_id", req.BuyerID,
		"numbers", len(reservation.Reserved),
		"total", resp.Total,
		"preference_id", pref.ID)

	return resp, nil
}

func (s *CheckoutService) releaseReserved(ctx context.Context, numbers []int64, buyerID int64) {
	released, err := s.reservations.Release(ctx, s.config.RaffleID, numbers, buyerID)
	if err != nil {
		logger.Warn("failed to release reservation after checkout failure",
			"buyer_id", buyerID,
			"numbers", numbers,
			"released", released,
			"error", err)
	}
}
