package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/payments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentClient struct {
	mock.Mock
}

func (m *MockPaymentClient) CreatePreference(ctx context.Context, req *payments.PreferenceRequest, idempotencyKey string) (*payments.Preference, error) {
	args := m.Called(ctx, req, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Preference), args.Error(1)
}

func testCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		RaffleID:   1,
		RaffleName: "Rifa Digital",
		UnitPrice:  1000,
		PublicURL:  "https://rifa.example.com",
	}
}

func TestCheckoutService_Checkout(t *testing.T) {
	ctx := context.Background()
	buyer := int64(42)

	t.Run("successful checkout", func(t *testing.T) {
		repo := new(MockTicketRepository)
		client := new(MockPaymentClient)
		reservations := NewReservationService(repo, 1, 100)
		svc := NewCheckoutService(reservations, client, testCheckoutConfig())

		for _, n := range []int64{10, 20} {
			repo.On("Get", ctx, int64(1), n).Return(availableTicket(n), nil)
			repo.On("TryTransition", ctx, int64(1), n,
				model.TicketStatusAvailable, int64(0),
				model.TicketStatusReserved, &buyer).Return(int64(1), nil)
		}

		client.On("CreatePreference", ctx, mock.MatchedBy(func(req *payments.PreferenceRequest) bool {
			ref, err := model.DecodePaymentReference(req.ExternalReference)
			if err != nil {
				return false
			}
			return ref.UserID == buyer &&
				len(ref.Numbers) == 2 &&
				len(req.Items) == 1 &&
				req.Items[0].Quantity == 2 &&
				req.Items[0].UnitPrice == 1000 &&
				req.NotificationURL == "https://rifa.example.com/api/v1/webhooks/payments"
		}), mock.AnythingOfType("string")).Return(&payments.Preference{
			ID:        "pref-1",
			InitPoint: "https://pay.example.com/pref-1",
		}, nil)

		resp, err := svc.Checkout(ctx, CheckoutRequest{
			BuyerID: buyer,
			Email:   "buyer@example.com",
			Numbers: []int64{10, 20},
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 20}, resp.Reserved)
		assert.Equal(t, float64(2000), resp.Total)
		assert.Equal(t, "pref-1", resp.PreferenceID)
		assert.Equal(t, "https://pay.example.com/pref-1", resp.RedirectURL)

		repo.AssertExpectations(t)
		client.AssertExpectations(t)
	})

	t.Run("nothing reserved skips the provider", func(t *testing.T) {
		repo := new(MockTicketRepository)
		client := new(MockPaymentClient)
		reservations := NewReservationService(repo, 1, 100)
		svc := NewCheckoutService(reservations, client, testCheckoutConfig())

		taken := availableTicket(10)
		taken.Status = model.TicketStatusSold
		repo.On("Get", ctx, int64(1), int64(10)).Return(taken, nil)

		resp, err := svc.Checkout(ctx, CheckoutRequest{
			BuyerID: buyer,
			Numbers: []int64{10},
		})
		assert.ErrorIs(t, err, ErrNothingReserved)
		require.NotNil(t, resp)
		assert.Equal(t, []int64{10}, resp.Rejected)
		client.AssertNotCalled(t, "CreatePreference")
	})

	t.Run("provider failure releases the reservation", func(t *testing.T) {
		repo := new(MockTicketRepository)
		client := new(MockPaymentClient)
		reservations := NewReservationService(repo, 1, 100)
		svc := NewCheckoutService(reservations, client, testCheckoutConfig())

		repo.On("Get", ctx, int64(1), int64(10)).Return(availableTicket(10), nil).Once()
		repo.On("TryTransition", ctx, int64(1), int64(10),
			model.TicketStatusAvailable, int64(0),
			model.TicketStatusReserved, &buyer).Return(int64(1), nil).Once()

		client.On("CreatePreference", ctx, mock.Anything, mock.Anything).
			Return(nil, errors.New("provider down"))

		// release path
		held := availableTicket(10)
		held.Status = model.TicketStatusReserved
		held.Version = 1
		held.OwnerID = &buyer
		repo.On("Get", ctx, int64(1), int64(10)).Return(held, nil).Once()
		repo.On("TryTransition", ctx, int64(1), int64(10),
			model.TicketStatusReserved, int64(1),
			model.TicketStatusAvailable, (*int64)(nil)).Return(int64(2), nil).Once()

		_, err := svc.Checkout(ctx, CheckoutRequest{
			BuyerID: buyer,
			Numbers: []int64{10},
		})
		assert.Error(t, err)

		repo.AssertExpectations(t)
		client.AssertExpectations(t)
	})
}
