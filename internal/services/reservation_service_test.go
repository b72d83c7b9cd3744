package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Get(ctx context.Context, raffleID, number int64) (*model.Ticket, error) {
	args := m.Called(ctx, raffleID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Ticket), args.Error(1)
}

func (m *MockTicketRepository) TryTransition(ctx context.Context, raffleID, number int64, expectedStatus model.TicketStatus, expectedVersion int64, newStatus model.TicketStatus, ownerID *int64) (int64, error) {
	args := m.Called(ctx, raffleID, number, expectedStatus, expectedVersion, newStatus, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTicketRepository) ListByStatus(ctx context.Context, raffleID int64, status model.TicketStatus, limit int) ([]*model.Ticket, error) {
	args := m.Called(ctx, raffleID, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListByOwner(ctx context.Context, raffleID, ownerID int64) ([]*model.Ticket, error) {
	args := m.Called(ctx, raffleID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Ticket), args.Error(1)
}

func availableTicket(number int64) *model.Ticket {
	return &model.Ticket{
		Number:   number,
		RaffleID: 1,
		Status:   model.TicketStatusAvailable,
		Version:  0,
	}
}

func TestReservationService_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("missing buyer is rejected", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)

		_, err := svc.Reserve(ctx, 1, []int64{1}, 0)
		assert.ErrorIs(t, err, ErrInvalidBuyer)
	})

	t.Run("empty request returns empty result", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)

		result, err := svc.Reserve(ctx, 1, nil, 42)
		require.NoError(t, err)
		assert.Empty(t, result.Reserved)
		assert.Empty(t, result.Rejected)
		repo.AssertNotCalled(t, "Get")
	})

	t.Run("duplicates are requested once", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)
		buyer := int64(42)

		repo.On("Get", ctx, int64(1), int64(7)).Return(availableTicket(7), nil).Once()
		repo.On("TryTransition", ctx, int64(1), int64(7),
			model.TicketStatusAvailable, int64(0),
			model.TicketStatusReserved, &buyer).Return(int64(1), nil).Once()

		result, err := svc.Reserve(ctx, 1, []int64{7, 7, 7}, buyer)
		require.NoError(t, err)
		assert.Equal(t, []int64{7}, result.Reserved)

		repo.AssertExpectations(t)
	})

	t.Run("out of range numbers never hit the store", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)

		result, err := svc.Reserve(ctx, 1, []int64{0, 101}, 42)
		require.NoError(t, err)
		assert.Empty(t, result.Reserved)
		assert.ElementsMatch(t, []int64{0, 101}, result.Rejected)
		repo.AssertNotCalled(t, "Get")
	})

	t.Run("partial success with conflicts", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)
		buyer := int64(42)

		// 1 succeeds
		repo.On("Get", ctx, int64(1), int64(1)).Return(availableTicket(1), nil)
		repo.On("TryTransition", ctx, int64(1), int64(1),
			model.TicketStatusAvailable, int64(0),
			model.TicketStatusReserved, &buyer).Return(int64(1), nil)

		// 2 is already reserved by someone else
		reserved := availableTicket(2)
		reserved.Status = model.TicketStatusReserved
		repo.On("Get", ctx, int64(1), int64(2)).Return(reserved, nil)

		// 3 races out between read and swap
		repo.On("Get", ctx, int64(1), int64(3)).Return(availableTicket(3), nil)
		repo.On("TryTransition", ctx, int64(1), int64(3),
			model.TicketStatusAvailable, int64(0),
			model.TicketStatusReserved, &buyer).Return(int64(0), repository.ErrConflict)

		// 4 does not exist
		repo.On("Get", ctx, int64(1), int64(4)).Return(nil, repository.ErrNotFound)

		result, err := svc.Reserve(ctx, 1, []int64{1, 2, 3, 4}, buyer)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, result.Reserved)
		assert.Equal(t, []int64{2, 3, 4}, result.Rejected)

		repo.AssertExpectations(t)
	})

	t.Run("store failure rolls back earlier reservations", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)
		buyer := int64(42)

		repo.On("Get", ctx, int64(1), int64(1)).Return(availableTicket(1), nil).Once()
		repo.On("TryTransition", ctx, int64(1), int64(1),
			model.TicketStatusAvailable, int64(0),
			model.TicketStatusReserved, &buyer).Return(int64(1), nil).Once()

		repo.On("Get", ctx, int64(1), int64(2)).Return(nil, errors.New("connection reset")).Once()

		// rollback re-reads number 1 and releases it
		heldByBuyer := availableTicket(1)
		heldByBuyer.Status = model.TicketStatusReserved
		heldByBuyer.Version = 1
		heldByBuyer.OwnerID = &buyer
		repo.On("Get", ctx, int64(1), int64(1)).Return(heldByBuyer, nil).Once()
		repo.On("TryTransition", ctx, int64(1), int64(1),
			model.TicketStatusReserved, int64(1),
			model.TicketStatusAvailable, (*int64)(nil)).Return(int64(2), nil).Once()

		_, err := svc.Reserve(ctx, 1, []int64{1, 2}, buyer)
		assert.Error(t, err)

		repo.AssertExpectations(t)
	})
}

func TestReservationService_Release(t *testing.T) {
	ctx := context.Background()
	buyer := int64(42)

	t.Run("releases own reservation", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)

		held := availableTicket(5)
		held.Status = model.TicketStatusReserved
		held.Version = 1
		held.OwnerID = &buyer

		repo.On("Get", ctx, int64(1), int64(5)).Return(held, nil)
		repo.On("TryTransition", ctx, int64(1), int64(5),
			model.TicketStatusReserved, int64(1),
			model.TicketStatusAvailable, (*int64)(nil)).Return(int64(2), nil)

		released, err := svc.Release(ctx, 1, []int64{5}, buyer)
		require.NoError(t, err)
		assert.Equal(t, []int64{5}, released)

		repo.AssertExpectations(t)
	})

	t.Run("skips numbers held by someone else", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)

		other := int64(7)
		held := availableTicket(5)
		held.Status = model.TicketStatusReserved
		held.OwnerID = &other

		repo.On("Get", ctx, int64(1), int64(5)).Return(held, nil)

		released, err := svc.Release(ctx, 1, []int64{5}, buyer)
		require.NoError(t, err)
		assert.Empty(t, released)
		repo.AssertNotCalled(t, "TryTransition")
	})

	t.Run("skips sold numbers", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)

		sold := availableTicket(5)
		sold.Status = model.TicketStatusSold
		sold.OwnerID = &buyer

		repo.On("Get", ctx, int64(1), int64(5)).Return(sold, nil)

		released, err := svc.Release(ctx, 1, []int64{5}, buyer)
		require.NoError(t, err)
		assert.Empty(t, released)
	})

	t.Run("conflict on release is ignored", func(t *testing.T) {
		repo := new(MockTicketRepository)
		svc := NewReservationService(repo, 1, 100)

		held := availableTicket(5)
		held.Status = model.TicketStatusReserved
		held.Version = 1
		held.OwnerID = &buyer

		repo.On("Get", ctx, int64(1), int64(5)).Return(held, nil)
		repo.On("TryTransition", ctx, int64(1), int64(5),
			model.TicketStatusReserved, int64(1),
			model.TicketStatusAvailable, (*int64)(nil)).Return(int64(0), repository.ErrConflict)

		released, err := svc.Release(ctx, 1, []int64{5}, buyer)
		require.NoError(t, err)
		assert.Empty(t, released)
	})
}
