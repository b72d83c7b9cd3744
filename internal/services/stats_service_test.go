package services

import (
	"context"
	"testing"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTicketCounter struct {
	mock.Mock
}

func (m *MockTicketCounter) CountByStatus(ctx context.Context, raffleID int64, status model.TicketStatus) (int64, error) {
	args := m.Called(ctx, raffleID, status)
	return args.Get(0).(int64), args.Error(1)
}

type MockRevenueReader struct {
	mock.Mock
}

func (m *MockRevenueReader) SumCompleted(ctx context.Context, raffleID int64) (float64, error) {
	args := m.Called(ctx, raffleID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockRevenueReader) List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

func TestStatsService_RaffleStats(t *testing.T) {
	ctx := context.Background()

	tickets := new(MockTicketCounter)
	transactions := new(MockRevenueReader)
	svc := NewStatsService(tickets, transactions, 1, 100000)

	tickets.On("CountByStatus", ctx, int64(1), model.TicketStatusSold).Return(int64(25000), nil)
	tickets.On("CountByStatus", ctx, int64(1), model.TicketStatusReserved).Return(int64(150), nil)
	tickets.On("CountByStatus", ctx, int64(1), model.TicketStatusAvailable).Return(int64(74850), nil)
	transactions.On("SumCompleted", ctx, int64(1)).Return(float64(25000000), nil)

	stats, err := svc.RaffleStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), stats.TotalNumbers)
	assert.Equal(t, int64(25000), stats.Sold)
	assert.Equal(t, int64(150), stats.Reserved)
	assert.Equal(t, int64(74850), stats.Available)
	assert.Equal(t, float64(25000000), stats.Revenue)
	assert.InDelta(t, 0.25, stats.Progress, 0.0001)

	tickets.AssertExpectations(t)
	transactions.AssertExpectations(t)
}

func TestStatsService_ListTransactions_DefaultsRaffle(t *testing.T) {
	ctx := context.Background()

	tickets := new(MockTicketCounter)
	transactions := new(MockRevenueReader)
	svc := NewStatsService(tickets, transactions, 1, 100000)

	transactions.On("List", ctx, mock.MatchedBy(func(f repository.TransactionFilter) bool {
		return f.RaffleID != nil && *f.RaffleID == 1
	})).Return([]*model.Transaction{}, int64(0), nil)

	_, _, err := svc.ListTransactions(ctx, repository.TransactionFilter{})
	require.NoError(t, err)

	transactions.AssertExpectations(t)
}
