package services

import (
	"context"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
)

type TicketCounter interface {
	CountByStatus(ctx context.Context, raffleID int64, status model.TicketStatus) (int64, error)
}

type RevenueReader interface {
	SumCompleted(ctx context.Context, raffleID int64) (float64, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error)
}

type StatsService struct {
	tickets      TicketCounter
	transactions RevenueReader
	raffleID     int64
	totalNumbers int64
}

func NewStatsService(tickets TicketCounter, transactions RevenueReader, raffleID, totalNumbers int64) *StatsService {
	return &StatsService{
		tickets:      tickets,
		transactions: transactions,
		raffleID:     raffleID,
		totalNumbers: totalNumbers,
	}
}

func (s *StatsService) RaffleStats(ctx context.Context) (*model.RaffleStats, error) {
	sold, err := s.tickets.CountByStatus(ctx, s.raffleID, model.TicketStatusSold)
	if err != nil {
		return nil, err
	}
	reserved, err := s.tickets.CountByStatus(ctx, s.raffleID, model.TicketStatusReserved)
	if err != nil {
		return nil, err
	}
	available, err := s.tickets.CountByStatus(ctx, s.raffleID, model.TicketStatusAvailable)
	if err != nil {
		return nil, err
	}
	revenue, err := s.transactions.SumCompleted(ctx, s.raffleID)
	if err != nil {
		return nil, err
	}

	stats := &model.RaffleStats{
		RaffleID:     s.raffleID,
		TotalNumbers: s.totalNumbers,
		Sold:         sold,
		Reserved:     reserved,
		Available:    available,
		Revenue:      revenue,
	}
	if s.totalNumbers > 0 {
		stats.Progress = float64(sold) / float64(s.totalNumbers)
	}

	return stats, nil
}

func (s *StatsService) ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error) {
	if f.RaffleID == nil {
		f.RaffleID = &s.raffleID
	}
	return s.transactions.List(ctx, f)
}
