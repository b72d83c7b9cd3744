package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/prom"
)

var (
	ErrInvalidBuyer = errors.New("buyer id is required")
)

type TicketRepository interface {
	Get(ctx context.Context, raffleID, number int64) (*model.Ticket, error)
	TryTransition(ctx context.Context, raffleID, number int64, expectedStatus model.TicketStatus, expectedVersion int64, newStatus model.TicketStatus, ownerID *int64) (int64, error)
	ListByStatus(ctx context.Context, raffleID int64, status model.TicketStatus, limit int) ([]*model.Ticket, error)
	ListByOwner(ctx context.Context, raffleID, ownerID int64) ([]*model.Ticket, error)
}

type ReservationService struct {
	tickets   TicketRepository
	minNumber int64
	maxNumber int64
}

func NewReservationService(tickets TicketRepository, minNumber, maxNumber int64) *ReservationService {
	return &ReservationService{
		tickets:   tickets,
		minNumber: minNumber,
		maxNumber: maxNumber,
	}
}

// Reserve attempts to move each requested number from available to reserved
// for the buyer. Each number is one compare-and-swap; a number that conflicts
// is definitively unavailable to this caller and is reported immediately
// instead of retried, so overlapping selections fail fast rather than
// livelock. A wholly rejected result is not an error.
func (s *ReservationService) Reserve(ctx context.Context, raffleID int64, numbers []int64, buyerID int64) (*model.ReservationResult, error) {
	if buyerID == 0 {
		return nil, ErrInvalidBuyer
	}

	result := &model.ReservationResult{
		Reserved: []int64{},
		Rejected: []int64{},
	}

	requested := dedupe(numbers)
	if len(requested) == 0 {
		return result, nil
	}

	for _, number := range requested {
		if number < s.minNumber || number > s.maxNumber {
			result.Rejected = append(result.Rejected, number)
			continue
		}

		ticket, err := s.tickets.Get(ctx, raffleID, number)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				result.Rejected = append(result.Rejected, number)
				continue
			}
			s.rollback(ctx, raffleID, result.Reserved, buyerID)
			return nil, fmt.Errorf("read ticket %d: %w", number, err)
		}

		if ticket.Status != model.TicketStatusAvailable {
			result.Rejected = append(result.Rejected, number)
			continue
		}

		_, err = s.tickets.TryTransition(ctx, raffleID, number,
			model.TicketStatusAvailable, ticket.Version,
			model.TicketStatusReserved, &buyerID)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// raced out between the read and the swap
				result.Rejected = append(result.Rejected, number)
				continue
			}
			s.rollback(ctx, raffleID, result.Reserved, buyerID)
			return nil, fmt.Errorf("reserve ticket %d: %w", number, err)
		}

		result.Reserved = append(result.Reserved, number)
	}

	prom.AddCounterVec(prom.SystemReservation, prom.MetricReservationResult, float64(len(result.Reserved)), "reserved")
	prom.AddCounterVec(prom.SystemReservation, prom.MetricReservationResult, float64(len(result.Rejected)), "rejected")

	logger.Info("reservation processed",
		"raffle_id", raffleID,
		"buyer_id", buyerID,
		"reserved", len(result.Reserved),
		"rejected", len(result.Rejected))

	return result, nil
}

// Release moves the buyer's reserved numbers back to available. Numbers not
// reserved by this buyer are skipped; conflicts are ignored because whoever
// won the race already decided the ticket's fate.
func (s *ReservationService) Release(ctx context.Context, raffleID int64, numbers []int64, buyerID int64) ([]int64, error) {
	released := []int64{}

	for _, number := range dedupe(numbers) {
		ticket, err := s.tickets.Get(ctx, raffleID, number)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return released, fmt.Errorf("read ticket %d: %w", number, err)
		}

		if ticket.Status != model.TicketStatusReserved {
			continue
		}
		if ticket.OwnerID == nil || *ticket.OwnerID != buyerID {
			continue
		}

		_, err = s.tickets.TryTransition(ctx, raffleID, number,
			model.TicketStatusReserved, ticket.Version,
			model.TicketStatusAvailable, nil)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			return released, fmt.Errorf("release ticket %d: %w", number, err)
		}

		released = append(released, number)
	}

	if len(released) > 0 {
		prom.AddCounter(prom.SystemReservation, prom.MetricReservationsReleased, float64(len(released)))
	}

	return released, nil
}

func (s *ReservationService) ListAvailable(ctx context.Context, raffleID int64, limit int) ([]*model.Ticket, error) {
	return s.tickets.ListByStatus(ctx, raffleID, model.TicketStatusAvailable, limit)
}

func (s *ReservationService) ListByOwner(ctx context.Context, raffleID, ownerID int64) ([]*model.Ticket, error) {
	return s.tickets.ListByOwner(ctx, raffleID, ownerID)
}

func (s *ReservationService) GetTicket(ctx context.Context, raffleID, number int64) (*model.Ticket, error) {
	return s.tickets.Get(ctx, raffleID, number)
}

// rollback best-effort releases numbers reserved earlier in a failed call.
func (s *ReservationService) rollback(ctx context.Context, raffleID int64, numbers []int64, buyerID int64) {
	if len(numbers) == 0 {
		return
	}
	if _, err := s.Release(ctx, raffleID, numbers, buyerID); err != nil {
		logger.Warn("failed to roll back partial reservation",
			"raffle_id", raffleID,
			"buyer_id", buyerID,
			"numbers", numbers,
			"error", err)
	}
}

func dedupe(numbers []int64) []int64 {
	if len(numbers) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(numbers))
	out := make([]int64, 0, len(numbers))
	for _, n := range numbers {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
