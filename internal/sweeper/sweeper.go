package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/prom"
)

const sweepBatchSize = 500

type TicketStore interface {
	ListExpiredReservations(ctx context.Context, raffleID int64, cutoff time.Time, limit int) ([]*model.Ticket, error)
	TryTransition(ctx context.Context, raffleID, number int64, expectedStatus model.TicketStatus, expectedVersion int64, newStatus model.TicketStatus, ownerID *int64) (int64, error)
}

type Config struct {
	RaffleID       int64
	ReservationTTL time.Duration
	Tick           time.Duration
}

// Sweeper returns reservations older than the TTL to the pool. It is the
// only path that releases a reservation besides an explicit checkout
// failure; each release goes through the versioned transition, so a ticket
// sold between the listing and the release is simply left alone.
type Sweeper struct {
	tickets   TicketStore
	config    Config
	scheduler gocron.Scheduler
}

func New(tickets TicketStore, config Config) (*Sweeper, error) {
	if config.ReservationTTL <= 0 {
		config.ReservationTTL = 15 * time.Minute
	}
	if config.Tick <= 0 {
		config.Tick = time.Minute
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &Sweeper{
		tickets:   tickets,
		config:    config,
		scheduler: scheduler,
	}, nil
}

func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.config.Tick),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.config.Tick)
			defer cancel()

			if _, err := s.RunOnce(ctx); err != nil {
				logger.Error("reservation sweep failed", "error", err)
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("schedule sweep job: %w", err)
	}

	s.scheduler.Start()
	logger.Info("sweeper started",
		"raffle_id", s.config.RaffleID,
		"reservation_ttl", s.config.ReservationTTL,
		"tick", s.config.Tick)

	return nil
}

// RunOnce performs a single sweep pass and reports how many reservations
// were released.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.config.ReservationTTL)

	expired, err := s.tickets.ListExpiredReservations(ctx, s.config.RaffleID, cutoff, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	released := 0
	for _, ticket := range expired {
		_, err := s.tickets.TryTransition(ctx, s.config.RaffleID, ticket.Number,
			model.TicketStatusReserved, ticket.Version,
			model.TicketStatusAvailable, nil)
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				continue
			}
			return released, fmt.Errorf("release ticket %d: %w", ticket.Number, err)
		}
		released++
	}

	if released > 0 {
		prom.AddCounter(prom.SystemReservation, prom.MetricReservationsReleased, float64(released))
		logger.Info("expired reservations released",
			"raffle_id", s.config.RaffleID,
			"released", released,
			"inspected", len(expired))
	}

	return released, nil
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}
