package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrNotFound is returned when a ticket does not exist.
	ErrNotFound = errors.New("ticket not found")
	// ErrConflict means the conditional update matched zero rows: another
	// actor already moved the ticket. Callers treat it as a normal branch.
	ErrConflict = errors.New("ticket transition conflict")
)

type TicketRepository struct {
	*pg.DB
}

func NewTicketRepository(db *pg.DB) *TicketRepository {
	return &TicketRepository{
		db,
	}
}

func (r *TicketRepository) Get(ctx context.Context, raffleID, number int64) (*model.Ticket, error) {
	var entity TicketEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("raffle_id = ? AND number = ?", raffleID, number).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toTicketModel(&entity), nil
}

// TryTransition is the single synchronization point of the whole system: one
// conditional UPDATE guarded by both the expected status and the expected
// version. Zero rows affected means the row changed under the caller and the
// transition is reported as ErrConflict, never retried here.
func (r *TicketRepository) TryTransition(ctx context.Context, raffleID, number int64, expectedStatus model.TicketStatus, expectedVersion int64, newStatus model.TicketStatus, ownerID *int64) (int64, error) {
	now := time.Now()

	updates := map[string]interface{}{
		"status":  string(newStatus),
		"version": gorm.Expr("version + 1"),
	}
	switch newStatus {
	case model.TicketStatusReserved:
		updates["owner_id"] = ownerID
		updates["reserved_at"] = &now
	case model.TicketStatusSold:
		updates["owner_id"] = ownerID
		updates["purchased_at"] = &now
	case model.TicketStatusAvailable:
		updates["owner_id"] = nil
		updates["reserved_at"] = nil
	}

	res := r.Write(ctx).WithContext(ctx).
		Model(&TicketEntity{}).
		Where("raffle_id = ? AND number = ? AND status = ? AND version = ?",
			raffleID, number, string(expectedStatus), expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrConflict
	}
	return expectedVersion + 1, nil
}

func (r *TicketRepository) ListByStatus(ctx context.Context, raffleID int64, status model.TicketStatus, limit int) ([]*model.Ticket, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var entities []*TicketEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("raffle_id = ? AND status = ?", raffleID, string(status)).
		Order("number ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTicketModels(entities), nil
}

func (r *TicketRepository) ListByOwner(ctx context.Context, raffleID, ownerID int64) ([]*model.Ticket, error) {
	var entities []*TicketEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("raffle_id = ? AND owner_id = ?", raffleID, ownerID).
		Order("number ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTicketModels(entities), nil
}

func (r *TicketRepository) CountByStatus(ctx context.Context, raffleID int64, status model.TicketStatus) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TicketEntity{}).
		Where("raffle_id = ? AND status = ?", raffleID, string(status)).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListExpiredReservations returns tickets stuck in reserved since before the
// cutoff. The sweeper releases each one through TryTransition so the version
// guard still applies.
func (r *TicketRepository) ListExpiredReservations(ctx context.Context, raffleID int64, cutoff time.Time, limit int) ([]*model.Ticket, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}

	var entities []*TicketEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("raffle_id = ? AND status = ? AND reserved_at < ?",
			raffleID, string(model.TicketStatusReserved), cutoff).
		Order("reserved_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toTicketModels(entities), nil
}

// Seed inserts the available pool for a raffle in batches. Used by the
// migration CLI and test fixtures; existing numbers are left untouched.
func (r *TicketRepository) Seed(ctx context.Context, raffleID, from, to int64) (int64, error) {
	const batchSize = 1000

	var inserted int64
	batch := make([]*TicketEntity, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res := r.Write(ctx).WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "raffle_id"}, {Name: "number"}},
				DoNothing: true,
			}).
			Create(&batch)
		if res.Error != nil {
			return res.Error
		}
		inserted += res.RowsAffected
		batch = batch[:0]
		return nil
	}

	for n := from; n <= to; n++ {
		batch = append(batch, &TicketEntity{
			RaffleID: raffleID,
			Number:   n,
			Status:   string(model.TicketStatusAvailable),
		})
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return inserted, err
			}
		}
	}
	if err := flush(); err != nil {
		return inserted, err
	}
	return inserted, nil
}
