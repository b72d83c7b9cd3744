package repository

import (
	"context"
	"errors"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTransactionNotFound is returned when no transaction exists for a lookup.
var ErrTransactionNotFound = errors.New("transaction not found")

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create appends a ledger row. The unique index on payment_id makes the
// append idempotent: a duplicate delivery inserts nothing and the existing
// row is returned with created=false.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, bool, error) {
	entity := toTransactionEntity(txn)

	res := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(entity)
	if res.Error != nil {
		return nil, false, res.Error
	}

	if res.RowsAffected == 0 {
		existing, err := r.GetByPaymentID(ctx, txn.PaymentID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return toTransactionModel(entity), true, nil
}

func (r *TransactionRepository) GetByPaymentID(ctx context.Context, paymentID string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("payment_id = ?", paymentID).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

type TransactionFilter struct {
	UserID   *int64
	RaffleID *int64
	Limit    int
	Offset   int
	Desc     bool
}

func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.RaffleID != nil {
		q = q.Where("raffle_id = ?", *f.RaffleID)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

// SumCompleted returns total revenue of completed purchases for a raffle.
func (r *TransactionRepository) SumCompleted(ctx context.Context, raffleID int64) (float64, error) {
	var total float64
	err := r.Read(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("raffle_id = ? AND status = ?", raffleID, model.TransactionStatusCompleted).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
