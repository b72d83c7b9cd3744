package repository

import (
	"time"

	"github.com/lib/pq"
	"github.com/rifadigital/raffle-gateway/internal/model"
)

type TransactionEntity struct {
	ID            int64         `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64         `db:"user_id"        gorm:"column:user_id;not null;index"`
	RaffleID      int64         `db:"raffle_id"      gorm:"column:raffle_id;not null;index"`
	Amount        float64       `db:"amount"         gorm:"column:amount;not null"`
	PaymentID     string        `db:"payment_id"     gorm:"column:payment_id;not null;uniqueIndex"`
	PaymentMethod string        `db:"payment_method" gorm:"column:payment_method;not null"`
	Status        string        `db:"status"         gorm:"column:status;not null;index"`
	Numbers       pq.Int64Array `db:"numbers"        gorm:"column:numbers;type:bigint[]"`
	CreatedAt     time.Time     `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:            m.ID,
		UserID:        m.UserID,
		RaffleID:      m.RaffleID,
		Amount:        m.Amount,
		PaymentID:     m.PaymentID,
		PaymentMethod: m.PaymentMethod,
		Status:        m.Status,
		Numbers:       pq.Int64Array(m.Numbers),
		CreatedAt:     m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:            e.ID,
		UserID:        e.UserID,
		RaffleID:      e.RaffleID,
		Amount:        e.Amount,
		PaymentID:     e.PaymentID,
		PaymentMethod: e.PaymentMethod,
		Status:        e.Status,
		Numbers:       []int64(e.Numbers),
		CreatedAt:     e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
