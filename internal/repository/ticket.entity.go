package repository

import (
	"time"

	"github.com/rifadigital/raffle-gateway/internal/model"
)

type TicketEntity struct {
	RaffleID    int64      `db:"raffle_id"    gorm:"primaryKey;autoIncrement:false;column:raffle_id"`
	Number      int64      `db:"number"       gorm:"primaryKey;autoIncrement:false;column:number"`
	Status      string     `db:"status"       gorm:"column:status;not null;index;default:available"`
	OwnerID     *int64     `db:"owner_id"     gorm:"column:owner_id;index"`
	Version     int64      `db:"version"      gorm:"column:version;not null;default:0"`
	ReservedAt  *time.Time `db:"reserved_at"  gorm:"column:reserved_at"`
	PurchasedAt *time.Time `db:"purchased_at" gorm:"column:purchased_at"`
}

func (TicketEntity) TableName() string {
	return "raffle_numbers"
}

func toTicketEntity(m *model.Ticket) *TicketEntity {
	if m == nil {
		return nil
	}
	return &TicketEntity{
		RaffleID:    m.RaffleID,
		Number:      m.Number,
		Status:      string(m.Status),
		OwnerID:     m.OwnerID,
		Version:     m.Version,
		ReservedAt:  m.ReservedAt,
		PurchasedAt: m.PurchasedAt,
	}
}

func toTicketModel(e *TicketEntity) *model.Ticket {
	if e == nil {
		return nil
	}
	return &model.Ticket{
		RaffleID:    e.RaffleID,
		Number:      e.Number,
		Status:      model.TicketStatus(e.Status),
		OwnerID:     e.OwnerID,
		Version:     e.Version,
		ReservedAt:  e.ReservedAt,
		PurchasedAt: e.PurchasedAt,
	}
}

func toTicketModels(entities []*TicketEntity) []*model.Ticket {
	if entities == nil {
		return nil
	}
	models := make([]*model.Ticket, len(entities))
	for i, e := range entities {
		models[i] = toTicketModel(e)
	}
	return models
}
