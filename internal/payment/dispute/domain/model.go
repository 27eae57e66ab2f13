package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	DisputeStatusOpen       = "open"
	DisputeStatusWithdrawn  = "funds_withdrawn"
	DisputeStatusReinstated = "funds_reinstated"
	DisputeStatusClosed     = "closed"
)

type DisputeRecord struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	Provider          string       `json:"provider"`
	ProviderDisputeID string       `json:"provider_dispute_id"`
	ProviderEventID   string       `json:"provider_event_id"`
	ApplicationID     snowflake.ID `json:"application_id"`
	Amount            int64        `json:"amount"`
	Currency          string       `json:"currency"`
	Status            string       `json:"status"`
	Reason            string       `json:"reason"`
	OccurredAt        time.Time    `json:"occurred_at"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func (DisputeRecord) TableName() string { return "payment_disputes" }

type Repository interface {
	FindDispute(ctx context.Context, db *gorm.DB, provider string, providerDisputeID string) (*DisputeRecord, error)
	FindDisputeForUpdate(ctx context.Context, db *gorm.DB, provider string, providerDisputeID string) (*DisputeRecord, error)
	InsertDispute(ctx context.Context, db *gorm.DB, record *DisputeRecord) (bool, error)
	UpdateDispute(ctx context.Context, db *gorm.DB, record *DisputeRecord) error
}
