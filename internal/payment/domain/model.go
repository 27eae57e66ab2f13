package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRecord is the webhook ledger row. A non-nil ProcessedAt marks the
// event's business effect as applied.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	ApplicationID   snowflake.ID   `json:"application_id" gorm:"not null;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	OccurredAt      time.Time      `json:"occurred_at" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	Attempts        int            `json:"attempts" gorm:"not null"`
	LastError       string         `json:"last_error" gorm:"type:text;not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "webhook_events" }

const (
	EventTypePaymentSucceeded       = "payment_succeeded"
	EventTypePaymentFailed          = "payment_failed"
	EventTypeDisputeCreated         = "dispute_created"
	EventTypeDisputeFundsWithdrawn  = "dispute_funds_withdrawn"
	EventTypeDisputeFundsReinstated = "dispute_funds_reinstated"
	EventTypeDisputeClosed          = "dispute_closed"
)

// PaymentEvent is the canonical event parsed by adapters. Type carries the
// provider's raw type when the adapter has no mapping for it.
type PaymentEvent struct {
	Provider            string
	ProviderEventID     string
	ProviderPaymentID   string
	ProviderPaymentType string
	Type                string
	ApplicationID       snowflake.ID
	Amount              int64
	Currency            string
	OccurredAt          time.Time
	RawPayload          []byte
	Dispute             *DisputeDetail
}

type DisputeDetail struct {
	ProviderDisputeID string
	Reason            string
}

type AdapterConfig struct {
	Provider string
	Config   map[string]any
}

// PaymentAdapter verifies and decodes one provider's webhook deliveries.
// Verify must be given the request body exactly as received.
type PaymentAdapter interface {
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*PaymentEvent, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (PaymentAdapter, error)
}

// AfterCommit runs once the handler's transaction has committed. It must not
// touch the transaction.
type AfterCommit func(ctx context.Context)

// Handler applies an event's business effect inside tx.
type Handler func(ctx context.Context, tx *gorm.DB, event *PaymentEvent) (AfterCommit, error)

const (
	DispatchProcessed = "processed"
	DispatchDuplicate = "duplicate"
	DispatchIgnored   = "ignored"
)

// DispatchResult reports how an event was settled. It is final once the
// transaction commits: after-commit actions such as the confirmation email
// run later, and their failures are logged as warnings by the notifier
// instead of being returned here.
type DispatchResult struct {
	EventID snowflake.ID
	Status  string
}

type Dispatcher interface {
	Register(eventType string, handler Handler) error
	Dispatch(ctx context.Context, event *PaymentEvent) (DispatchResult, error)
}

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider string, providerEventID string) (*EventRecord, error)
	FindEventForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) (bool, error)
	RecordFailure(ctx context.Context, db *gorm.DB, id snowflake.ID, lastError string) error
}

// Service is the inbound webhook entry point.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (DispatchResult, error)
}
