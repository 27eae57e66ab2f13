package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/clock"
	obsmetrics "github.com/smallbiznis/translog/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxLastErrorLength = 512

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       paymentdomain.Repository
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service dispatches verified events to registered handlers. The webhook
// ledger row is the idempotency guard: a handler runs only inside the
// transaction that marks its event processed.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       paymentdomain.Repository
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics

	mu       sync.RWMutex
	handlers map[string]paymentdomain.Handler
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
		handlers:   map[string]paymentdomain.Handler{},
	}
}

func (s *Service) Register(eventType string, handler paymentdomain.Handler) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" || handler == nil {
		return paymentdomain.ErrInvalidEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handlers[eventType]; ok {
		return paymentdomain.ErrHandlerAlreadyRegistered
	}
	s.handlers[eventType] = handler
	return nil
}

func (s *Service) handler(eventType string) (paymentdomain.Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[eventType]
	return h, ok
}

func (s *Service) Dispatch(ctx context.Context, event *paymentdomain.PaymentEvent) (paymentdomain.DispatchResult, error) {
	if err := validateEvent(event); err != nil {
		return paymentdomain.DispatchResult{}, err
	}

	now := s.clock.Now()
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		ApplicationID:   event.ApplicationID,
		Payload:         datatypes.JSON(event.RawPayload),
		OccurredAt:      occurredAt,
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return paymentdomain.DispatchResult{}, err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return paymentdomain.DispatchResult{}, err
		}
		if stored == nil {
			return paymentdomain.DispatchResult{}, paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return s.duplicate(ctx, stored, event), nil
		}
	}

	logger := s.log.With(
		zap.String("provider", event.Provider),
		zap.String("event_id", event.ProviderEventID),
		zap.String("event_type", event.Type),
		zap.String("application_id", event.ApplicationID.String()),
	)

	handle, known := s.handler(event.Type)
	var after paymentdomain.AfterCommit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindEventForUpdate(ctx, tx, stored.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if locked.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}

		if known {
			after, err = handle(ctx, tx, event)
			if err != nil {
				return &paymentdomain.HandlerError{
					EventType:       event.Type,
					ProviderEventID: event.ProviderEventID,
					Err:             err,
				}
			}
		}

		marked, err := s.repo.MarkProcessed(ctx, tx, stored.ID, s.clock.Now())
		if err != nil {
			return err
		}
		if !marked {
			return paymentdomain.ErrEventAlreadyProcessed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
			return s.duplicate(ctx, stored, event), nil
		}

		if recordErr := s.repo.RecordFailure(context.WithoutCancel(ctx), s.db, stored.ID, truncate(err.Error())); recordErr != nil {
			logger.Warn("failed to record webhook failure", zap.Error(recordErr))
		}
		logger.Error("webhook event handling failed", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, event.Provider, event.Type, "failed")
		if !errors.Is(err, paymentdomain.ErrHandlerFailed) {
			err = &paymentdomain.HandlerError{EventType: event.Type, ProviderEventID: event.ProviderEventID, Err: err}
		}
		return paymentdomain.DispatchResult{EventID: stored.ID}, err
	}

	if !known {
		logger.Info("webhook event type not handled")
		s.obsMetrics.RecordWebhookEvent(ctx, event.Provider, event.Type, paymentdomain.DispatchIgnored)
		return paymentdomain.DispatchResult{EventID: stored.ID, Status: paymentdomain.DispatchIgnored}, nil
	}

	if after != nil {
		after(ctx)
	}
	logger.Info("webhook event processed")
	s.obsMetrics.RecordWebhookEvent(ctx, event.Provider, event.Type, paymentdomain.DispatchProcessed)
	return paymentdomain.DispatchResult{EventID: stored.ID, Status: paymentdomain.DispatchProcessed}, nil
}

func (s *Service) duplicate(ctx context.Context, stored *paymentdomain.EventRecord, event *paymentdomain.PaymentEvent) paymentdomain.DispatchResult {
	s.log.Info("webhook event already processed",
		zap.String("provider", event.Provider),
		zap.String("event_id", event.ProviderEventID),
	)
	s.obsMetrics.RecordWebhookEvent(ctx, event.Provider, event.Type, paymentdomain.DispatchDuplicate)
	return paymentdomain.DispatchResult{EventID: stored.ID, Status: paymentdomain.DispatchDuplicate}
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if len(event.RawPayload) == 0 {
		event.RawPayload = []byte("{}")
	}
	if !json.Valid(event.RawPayload) {
		return paymentdomain.ErrInvalidPayload
	}
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	return nil
}

func truncate(value string) string {
	if len(value) <= maxLastErrorLength {
		return value
	}
	return value[:maxLastErrorLength]
}
