package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/clock"
	disputedomain "github.com/smallbiznis/translog/internal/payment/dispute/domain"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  disputedomain.Repository
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	repo  disputedomain.Repository
	clock clock.Clock
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		log:   p.Log.Named("payment.dispute"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

// Register adds a handler for every dispute event type.
func (s *Service) Register(dispatcher paymentdomain.Dispatcher) error {
	for _, eventType := range []string{
		paymentdomain.EventTypeDisputeCreated,
		paymentdomain.EventTypeDisputeFundsWithdrawn,
		paymentdomain.EventTypeDisputeFundsReinstated,
		paymentdomain.EventTypeDisputeClosed,
	} {
		if err := dispatcher.Register(eventType, s.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle upserts the dispute row. Status only moves up the rank, so an
// out-of-order delivery never reopens a dispute.
func (s *Service) Handle(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (paymentdomain.AfterCommit, error) {
	if err := validateDisputeEvent(event); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	status := statusForEvent(event.Type)
	reason := strings.TrimSpace(event.Dispute.Reason)

	existing, err := s.repo.FindDisputeForUpdate(ctx, tx, event.Provider, event.Dispute.ProviderDisputeID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		record := disputedomain.DisputeRecord{
			ID:                s.genID.Generate(),
			Provider:          event.Provider,
			ProviderDisputeID: event.Dispute.ProviderDisputeID,
			ProviderEventID:   event.ProviderEventID,
			ApplicationID:     event.ApplicationID,
			Amount:            event.Amount,
			Currency:          event.Currency,
			Status:            status,
			Reason:            reason,
			OccurredAt:        event.OccurredAt,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inserted, err := s.repo.InsertDispute(ctx, tx, &record)
		if err != nil {
			return nil, err
		}
		if inserted {
			s.logDispute(&record)
			return nil, nil
		}
		existing, err = s.repo.FindDisputeForUpdate(ctx, tx, event.Provider, event.Dispute.ProviderDisputeID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.New("dispute_not_found")
		}
	}

	existing.ProviderEventID = event.ProviderEventID
	if event.ApplicationID != 0 {
		existing.ApplicationID = event.ApplicationID
	}
	if event.Amount > 0 {
		existing.Amount = event.Amount
	}
	if event.Currency != "" {
		existing.Currency = event.Currency
	}
	if reason != "" {
		existing.Reason = reason
	}
	existing.Status = nextStatus(existing.Status, status)
	if event.OccurredAt.After(existing.OccurredAt) {
		existing.OccurredAt = event.OccurredAt
	}
	existing.UpdatedAt = now

	if err := s.repo.UpdateDispute(ctx, tx, existing); err != nil {
		return nil, err
	}
	s.logDispute(existing)
	return nil, nil
}

func (s *Service) logDispute(record *disputedomain.DisputeRecord) {
	s.log.Info("payment dispute recorded",
		zap.String("dispute_id", record.ProviderDisputeID),
		zap.String("event_id", record.ProviderEventID),
		zap.String("application_id", record.ApplicationID.String()),
		zap.String("status", record.Status),
	)
}

func validateDisputeEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil || event.Dispute == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Dispute.ProviderDisputeID = strings.TrimSpace(event.Dispute.ProviderDisputeID)
	if event.Dispute.ProviderDisputeID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if statusForEvent(event.Type) == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.OccurredAt.IsZero() {
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}

func statusForEvent(eventType string) string {
	switch eventType {
	case paymentdomain.EventTypeDisputeCreated:
		return disputedomain.DisputeStatusOpen
	case paymentdomain.EventTypeDisputeFundsWithdrawn:
		return disputedomain.DisputeStatusWithdrawn
	case paymentdomain.EventTypeDisputeFundsReinstated:
		return disputedomain.DisputeStatusReinstated
	case paymentdomain.EventTypeDisputeClosed:
		return disputedomain.DisputeStatusClosed
	default:
		return ""
	}
}

func nextStatus(current string, desired string) string {
	if desired == "" {
		return current
	}
	if current == disputedomain.DisputeStatusClosed {
		return current
	}
	if desired == disputedomain.DisputeStatusClosed {
		return desired
	}

	rank := map[string]int{
		disputedomain.DisputeStatusOpen:       1,
		disputedomain.DisputeStatusWithdrawn:  2,
		disputedomain.DisputeStatusReinstated: 3,
		disputedomain.DisputeStatusClosed:     4,
	}

	currentRank := rank[strings.TrimSpace(current)]
	desiredRank := rank[strings.TrimSpace(desired)]
	if desiredRank == 0 {
		return current
	}
	if currentRank == 0 || desiredRank > currentRank {
		return desired
	}
	return current
}
