package service

import (
	"context"
	"errors"

	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	notificationdomain "github.com/smallbiznis/translog/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HandlerParams struct {
	fx.In

	Log          *zap.Logger
	Dispatcher   *Service
	Applications applicationdomain.Service
	Notifier     notificationdomain.Notifier
}

type paymentHandlers struct {
	log          *zap.Logger
	applications applicationdomain.Service
	notifier     notificationdomain.Notifier
}

// RegisterHandlers wires the payment outcome handlers into the dispatcher.
func RegisterHandlers(p HandlerParams) error {
	h := &paymentHandlers{
		log:          p.Log.Named("payment.handlers"),
		applications: p.Applications,
		notifier:     p.Notifier,
	}
	if err := p.Dispatcher.Register(paymentdomain.EventTypePaymentSucceeded, h.paymentSucceeded); err != nil {
		return err
	}
	return p.Dispatcher.Register(paymentdomain.EventTypePaymentFailed, h.paymentFailed)
}

func (h *paymentHandlers) paymentSucceeded(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (paymentdomain.AfterCommit, error) {
	changed, err := h.transition(ctx, tx, event, applicationdomain.StatusPaymentConfirmed)
	if err != nil || !changed {
		return nil, err
	}

	applicationID := event.ApplicationID
	return func(ctx context.Context) {
		if h.notifier == nil {
			h.log.Warn("notifier unavailable, confirmation not sent", zap.String("application_id", applicationID.String()))
			return
		}
		h.notifier.NotifyAsync(applicationID)
	}, nil
}

func (h *paymentHandlers) paymentFailed(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (paymentdomain.AfterCommit, error) {
	_, err := h.transition(ctx, tx, event, applicationdomain.StatusPaymentFailed)
	return nil, err
}

// transition treats events without a known application as acknowledged so
// the provider does not keep redelivering them.
func (h *paymentHandlers) transition(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent, target applicationdomain.Status) (bool, error) {
	if event.ApplicationID == 0 {
		h.log.Warn("payment event without application reference",
			zap.String("event_id", event.ProviderEventID),
			zap.String("event_type", event.Type),
		)
		return false, nil
	}

	result, err := h.applications.TransitionPaymentStatus(ctx, tx, applicationdomain.TransitionRequest{
		ApplicationID:    event.ApplicationID,
		Target:           target,
		EventAt:          event.OccurredAt,
		PaymentReference: event.ProviderPaymentID,
		PaymentAmount:    event.Amount,
		PaymentCurrency:  event.Currency,
	})
	if errors.Is(err, applicationdomain.ErrNotFound) {
		h.log.Warn("payment event references unknown application",
			zap.String("event_id", event.ProviderEventID),
			zap.String("application_id", event.ApplicationID.String()),
		)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return result.Changed, nil
}
