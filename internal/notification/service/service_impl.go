package service

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/config"
	"github.com/smallbiznis/translog/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/translog/internal/observability/metrics"
	"github.com/smallbiznis/translog/internal/providers/email"
	"github.com/smallbiznis/translog/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const subjectPrefix = "Translog Application - "

type Params struct {
	fx.In

	Log          *zap.Logger
	Cfg          config.Config
	Applications applicationdomain.Service
	Email        email.Provider
	PDF          pdf.Provider
	Clock        clock.Clock
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log          *zap.Logger
	applications applicationdomain.Service
	email        email.Provider
	pdf          pdf.Provider
	clock        clock.Clock
	obsMetrics   *obsmetrics.Metrics
	timeout      time.Duration

	wg sync.WaitGroup
}

var _ domain.Notifier = (*Service)(nil)

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	timeout := p.Cfg.Notification.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		log:          p.Log.Named("notification.service"),
		applications: p.Applications,
		email:        p.Email,
		pdf:          p.PDF,
		clock:        clk,
		obsMetrics:   p.ObsMetrics,
		timeout:      timeout,
	}
}

// NotifyAsync sends the confirmation in the background with its own bounded
// context, detached from the request that triggered it.
func (s *Service) NotifyAsync(applicationID snowflake.ID) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.SendConfirmation(ctx, applicationID); err != nil {
			s.log.Warn("confirmation email not sent",
				zap.String("application_id", applicationID.String()),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until in-flight notifications finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) SendConfirmation(ctx context.Context, applicationID snowflake.ID) error {
	app, err := s.applications.GetByID(ctx, applicationID)
	if err != nil {
		s.obsMetrics.RecordNotification(ctx, "failed")
		return err
	}
	if err := checkDeliverable(app); err != nil {
		s.obsMetrics.RecordNotification(ctx, "skipped")
		return err
	}

	view := newConfirmationView(app)
	text, html, err := renderBodies(view)
	if err != nil {
		s.obsMetrics.RecordNotification(ctx, "failed")
		return err
	}

	msg := email.Message{
		To:      []string{app.ContactEmail},
		Subject: subjectPrefix + view.ID,
		Text:    text,
		HTML:    html,
	}

	receipt, err := s.pdf.ClearanceReceipt(ctx, receiptData(view, s.clock.Now()))
	switch {
	case err != nil:
		s.log.Warn("clearance receipt not rendered, sending without attachment",
			zap.String("application_id", view.ID),
			zap.Error(err),
		)
	case len(receipt) > 0:
		msg.Attachments = append(msg.Attachments, email.Attachment{
			Filename:    "clearance-receipt-" + view.ID + ".pdf",
			ContentType: "application/pdf",
			Data:        receipt,
		})
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.obsMetrics.RecordNotification(ctx, "failed")
		return err
	}

	s.obsMetrics.RecordNotification(ctx, "sent")
	s.log.Info("confirmation email sent",
		zap.String("application_id", view.ID),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

func checkDeliverable(app *applicationdomain.Application) error {
	switch app.Status {
	case applicationdomain.StatusPaymentConfirmed, applicationdomain.StatusApproved:
	default:
		return domain.ErrNotConfirmed
	}
	if app.ContactEmail == "" {
		return domain.ErrMissingRecipient
	}
	if app.Vessel == nil {
		return domain.ErrIncompleteDetails
	}
	return nil
}
