package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/config"
	"github.com/smallbiznis/translog/internal/notification/domain"
	"github.com/smallbiznis/translog/internal/notification/service"
	"github.com/smallbiznis/translog/internal/providers/email"
	"github.com/smallbiznis/translog/internal/providers/pdf"
	vesseldomain "github.com/smallbiznis/translog/internal/vessel/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubApplications struct {
	applicationdomain.Service
	apps map[snowflake.ID]*applicationdomain.Application
}

func (s *stubApplications) GetByID(ctx context.Context, id snowflake.ID) (*applicationdomain.Application, error) {
	app, ok := s.apps[id]
	if !ok {
		return nil, applicationdomain.ErrNotFound
	}
	return app, nil
}

type fakeEmail struct {
	mu       sync.Mutex
	messages []email.Message
	err      error
	block    chan struct{}
}

func (f *fakeEmail) Send(ctx context.Context, msg email.Message) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeEmail) sent() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message(nil), f.messages...)
}

type failingPDF struct{}

func (failingPDF) ClearanceReceipt(context.Context, pdf.ReceiptData) ([]byte, error) {
	return nil, errors.New("font missing")
}

func confirmedApplication(id snowflake.ID) *applicationdomain.Application {
	return &applicationdomain.Application{
		ID:                 id,
		Status:             applicationdomain.StatusPaymentConfirmed,
		CaptainName:        "Deniz Kaya",
		CaptainNationality: "TR",
		CaptainPassport:    "U7654321",
		DeparturePort:      "Bodrum",
		ArrivalPort:        "Marmaris",
		DepartureDate:      time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		ArrivalDate:        time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		CrewCount:          2,
		PassengerCount:     1,
		Purpose:            "Coastal cruise",
		ContactEmail:       "captain@example.com",
		PaymentReference:   "pi_123",
		PaymentAmount:      15000,
		PaymentCurrency:    "eur",
		CreatedAt:          time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
		Vessel: &vesseldomain.Vessel{
			Name:               "Mavi Yol",
			Type:               vesseldomain.TypeSailboat,
			Length:             12.5,
			Flag:               "TR",
			RegistrationNumber: "TR-BOD-0042",
		},
		Documents: []applicationdomain.Document{
			{OriginalName: "registration.pdf", URL: "https://files.test/application-documents/registration.pdf"},
		},
		Passengers: []applicationdomain.Passenger{
			{FirstName: "Ada", LastName: "Kaya", Nationality: "TR", PassportNumber: "U1234567", Gender: "female"},
		},
	}
}

type harness struct {
	svc   *service.Service
	email *fakeEmail
	apps  *stubApplications
	logs  *observer.ObservedLogs
}

func newHarness(t *testing.T, renderer pdf.Provider) harness {
	t.Helper()

	core, logs := observer.New(zapcore.WarnLevel)
	apps := &stubApplications{apps: map[snowflake.ID]*applicationdomain.Application{}}
	mailer := &fakeEmail{}

	cfg := config.Config{Notification: config.NotificationConfig{Timeout: time.Second}}
	svc := service.NewService(service.Params{
		Log:          zap.New(core),
		Cfg:          cfg,
		Applications: apps,
		Email:        mailer,
		PDF:          renderer,
		Clock:        clock.NewFakeClock(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)),
	})
	return harness{svc: svc, email: mailer, apps: apps, logs: logs}
}

func TestSendConfirmationComposesMessage(t *testing.T) {
	h := newHarness(t, pdf.New())
	h.apps.apps[101] = confirmedApplication(101)

	require.NoError(t, h.svc.SendConfirmation(context.Background(), 101))

	sent := h.email.sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, []string{"captain@example.com"}, msg.To)
	assert.Equal(t, "Translog Application - 101", msg.Subject)

	for _, body := range []string{msg.Text, msg.HTML} {
		assert.Contains(t, body, "Sailboat")
		assert.Contains(t, body, "150.00 EUR")
		assert.Contains(t, body, "Ada Kaya")
		assert.Contains(t, body, "May 1, 2026")
		assert.Contains(t, body, "Not provided")
	}
	assert.Contains(t, msg.Text, "Document 1: https://files.test/application-documents/registration.pdf")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "clearance-receipt-101.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Equal(t, "%PDF", string(msg.Attachments[0].Data[:4]))
}

func TestSendConfirmationEscapesHTML(t *testing.T) {
	h := newHarness(t, &pdf.NoOpProvider{})
	app := confirmedApplication(102)
	app.Purpose = "<script>alert(1)</script>"
	h.apps.apps[102] = app

	require.NoError(t, h.svc.SendConfirmation(context.Background(), 102))

	msg := h.email.sent()[0]
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "<script>alert(1)</script>")
	assert.Empty(t, msg.Attachments)
}

func TestSendConfirmationRequiresConfirmedPayment(t *testing.T) {
	h := newHarness(t, pdf.New())
	app := confirmedApplication(103)
	app.Status = applicationdomain.StatusPending
	h.apps.apps[103] = app

	err := h.svc.SendConfirmation(context.Background(), 103)
	assert.ErrorIs(t, err, domain.ErrNotConfirmed)

	err = h.svc.SendConfirmation(context.Background(), 999)
	assert.ErrorIs(t, err, applicationdomain.ErrNotFound)
	assert.Empty(t, h.email.sent())
}

func TestReceiptFailureStillSendsEmail(t *testing.T) {
	h := newHarness(t, failingPDF{})
	h.apps.apps[104] = confirmedApplication(104)

	require.NoError(t, h.svc.SendConfirmation(context.Background(), 104))

	sent := h.email.sent()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].Attachments)
	assert.Equal(t, 1, h.logs.FilterMessage("clearance receipt not rendered, sending without attachment").Len())
}

func TestNotifyAsyncLogsDeliveryFailure(t *testing.T) {
	h := newHarness(t, &pdf.NoOpProvider{})
	h.apps.apps[105] = confirmedApplication(105)
	h.email.err = errors.New("smtp: 421 service not available")

	h.svc.NotifyAsync(105)
	require.NoError(t, h.svc.Wait(context.Background()))

	entries := h.logs.FilterMessage("confirmation email not sent").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "105", entries[0].ContextMap()["application_id"])
}

func TestWaitReturnsWhenContextExpires(t *testing.T) {
	h := newHarness(t, &pdf.NoOpProvider{})
	h.apps.apps[106] = confirmedApplication(106)
	h.email.block = make(chan struct{})

	h.svc.NotifyAsync(106)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.svc.Wait(ctx), context.DeadlineExceeded)

	close(h.email.block)
	require.NoError(t, h.svc.Wait(context.Background()))
	assert.Len(t, h.email.sent(), 1)
}
