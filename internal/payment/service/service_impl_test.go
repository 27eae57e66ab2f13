package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	applicationdomain "github.com/smallbiznis/translog/internal/application/domain"
	applicationrepo "github.com/smallbiznis/translog/internal/application/repository"
	applicationservice "github.com/smallbiznis/translog/internal/application/service"
	"github.com/smallbiznis/translog/internal/clock"
	"github.com/smallbiznis/translog/internal/config"
	documentservice "github.com/smallbiznis/translog/internal/document/service"
	"github.com/smallbiznis/translog/internal/payment/adapters"
	"github.com/smallbiznis/translog/internal/payment/adapters/stripe"
	disputerepo "github.com/smallbiznis/translog/internal/payment/dispute/repository"
	disputeservice "github.com/smallbiznis/translog/internal/payment/dispute/service"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/translog/internal/payment/repository"
	paymentservice "github.com/smallbiznis/translog/internal/payment/service"
	paymentwebhook "github.com/smallbiznis/translog/internal/payment/webhook"
	"github.com/smallbiznis/translog/internal/providers/storage"
	"github.com/smallbiznis/translog/internal/testutil"
	vesselrepo "github.com/smallbiznis/translog/internal/vessel/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const stripeSecret = "whsec_test"

type recordingNotifier struct {
	mu    sync.Mutex
	calls []snowflake.ID
}

func (n *recordingNotifier) NotifyAsync(applicationID snowflake.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, applicationID)
}

func (n *recordingNotifier) SendConfirmation(ctx context.Context, applicationID snowflake.ID) error {
	n.NotifyAsync(applicationID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type harness struct {
	db         *gorm.DB
	clock      *clock.FakeClock
	apps       applicationdomain.Service
	dispatcher *paymentservice.Service
	webhook    paymentdomain.Service
	notifier   *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewSQLite(t)
	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	docs := documentservice.NewService(documentservice.Params{
		Log:     zap.NewNop(),
		Storage: storage.NewMemory(""),
		Policy:  config.StaticDocumentPolicy(config.DefaultDocumentPolicy()),
		Clock:   clk,
	})
	apps := applicationservice.NewService(applicationservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Repo:       applicationrepo.Provide(),
		VesselRepo: vesselrepo.Provide(),
		Documents:  docs,
		Clock:      clk,
	})

	dispatcher := paymentservice.NewService(paymentservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  paymentrepo.Provide(),
		Clock: clk,
	})
	notifier := &recordingNotifier{}
	if err := paymentservice.RegisterHandlers(paymentservice.HandlerParams{
		Log:          zap.NewNop(),
		Dispatcher:   dispatcher,
		Applications: apps,
		Notifier:     notifier,
	}); err != nil {
		t.Fatalf("register handlers: %v", err)
	}

	disputes := disputeservice.NewService(disputeservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  disputerepo.Provide(),
		Clock: clk,
	})
	if err := disputes.Register(dispatcher); err != nil {
		t.Fatalf("register dispute handlers: %v", err)
	}

	webhook := paymentwebhook.NewService(paymentwebhook.Params{
		Log:        zap.NewNop(),
		Dispatcher: dispatcher,
		Adapters:   adapters.NewRegistry(stripe.NewFactory(clk)),
		Cfg: config.Config{Stripe: config.StripeConfig{
			WebhookSecret:    stripeSecret,
			WebhookTolerance: 5 * time.Minute,
		}},
	})

	return &harness{db: db, clock: clk, apps: apps, dispatcher: dispatcher, webhook: webhook, notifier: notifier}
}

func (h *harness) createApplication(t *testing.T, registration string) *applicationdomain.Application {
	t.Helper()
	app, err := h.apps.Create(context.Background(), applicationdomain.CreateRequest{
		Submission: applicationdomain.Submission{
			VesselName:         "Sea Breeze",
			VesselType:         "motorlu",
			VesselLength:       9.8,
			FlagCountry:        "TR",
			RegistrationNumber: registration,
			FirstName:          "Deniz",
			LastName:           "Kaya",
			Email:              "deniz@example.com",
			Nationality:        "TR",
			EntryPort:          "Bodrum",
			ExitPort:           "Kos",
			EntryDate:          "2026-07-01",
			ExitDate:           "2026-07-05",
			TripPurpose:        "Tourism",
			CrewCount:          1,
		},
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	return app
}

func (h *harness) ingest(t *testing.T, payload []byte) (paymentdomain.DispatchResult, error) {
	t.Helper()
	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader(stripeSecret, payload, h.clock.Now().Unix()))
	return h.webhook.IngestWebhook(context.Background(), "stripe", payload, headers)
}

func (h *harness) status(t *testing.T, id snowflake.ID) applicationdomain.Status {
	t.Helper()
	app, err := h.apps.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	return app.Status
}

func intentPayload(eventID, eventType string, applicationID snowflake.ID, created time.Time) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"created":%d,"data":{"object":{"id":"pi_%s","amount":15000,"amount_received":15000,"currency":"eur","created":%d,"metadata":{"application_id":%q}}}}`,
		eventID, eventType, created.Unix(), eventID, created.Unix(), applicationID.String(),
	))
}

func TestIngestWebhookConfirmsApplicationOnce(t *testing.T) {
	h := newHarness(t)
	app := h.createApplication(t, "TR-100")
	payload := intentPayload("evt_1", "payment_intent.succeeded", app.ID, h.clock.Now())

	result, err := h.ingest(t, payload)
	if err != nil {
		t.Fatalf("ingest webhook: %v", err)
	}
	if result.Status != paymentdomain.DispatchProcessed {
		t.Fatalf("expected processed, got %s", result.Status)
	}
	if status := h.status(t, app.ID); status != applicationdomain.StatusPaymentConfirmed {
		t.Fatalf("expected payment_confirmed, got %s", status)
	}

	h.clock.Advance(time.Minute)
	replay, err := h.ingest(t, payload)
	if err != nil {
		t.Fatalf("replay webhook: %v", err)
	}
	if replay.Status != paymentdomain.DispatchDuplicate {
		t.Fatalf("expected duplicate, got %s", replay.Status)
	}
	if replay.EventID != result.EventID {
		t.Fatalf("expected same ledger row, got %s and %s", result.EventID, replay.EventID)
	}

	if got := h.notifier.count(); got != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}
	assertCount(t, h.db, "SELECT COUNT(1) FROM webhook_events", 1)
	assertCount(t, h.db, "SELECT COUNT(1) FROM webhook_events WHERE processed_at IS NOT NULL", 1)

	loaded, err := h.apps.GetByID(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("get application: %v", err)
	}
	if loaded.PaymentReference != "pi_evt_1" || loaded.PaymentAmount != 15000 || loaded.PaymentCurrency != "EUR" {
		t.Fatalf("unexpected payment fields: %s %d %s", loaded.PaymentReference, loaded.PaymentAmount, loaded.PaymentCurrency)
	}
}

func TestDuplicateSucceededEventWithNewIDDoesNotNotifyTwice(t *testing.T) {
	h := newHarness(t)
	app := h.createApplication(t, "TR-101")

	if _, err := h.ingest(t, intentPayload("evt_a", "payment_intent.succeeded", app.ID, h.clock.Now())); err != nil {
		t.Fatalf("ingest first: %v", err)
	}
	result, err := h.ingest(t, intentPayload("evt_b", "payment_intent.succeeded", app.ID, h.clock.Now().Add(-time.Minute)))
	if err != nil {
		t.Fatalf("ingest second: %v", err)
	}
	if result.Status != paymentdomain.DispatchProcessed {
		t.Fatalf("expected processed, got %s", result.Status)
	}
	if got := h.notifier.count(); got != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}
	if status := h.status(t, app.ID); status != applicationdomain.StatusPaymentConfirmed {
		t.Fatalf("expected payment_confirmed, got %s", status)
	}
}

func TestConcurrentDeliveriesRunHandlerOnce(t *testing.T) {
	h := newHarness(t)
	app := h.createApplication(t, "TR-102")
	payload := intentPayload("evt_race", "payment_intent.succeeded", app.ID, h.clock.Now())

	const deliveries = 8
	var wg sync.WaitGroup
	results := make([]paymentdomain.DispatchResult, deliveries)
	errs := make([]error, deliveries)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.ingest(t, payload)
		}(i)
	}
	wg.Wait()

	processed := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("delivery %d: %v", i, errs[i])
		}
		if results[i].Status == paymentdomain.DispatchProcessed {
			processed++
		}
	}
	if processed != 1 {
		t.Fatalf("expected exactly one processed delivery, got %d", processed)
	}
	if got := h.notifier.count(); got != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}
	assertCount(t, h.db, "SELECT COUNT(1) FROM webhook_events", 1)
}

func TestHandlerErrorLeavesEventRetryable(t *testing.T) {
	h := newHarness(t)

	calls := 0
	err := h.dispatcher.Register("ledger_probe", func(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (paymentdomain.AfterCommit, error) {
		calls++
		if err := tx.Exec(`INSERT INTO countries (code, name) VALUES (?, ?)`, fmt.Sprintf("probe-%d", calls), "Probe").Error; err != nil {
			return nil, err
		}
		if calls == 1 {
			return nil, errors.New("downstream unavailable")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	event := func() *paymentdomain.PaymentEvent {
		return &paymentdomain.PaymentEvent{
			Provider:        "stripe",
			ProviderEventID: "evt_retry",
			Type:            "ledger_probe",
			OccurredAt:      h.clock.Now(),
			RawPayload:      []byte(`{"id":"evt_retry"}`),
		}
	}

	_, err = h.dispatcher.Dispatch(context.Background(), event())
	if !errors.Is(err, paymentdomain.ErrHandlerFailed) {
		t.Fatalf("expected handler failure, got %v", err)
	}
	assertCount(t, h.db, "SELECT COUNT(1) FROM countries WHERE code LIKE 'probe-%'", 0)
	assertCount(t, h.db, "SELECT COUNT(1) FROM webhook_events WHERE processed_at IS NULL AND attempts = 1 AND last_error <> ''", 1)

	result, err := h.dispatcher.Dispatch(context.Background(), event())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.Status != paymentdomain.DispatchProcessed {
		t.Fatalf("expected processed on retry, got %s", result.Status)
	}
	assertCount(t, h.db, "SELECT COUNT(1) FROM countries WHERE code LIKE 'probe-%'", 1)
	assertCount(t, h.db, "SELECT COUNT(1) FROM webhook_events WHERE processed_at IS NOT NULL AND attempts = 2 AND last_error = ''", 1)
}

func TestOlderSuccessDoesNotOverrideNewerFailure(t *testing.T) {
	h := newHarness(t)
	app := h.createApplication(t, "TR-103")
	now := h.clock.Now()

	if _, err := h.ingest(t, intentPayload("evt_fail", "payment_intent.payment_failed", app.ID, now)); err != nil {
		t.Fatalf("ingest failure: %v", err)
	}
	if status := h.status(t, app.ID); status != applicationdomain.StatusPaymentFailed {
		t.Fatalf("expected payment_failed, got %s", status)
	}

	if _, err := h.ingest(t, intentPayload("evt_old_ok", "payment_intent.succeeded", app.ID, now.Add(-10*time.Minute))); err != nil {
		t.Fatalf("ingest stale success: %v", err)
	}
	if status := h.status(t, app.ID); status != applicationdomain.StatusPaymentFailed {
		t.Fatalf("expected payment_failed to survive stale success, got %s", status)
	}
	if got := h.notifier.count(); got != 0 {
		t.Fatalf("expected no notification, got %d", got)
	}

	if _, err := h.ingest(t, intentPayload("evt_new_ok", "payment_intent.succeeded", app.ID, now.Add(time.Minute))); err != nil {
		t.Fatalf("ingest retry success: %v", err)
	}
	if status := h.status(t, app.ID); status != applicationdomain.StatusPaymentConfirmed {
		t.Fatalf("expected payment_confirmed, got %s", status)
	}
	if got := h.notifier.count(); got != 1 {
		t.Fatalf("expected one notification, got %d", got)
	}
}

func TestFailureAfterConfirmationIsIgnored(t *testing.T) {
	h := newHarness(t)
	app := h.createApplication(t, "TR-104")
	now := h.clock.Now()

	if _, err := h.ingest(t, intentPayload("evt_ok", "payment_intent.succeeded", app.ID, now)); err != nil {
		t.Fatalf("ingest success: %v", err)
	}
	if _, err := h.ingest(t, intentPayload("evt_late_fail", "payment_intent.payment_failed", app.ID, now.Add(time.Minute))); err != nil {
		t.Fatalf("ingest failure: %v", err)
	}
	if status := h.status(t, app.ID); status != applicationdomain.StatusPaymentConfirmed {
		t.Fatalf("expected payment_confirmed, got %s", status)
	}
}

func TestUnknownTypeAndApplicationAreAcknowledged(t *testing.T) {
	h := newHarness(t)

	payload := []byte(fmt.Sprintf(`{"id":"evt_cus","type":"customer.created","created":%d,"data":{"object":{"id":"cus_1"}}}`, h.clock.Now().Unix()))
	result, err := h.ingest(t, payload)
	if err != nil {
		t.Fatalf("ingest unknown type: %v", err)
	}
	if result.Status != paymentdomain.DispatchIgnored {
		t.Fatalf("expected ignored, got %s", result.Status)
	}

	missing := intentPayload("evt_orphan", "payment_intent.succeeded", snowflake.ID(123456789), h.clock.Now())
	result, err = h.ingest(t, missing)
	if err != nil {
		t.Fatalf("ingest unknown application: %v", err)
	}
	if result.Status != paymentdomain.DispatchProcessed {
		t.Fatalf("expected processed, got %s", result.Status)
	}
	if got := h.notifier.count(); got != 0 {
		t.Fatalf("expected no notification, got %d", got)
	}
	assertCount(t, h.db, "SELECT COUNT(1) FROM webhook_events WHERE processed_at IS NOT NULL", 2)
}

func TestIngestRejectsTamperedAndStaleEvents(t *testing.T) {
	h := newHarness(t)
	app := h.createApplication(t, "TR-105")
	payload := intentPayload("evt_t", "payment_intent.succeeded", app.ID, h.clock.Now())

	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader(stripeSecret, payload, h.clock.Now().Unix()))
	tampered := intentPayload("evt_t", "payment_intent.succeeded", snowflake.ID(1), h.clock.Now())
	if _, err := h.webhook.IngestWebhook(context.Background(), "stripe", tampered, headers); !errors.Is(err, paymentdomain.ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	headers.Set("Stripe-Signature", buildStripeSignatureHeader(stripeSecret, payload, h.clock.Now().Add(-time.Hour).Unix()))
	if _, err := h.webhook.IngestWebhook(context.Background(), "stripe", payload, headers); !errors.Is(err, paymentdomain.ErrStaleEvent) {
		t.Fatalf("expected stale event, got %v", err)
	}

	if _, err := h.webhook.IngestWebhook(context.Background(), "adyen", payload, headers); !errors.Is(err, paymentdomain.ErrProviderNotFound) {
		t.Fatalf("expected provider not found, got %v", err)
	}

	assertCount(t, h.db, "SELECT COUNT(1) FROM webhook_events", 0)
	if status := h.status(t, app.ID); status != applicationdomain.StatusPending {
		t.Fatalf("expected pending, got %s", status)
	}
}

func TestDisputeStatusNeverMovesBackwards(t *testing.T) {
	h := newHarness(t)
	app := h.createApplication(t, "TR-106")
	base := h.clock.Now()

	for i, eventType := range []string{
		"charge.dispute.created",
		"charge.dispute.closed",
		"charge.dispute.funds_withdrawn",
	} {
		payload := []byte(fmt.Sprintf(
			`{"id":"evt_dp_%d","type":%q,"created":%d,"data":{"object":{"id":"dp_1","payment_intent":"pi_1","amount":15000,"currency":"eur","reason":"fraudulent","created":%d,"metadata":{"application_id":%q}}}}`,
			i, eventType, base.Unix(), base.Add(time.Duration(i)*time.Minute).Unix(), app.ID.String(),
		))
		if _, err := h.ingest(t, payload); err != nil {
			t.Fatalf("ingest %s: %v", eventType, err)
		}
	}

	var status string
	if err := h.db.Raw("SELECT status FROM payment_disputes WHERE provider_dispute_id = ?", "dp_1").Scan(&status).Error; err != nil {
		t.Fatalf("scan status: %v", err)
	}
	if status != "closed" {
		t.Fatalf("expected closed, got %s", status)
	}
	assertCount(t, h.db, "SELECT COUNT(1) FROM payment_disputes", 1)
}

func TestRegisterRejectsDuplicateHandler(t *testing.T) {
	h := newHarness(t)
	err := h.dispatcher.Register(paymentdomain.EventTypePaymentSucceeded, func(ctx context.Context, tx *gorm.DB, event *paymentdomain.PaymentEvent) (paymentdomain.AfterCommit, error) {
		return nil, nil
	})
	if !errors.Is(err, paymentdomain.ErrHandlerAlreadyRegistered) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64) {
	t.Helper()
	if got := testutil.Count(t, db, query); got != expected {
		t.Fatalf("expected %d rows for %q, got %d", expected, query, got)
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
