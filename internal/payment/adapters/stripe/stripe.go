package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/translog/internal/clock"
	paymentdomain "github.com/smallbiznis/translog/internal/payment/domain"
)

const (
	providerName     = "stripe"
	signatureHeader  = "Stripe-Signature"
	defaultTolerance = 5 * time.Minute
)

type Factory struct {
	clock clock.Clock
}

func NewFactory(clk clock.Clock) *Factory {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Factory{clock: clk}
}

func (f *Factory) Provider() string {
	return providerName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret, ok := readString(cfg.Config, "webhook_secret")
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	tolerance := defaultTolerance
	if value, ok := cfg.Config["tolerance"].(time.Duration); ok && value > 0 {
		tolerance = value
	}

	return &Adapter{
		webhookSecret: secret,
		tolerance:     tolerance,
		clock:         f.clock,
	}, nil
}

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	clock         clock.Clock
}

// Verify checks the v1 HMAC-SHA256 signature over "<t>.<payload>" and then
// rejects timestamps further than the tolerance from now in either direction.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get(signatureHeader))
	if sigHeader == "" {
		return paymentdomain.ErrMissingSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrMalformedSignature
	}
	signedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrMalformedSignature
	}

	expected := computeSignature(a.webhookSecret, timestamp, payload)
	matched := false
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return paymentdomain.ErrSignatureMismatch
	}

	skew := a.clock.Now().Sub(time.Unix(signedAt, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.tolerance {
		return paymentdomain.ErrStaleEvent
	}
	return nil
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch eventType := strings.TrimSpace(event.Type); eventType {
	case "payment_intent.succeeded":
		return a.parsePaymentIntent(event, payload, paymentdomain.EventTypePaymentSucceeded)
	case "payment_intent.payment_failed":
		return a.parsePaymentIntent(event, payload, paymentdomain.EventTypePaymentFailed)
	case "charge.dispute.created":
		return a.parseDispute(event, payload, paymentdomain.EventTypeDisputeCreated)
	case "charge.dispute.funds_withdrawn":
		return a.parseDispute(event, payload, paymentdomain.EventTypeDisputeFundsWithdrawn)
	case "charge.dispute.funds_reinstated":
		return a.parseDispute(event, payload, paymentdomain.EventTypeDisputeFundsReinstated)
	case "charge.dispute.closed":
		return a.parseDispute(event, payload, paymentdomain.EventTypeDisputeClosed)
	default:
		return &paymentdomain.PaymentEvent{
			Provider:        providerName,
			ProviderEventID: event.ID,
			Type:            eventType,
			OccurredAt:      timestamp(0, event.Created),
			RawPayload:      payload,
		}, nil
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripePaymentIntent struct {
	ID             string         `json:"id"`
	Amount         int64          `json:"amount"`
	AmountReceived int64          `json:"amount_received"`
	Currency       string         `json:"currency"`
	Created        int64          `json:"created"`
	Metadata       map[string]any `json:"metadata"`
}

type stripeDispute struct {
	ID            string         `json:"id"`
	PaymentIntent string         `json:"payment_intent"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Reason        string         `json:"reason"`
	Created       int64          `json:"created"`
	Metadata      map[string]any `json:"metadata"`
}

func (a *Adapter) parsePaymentIntent(event stripeEvent, payload []byte, eventType string) (*paymentdomain.PaymentEvent, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	amount := intent.Amount
	if eventType == paymentdomain.EventTypePaymentSucceeded && intent.AmountReceived > 0 {
		amount = intent.AmountReceived
	}

	return &paymentdomain.PaymentEvent{
		Provider:            providerName,
		ProviderEventID:     event.ID,
		ProviderPaymentID:   intent.ID,
		ProviderPaymentType: "payment_intent",
		Type:                eventType,
		ApplicationID:       parseApplicationID(intent.Metadata),
		Amount:              amount,
		Currency:            strings.ToUpper(strings.TrimSpace(intent.Currency)),
		OccurredAt:          timestamp(intent.Created, event.Created),
		RawPayload:          payload,
	}, nil
}

func (a *Adapter) parseDispute(event stripeEvent, payload []byte, eventType string) (*paymentdomain.PaymentEvent, error) {
	var dispute stripeDispute
	if err := json.Unmarshal(event.Data.Object, &dispute); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(dispute.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	return &paymentdomain.PaymentEvent{
		Provider:            providerName,
		ProviderEventID:     event.ID,
		ProviderPaymentID:   strings.TrimSpace(dispute.PaymentIntent),
		ProviderPaymentType: "dispute",
		Type:                eventType,
		ApplicationID:       parseApplicationID(dispute.Metadata),
		Amount:              dispute.Amount,
		Currency:            strings.ToUpper(strings.TrimSpace(dispute.Currency)),
		OccurredAt:          timestamp(dispute.Created, event.Created),
		RawPayload:          payload,
		Dispute: &paymentdomain.DisputeDetail{
			ProviderDisputeID: strings.TrimSpace(dispute.ID),
			Reason:            strings.TrimSpace(dispute.Reason),
		},
	}, nil
}

func computeSignature(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%s.%s", timestamp, string(payload))))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" && value != "" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature_header")
	}
	return timestamp, signatures, nil
}

// timestamp prefers the object's creation time; a zero result means the
// event carried neither.
func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0).UTC()
}

func parseApplicationID(metadata map[string]any) snowflake.ID {
	raw := readMetadataValue(metadata, "application_id")
	if raw == "" {
		return 0
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0
	}
	return id
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}

func readString(config map[string]any, key string) (string, bool) {
	value, ok := config[key]
	if !ok {
		return "", false
	}
	cast, ok := value.(string)
	return cast, ok
}
