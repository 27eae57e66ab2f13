package pdf

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// Provider renders documents attached to outbound notifications.
type Provider interface {
	ClearanceReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

type NoOpProvider struct{}

func (p *NoOpProvider) ClearanceReceipt(ctx context.Context, data ReceiptData) ([]byte, error) {
	return nil, nil
}
