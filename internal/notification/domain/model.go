package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Notifier sends the payment confirmation for an application. NotifyAsync
// returns immediately; delivery failures are logged, never returned.
type Notifier interface {
	NotifyAsync(applicationID snowflake.ID)
	SendConfirmation(ctx context.Context, applicationID snowflake.ID) error
}
