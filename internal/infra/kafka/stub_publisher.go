package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avelko/account-iam/internal/core/domain"
	"github.com/avelko/account-iam/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType string, accountID int64, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("stub event published",
		zap.String("event_type", eventType),
		zap.Int64("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishPasswordChanged logs acct.password.changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"kind":       event.Kind,
		"changed_at": event.ChangedAt,
		"reason":     event.Reason,
		"metadata":   event.Metadata,
	}
	p.logEvent("acct.password.changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishPasswordResetRequested logs acct.password.reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"account_id":         event.AccountID,
		"requested_at":       event.RequestedAt,
		"masked_destination": event.MaskedDestination,
		"expires_at":         event.ExpiresAt,
		"delivered":          event.Delivered,
		"metadata":           event.Metadata,
	}
	p.logEvent("acct.password.reset_requested", event.AccountID, event.RequestedAt, payload)
	return nil
}

// PublishAccountStatusChanged logs acct.account.status_changed events.
func (p *StubPublisher) PublishAccountStatusChanged(_ context.Context, event domain.AccountStatusChangedEvent) error {
	payload := map[string]any{
		"account_id": event.AccountID,
		"kind":       event.Kind,
		"status":     event.Status,
		"changed_at": event.ChangedAt,
	}
	p.logEvent("acct.account.status_changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
