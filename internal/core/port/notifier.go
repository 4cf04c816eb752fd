package port

import (
	"context"

	"github.com/avelko/account-iam/internal/core/domain"
)

// Notifier delivers out-of-band notifications to an account. Delivery
// failures are reported through the returned bool, not as hard errors, so
// callers can treat them as non-fatal.
type Notifier interface {
	Send(ctx context.Context, account domain.Account, template string, data map[string]string) (delivered bool, err error)
}
