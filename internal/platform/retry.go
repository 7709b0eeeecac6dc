package platform

import (
	"context"
	"errors"
	"time"

	"banter/internal/logging"
)

// SendWithRetry delivers text through the adapter, retrying transient
// failures up to attempts times with exponential backoff. ErrForbidden and
// context cancellation are never retried.
func SendWithRetry(ctx context.Context, a Adapter, channelID, text string, opts SendOptions, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = a.Send(ctx, channelID, text, opts)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrForbidden) || ctx.Err() != nil {
			return err
		}

		backoff := time.Duration(1<<uint(i)) * 250 * time.Millisecond
		logging.Platform("send to %s failed (attempt %d/%d), retrying in %v: %v",
			channelID, i+1, attempts, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
