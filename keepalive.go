package memcache

import (
	"context"
	"time"
)

// runKeepAlive issues a no-op on conn and waits for MN within a deadline
// of frequency, but never less than one second.
// Success is reported via sink.KeepAliveSucceeded; any error — including a
// deadline exceeded — is reported via KeepAliveFailed and returned so the
// pool can retire the connection instead of returning it to Idle.
func runKeepAlive(ctx context.Context, conn *Connection, id ConnID, frequency time.Duration, sink EventSink) error {
	sink.KeepAliveTriggered(id)

	deadline, cancel := context.WithTimeout(ctx, clamp(frequency, time.Second))
	defer cancel()

	if err := conn.NoOp(deadline); err != nil {
		sink.KeepAliveFailed(id, err)
		return err
	}

	sink.KeepAliveSucceeded(id)
	return nil
}
