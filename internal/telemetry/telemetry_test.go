package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// The global provider defaults to no-op instruments, so recording must
// always be safe without an SDK configured.
func TestRecordWithoutSDK(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	ctx := context.Background()
	m.SessionStarted(ctx, "mixed")
	m.SessionEnded(ctx)
	m.SessionTerminated(ctx, "cheating")
	m.Violation(ctx)
	m.Reconnect(ctx)
	m.RecordSaved(ctx)
}
