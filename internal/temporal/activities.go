package temporal

import (
	"context"
	"errors"

	sdk "go.temporal.io/sdk/temporal"

	"github.com/talentsync/talentsync/internal/reconcile"
)

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Reconciler *reconcile.Engine
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// SyncActivity executes one reconciliation pass against the configured
// record store and vector index. An overlapping run surfaces as a
// non-retryable application error so the workflow retry policy leaves the
// in-flight pass alone.
func SyncActivity(ctx context.Context, input SyncInput) (reconcile.Outcome, error) {
	if deps == nil || deps.Reconciler == nil {
		return reconcile.Outcome{}, errors.New("sync dependencies not configured")
	}

	outcome, err := deps.Reconciler.Synchronize(ctx)
	if err != nil {
		if errors.Is(err, reconcile.ErrSyncInProgress) {
			return reconcile.Outcome{}, sdk.NewNonRetryableApplicationError(
				"reconciliation already running", errSyncInProgress, err)
		}
		return reconcile.Outcome{}, err
	}
	return outcome, nil
}
