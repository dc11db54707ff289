package temporal

import (
	"fmt"
	"time"

	sdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/talentsync/talentsync/internal/reconcile"
)

// TaskQueue is the queue the sync worker listens on.
const TaskQueue = "talentsync-sync"

// errSyncInProgress is the application error type the activity raises when a
// reconciliation pass is already running. The workflow must not retry it: the
// in-flight pass is doing the work this run would have done.
const errSyncInProgress = "SyncInProgress"

// SyncInput holds the workflow parameters.
type SyncInput struct {
	ActivityTimeout time.Duration // StartToCloseTimeout for the sync activity
}

// SyncWorkflow runs a single index reconciliation pass. Scheduled runs use a
// cron schedule on the workflow start options; each tick is one pass.
func SyncWorkflow(ctx workflow.Context, input SyncInput) (*reconcile.Outcome, error) {
	timeout := input.ActivityTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &sdk.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{errSyncInProgress},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var outcome reconcile.Outcome
	if err := workflow.ExecuteActivity(ctx, SyncActivity, input).Get(ctx, &outcome); err != nil {
		return nil, fmt.Errorf("sync activity: %w", err)
	}
	return &outcome, nil
}
