package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker on the given task queue.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(SyncWorkflow)
	w.RegisterActivity(SyncActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// ScheduleSync starts SyncWorkflow on a cron schedule. An empty cron spec
// starts a single immediate run instead.
func ScheduleSync(ctx context.Context, c client.Client, taskQueue, cron string, input SyncInput) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:           "talentsync-sync",
		TaskQueue:    taskQueue,
		CronSchedule: cron,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, SyncWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("starting sync workflow: %w", err)
	}
	return run, nil
}
