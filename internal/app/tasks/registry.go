// Package tasks implements the scheduled housekeeping tasks of the chat
// service and their registry.
package tasks

import (
	"context"
	"log/slog"

	"github.com/PbVrCt/serverless-chat-demo/internal/database"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// TaskDeps contains the dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
}

// StoreMaintenance is the registry key of the store maintenance task, as
// used in the scheduler.tasks configuration.
const StoreMaintenance = "store_maintenance"

// RegisterAllTasks returns every scheduled task keyed by its registry name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		StoreMaintenance: newStoreMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
