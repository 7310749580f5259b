package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/PbVrCt/serverless-chat-demo/internal/app/tasks"
	"github.com/PbVrCt/serverless-chat-demo/internal/config"
	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// Scheduler runs registered housekeeping tasks on their cron schedules.
type Scheduler struct {
	cron   gocron.Scheduler
	logger *slog.Logger
	jobs   []string

	// taskCtx is handed to every task run and cancelled when Run returns.
	taskCtx    context.Context
	cancelTask context.CancelFunc
}

// NewScheduler registers every enabled task of cfg with its implementation
// from registry. An enabled task that is missing from the registry, has no
// schedule or has an unparsable six-field cron expression is a configuration
// error.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, registry map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron,
		logger:     logger.With("component", "scheduler"),
		taskCtx:    taskCtx,
		cancelTask: cancel,
	}

	var configured map[string]config.TaskConfig
	if cfg != nil {
		configured = cfg.Tasks
	}
	for _, name := range slices.Sorted(maps.Keys(configured)) {
		if err := s.register(name, configured[name], registry); err != nil {
			cancel()
			_ = cron.Shutdown()
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) register(name string, tc config.TaskConfig, registry map[string]tasks.ScheduledTaskFunc) error {
	if !tc.Enabled {
		s.logger.Info("Task disabled", "task_name", name)
		return nil
	}

	task, ok := registry[name]
	switch {
	case !ok:
		return errs.NewConfigError(fmt.Sprintf("scheduler.tasks.%s: no such task", name), nil)
	case tc.Schedule == "":
		return errs.NewConfigError(fmt.Sprintf("scheduler.tasks.%s: schedule is empty", name), nil)
	}

	_, err := s.cron.NewJob(
		gocron.CronJob(tc.Schedule, true),
		gocron.NewTask(s.runTask, name, task),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return errs.NewConfigError(fmt.Sprintf("scheduler.tasks.%s: invalid schedule %q", name, tc.Schedule), err)
	}

	s.jobs = append(s.jobs, name)
	s.logger.Info("Task scheduled", "task_name", name, "schedule", tc.Schedule)
	return nil
}

func (s *Scheduler) runTask(name string, task tasks.ScheduledTaskFunc) {
	log := s.logger.With("task_name", name)
	start := time.Now()

	log.InfoContext(s.taskCtx, "Task started")
	if err := task(s.taskCtx); err != nil {
		log.ErrorContext(s.taskCtx, "Task failed", "duration", time.Since(start), "error", err)
		return
	}
	log.InfoContext(s.taskCtx, "Task finished", "duration", time.Since(start))
}

// Jobs returns the names of the scheduled tasks in registration order.
func (s *Scheduler) Jobs() []string {
	return slices.Clone(s.jobs)
}

// Run starts the scheduler and blocks until ctx is done. Running tasks see
// their context cancelled and are waited for before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		s.logger.Warn("No scheduled tasks enabled")
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "tasks", len(s.jobs))

	<-ctx.Done()

	s.cancelTask()
	if err := s.cron.Shutdown(); err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
		return fmt.Errorf("scheduler shutdown failed: %w", err)
	}
	s.logger.Info("Scheduler stopped")
	return nil
}
