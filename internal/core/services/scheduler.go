package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driven"
	"github.com/custodia-labs/sleepsync/internal/core/ports/driving"
	"github.com/custodia-labs/sleepsync/internal/logger"
)

// Ensure Scheduler implements the interfaces.
var (
	_ driving.Scheduler   = (*Scheduler)(nil)
	_ driving.TaskHistory = (*Scheduler)(nil)
)

// cronParser accepts standard five-field expressions and an optional
// leading seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule checks that expr is a supported cron expression.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: cron expression %q: %w", domain.ErrInvalidInput, expr, err)
	}
	return nil
}

// defaultPollInterval bounds how late a due task can start.
const defaultPollInterval = time.Second

// Scheduler manages background task execution.
// When a job queue is set, due tasks are enqueued rather than run inline.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	syncOrch driving.SyncOrchestrator
	queue    driven.JobQueue
	metrics  driven.SyncMetrics

	location     *time.Location
	pollInterval time.Duration
	now          func() time.Time

	mu       sync.Mutex
	running  bool
	inFlight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
// queue and metrics may be nil.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	syncOrch driving.SyncOrchestrator,
	queue driven.JobQueue,
	metrics driven.SyncMetrics,
) *Scheduler {
	if metrics == nil {
		metrics = driven.NopMetrics{}
	}
	loc := config.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		config:       config,
		store:        store,
		syncOrch:     syncOrch,
		queue:        queue,
		metrics:      metrics,
		location:     loc,
		pollInterval: defaultPollInterval,
		now:          time.Now,
		inFlight:     make(map[string]bool),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	// A returned Start may be restarted by a supervisor.
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if !s.config.Enabled {
		logger.Info("scheduler disabled")
		<-s.stopChOrDone(ctx)
		return ctx.Err()
	}

	if err := s.initialiseTasks(ctx); err != nil {
		return fmt.Errorf("initialise tasks: %w", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

func (s *Scheduler) stopChOrDone(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-ctx.Done():
		case <-s.stopCh:
		}
	}()
	return done
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	if taskCfg := s.config.GetTaskConfig(domain.TaskIDSleepSync); taskCfg.Enabled {
		if err := s.ensureTask(ctx, domain.TaskIDSleepSync, "Sleep Sync", taskCfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = domain.DefaultSchedule
	}
	if err := ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("task %s: %w", id, err)
	}
	sched, _ := cronParser.Parse(schedule)

	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now().In(s.location)
	if task == nil {
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Schedule: schedule,
			Enabled:  cfg.Enabled,
			NextRun:  sched.Next(now),
		}
	} else {
		if task.Schedule != schedule || task.NextRun.IsZero() {
			task.Schedule = schedule
			task.NextRun = sched.Next(now)
		}
		task.Enabled = cfg.Enabled
	}

	logger.With("task_id", id, "schedule", schedule).Info("task scheduled, next run %s", task.NextRun.Format(time.RFC3339))
	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		if task := &tasks[i]; task.Due(now) {
			s.runTask(ctx, task)
		}
	}
}

// nextRun returns the first activation of task after from.
func (s *Scheduler) nextRun(task *domain.ScheduledTask, from time.Time) time.Time {
	sched, err := cronParser.Parse(task.Schedule)
	if err != nil {
		sched, _ = cronParser.Parse(domain.DefaultSchedule)
	}
	return sched.Next(from.In(s.location))
}

// runTask executes a single task unless it is still running from a
// previous activation, in which case the activation is skipped.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.inFlight[task.ID] {
		s.mu.Unlock()
		s.metrics.CycleSkipped()
		logger.With("task_id", task.ID).Warn("previous run still active, skipping activation")
		task.NextRun = s.nextRun(task, s.now())
		if err := s.store.SaveTask(ctx, task); err != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
		}
		return
	}
	s.inFlight[task.ID] = true
	s.mu.Unlock()

	// Claim the activation before the run so the next poll does not see it as due.
	task.NextRun = s.nextRun(task, s.now())
	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: s.now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDSleepSync:
			err = s.runSleepSync(ctx, result)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}

		result.EndedAt = s.now()
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}
		task.LastRun = result.StartedAt
		task.NextRun = s.nextRun(task, result.EndedAt)

		// A cancelled context would fail every write below.
		persistCtx := context.WithoutCancel(ctx)

		if saveErr := s.store.SaveTask(persistCtx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}

		if recordErr := s.store.RecordResult(persistCtx, result); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}

		if pruneErr := s.store.PruneHistory(persistCtx, domain.MaxTaskHistory); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}
	}()
}

// runSleepSync runs or enqueues one sync-all cycle.
func (s *Scheduler) runSleepSync(ctx context.Context, result *domain.TaskResult) error {
	if s.queue != nil {
		job := domain.Job{ID: uuid.NewString(), Kind: domain.JobSyncAllUsers}
		result.RunID = job.ID
		if err := s.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue sync: %w", err)
		}
		logger.With("job_id", job.ID).Info("sync cycle enqueued")
		return nil
	}

	if s.syncOrch == nil {
		return nil
	}

	outcome, err := s.syncOrch.RunCycle(ctx, "")
	result.RunID = outcome.RunID
	result.ItemsProcessed = outcome.UsersProcessed
	result.ItemsFailed = outcome.UsersFailed
	if errors.Is(err, domain.ErrCycleInProgress) {
		logger.Info("scheduled cycle skipped: another run is active")
	}
	return err
}

// Tasks returns every known task.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// History returns recent results for a task, most recent first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.GetTaskHistory(ctx, taskID, limit)
}
