package domain

import "time"

// TaskIDSleepSync identifies the recurring sync-all-users task.
const TaskIDSleepSync = "sleep-sync"

// DefaultSchedule runs the sync every thirty minutes.
const DefaultSchedule = "*/30 * * * *"

// MaxTaskHistory is the number of results kept per task.
const MaxTaskHistory = 100

// ScheduledTask is the persisted state of one recurring task. Zero times
// mean "never".
type ScheduledTask struct {
	ID       string
	Name     string
	Schedule string // cron expression, five or six fields

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	// LastError is cleared by the next successful run.
	LastError string

	Enabled bool
}

// Due reports whether the task should start at now. A task that has never
// been scheduled is due immediately.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !t.NextRun.After(now))
}

// TaskResult is one run of a task as recorded in its history.
type TaskResult struct {
	TaskID string
	// RunID correlates the result with the cycle's log lines, or names the
	// job when the run was handed to the queue.
	RunID string

	StartedAt time.Time
	EndedAt   time.Time

	Success bool
	Error   string

	// ItemsProcessed and ItemsFailed count users.
	ItemsProcessed int
	ItemsFailed    int
}

// Duration returns how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TaskConfig configures one task.
type TaskConfig struct {
	Enabled  bool
	Schedule string
}

// SchedulerConfig configures the job driver.
type SchedulerConfig struct {
	// Enabled is the master switch; a disabled scheduler idles until stopped.
	Enabled     bool
	TaskConfigs map[string]TaskConfig
	// Location is the zone cron expressions are evaluated in. Nil means UTC.
	Location *time.Location
}

// GetTaskConfig returns the configuration for taskID, or a zero (disabled)
// TaskConfig when it is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig enables the sleep sync on DefaultSchedule in UTC.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		TaskConfigs: map[string]TaskConfig{
			TaskIDSleepSync: {Enabled: true, Schedule: DefaultSchedule},
		},
	}
}
