package domain

import "time"

// DefaultImportMonths is the history window used when none is given.
const DefaultImportMonths = 3

// SyncOutcome is the result of one sync cycle.
type SyncOutcome struct {
	// RunID identifies the cycle in logs and task history.
	RunID string `json:"run_id"`
	// Success is false only when candidate selection failed.
	Success bool `json:"success"`
	// UsersProcessed counts users whose publish succeeded.
	UsersProcessed int `json:"users_processed"`
	// UsersFailed counts users that hit an error at any step.
	UsersFailed int `json:"users_failed"`
	// UsersSkipped counts users with no data or no source token.
	UsersSkipped int       `json:"users_skipped"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
}

// ImportOutcome is the result of a historical import for one user.
type ImportOutcome struct {
	RunID   string `json:"run_id"`
	UserID  string `json:"user_id"`
	Success bool   `json:"success"`
	// DaysProcessed counts days whose publish succeeded.
	DaysProcessed int    `json:"days_processed"`
	DaysRequested int    `json:"days_requested"`
	From          string `json:"from"`
	To            string `json:"to"`
}

// CycleDate returns the date a recurring cycle syncs: the day before start,
// in start's location.
func CycleDate(start time.Time) string {
	return start.AddDate(0, 0, -1).Format(DateLayout)
}

// ImportDates returns every calendar date from (today - months) to today
// inclusive, ascending. months <= 0 uses DefaultImportMonths.
func ImportDates(today time.Time, months int) []string {
	if months <= 0 {
		months = DefaultImportMonths
	}
	end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	start := end.AddDate(0, -months, 0)

	var dates []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateLayout))
	}
	return dates
}
