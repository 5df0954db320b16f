package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by both providers.
const DateLayout = "2006-01-02"

// Sink payload constants.
const (
	SinkEntityType = "app"
	SinkCategory   = "indexing"
	SinkProject    = "Sleep"
)

// SleepRecord is the main sleep session of one user for one calendar day.
type SleepRecord struct {
	// Date is the calendar date the session belongs to (YYYY-MM-DD).
	Date string
	// LogID is the provider's session identifier.
	LogID int64
	Start time.Time
	End   time.Time

	MinutesAsleep int
	// Efficiency is a percentage, 0-100.
	Efficiency int
	// MainSleep is true if the provider flagged the session as main sleep.
	MainSleep bool
}

// SleepSession is one session as listed by the source provider for a day.
type SleepSession struct {
	DateOfSleep   string
	LogID         int64
	Start         time.Time
	End           time.Time
	MinutesAsleep int
	Efficiency    int
	IsMainSleep   bool
}

// SelectMainSleep picks the session flagged as main sleep, or the first
// session if none is flagged. It returns nil for an empty list.
// fallbackDate is used when the session carries no date of its own.
func SelectMainSleep(sessions []SleepSession, fallbackDate string) *SleepRecord {
	if len(sessions) == 0 {
		return nil
	}
	chosen := sessions[0]
	for _, s := range sessions {
		if s.IsMainSleep {
			chosen = s
			break
		}
	}
	date := chosen.DateOfSleep
	if date == "" {
		date = fallbackDate
	}
	return &SleepRecord{
		Date:          date,
		LogID:         chosen.LogID,
		Start:         chosen.Start,
		End:           chosen.End,
		MinutesAsleep: chosen.MinutesAsleep,
		Efficiency:    chosen.Efficiency,
		MainSleep:     chosen.IsMainSleep,
	}
}

// IdempotencyKey is the sink external id for a user's sleep on a date.
// Publishing twice with the same key overwrites rather than duplicates.
func IdempotencyKey(userID, date string) string {
	return fmt.Sprintf("sleep_%s_%s", userID, date)
}

// SinkPayload is one external duration as accepted by the sink provider.
// Field order is fixed so that equal payloads encode to identical bytes.
type SinkPayload struct {
	ExternalID string  `json:"external_id"`
	Entity     string  `json:"entity"`
	Type       string  `json:"type"`
	Category   string  `json:"category"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	Project    string  `json:"project"`
	Meta       string  `json:"meta"`
}

// UnixSeconds converts t to fractional seconds since the epoch at
// millisecond precision.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}
