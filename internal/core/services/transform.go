package services

import (
	"fmt"

	"github.com/custodia-labs/sleepsync/internal/core/domain"
)

// Transform converts a sleep record into the sink payload for userID.
// It performs no I/O; equal inputs always produce equal payloads.
func Transform(userID string, rec domain.SleepRecord) domain.SinkPayload {
	return domain.SinkPayload{
		ExternalID: domain.IdempotencyKey(userID, rec.Date),
		Entity:     fmt.Sprintf("Sleep (%d min, %d%% efficiency)", rec.MinutesAsleep, rec.Efficiency),
		Type:       domain.SinkEntityType,
		Category:   domain.SinkCategory,
		StartTime:  domain.UnixSeconds(rec.Start),
		EndTime:    domain.UnixSeconds(rec.End),
		Project:    domain.SinkProject,
		Meta:       fmt.Sprintf("Sleep duration: %d minutes, Efficiency: %d%%", rec.MinutesAsleep, rec.Efficiency),
	}
}
