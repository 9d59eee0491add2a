package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/tierhub-io/tierhub/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordDelivery upserts the audit row for a processor event delivery.
// Redeliveries of the same external event ID update the existing row and
// bump the attempt counter, which makes duplicate delivery observable.
func (r *Reconciler) RecordDelivery(ctx context.Context, externalID, kind string, payload []byte, outcome, detail string) error {
	if externalID == "" {
		return nil
	}

	now := time.Now().UTC()
	record := models.WebhookEvent{
		ExternalEventID: externalID,
		Kind:            kind,
		Payload:         datatypes.JSON(payload),
		Outcome:         outcome,
		Error:           detail,
		Attempts:        1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if errUpsert := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_event_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"outcome":    outcome,
			"error":      detail,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		}),
	}).Create(&record).Error; errUpsert != nil {
		return fmt.Errorf("billing: record delivery: %w", errUpsert)
	}
	return nil
}
