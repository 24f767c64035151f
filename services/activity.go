package services

import (
	"context"
	"fmt"
	"log"

	"propmarket/models"
	"propmarket/storage"
)

// recordActivity writes an operational event to the activity log. Failures
// are logged and never fail the caller.
func recordActivity(ctx context.Context, store storage.Store, level models.LogLevel, source, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", source, msg)
	if err := store.InsertLog(ctx, &models.ActivityLog{Level: level, Source: source, Message: msg}); err != nil {
		log.Printf("Warning: failed to write activity log: %v", err)
	}
}
