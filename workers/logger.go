package workers

import (
	"context"
	"log"
	"time"

	"propmarket/models"
	"propmarket/storage"
)

// LogFunc is a function that logs to the activity_logs table
type LogFunc func(level models.LogLevel, source, message string)

// NoOpLogger does nothing (default)
var NoOpLogger LogFunc = func(level models.LogLevel, source, message string) {}

// NewStoreLogger writes entries through the store. Write failures only reach
// the process log.
func NewStoreLogger(store storage.Store) LogFunc {
	return func(level models.LogLevel, source, message string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.InsertLog(ctx, &models.ActivityLog{Level: level, Source: source, Message: message}); err != nil {
			log.Printf("Warning: failed to write activity log: %v", err)
		}
	}
}
