package workers

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"propmarket/models"
)

// Checker reports per-dependency health
type Checker interface {
	Check(ctx context.Context) (map[string]string, bool)
}

// HealthWorker polls the dependency checks and records every change between
// healthy and unhealthy
type HealthWorker struct {
	checker   Checker
	triggerCh chan struct{}
	logFunc   LogFunc
	healthy   bool
	seen      bool
}

func NewHealthWorker(checker Checker) *HealthWorker {
	return &HealthWorker{
		checker:   checker,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *HealthWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *HealthWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the health check loop
func (w *HealthWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.checkOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Health worker stopping")
			return
		case <-ticker.C:
			w.checkOnce(ctx)
		case <-w.triggerCh:
			w.checkOnce(ctx)
		}
	}
}

// checkOnce returns true when the health state changed
func (w *HealthWorker) checkOnce(ctx context.Context) bool {
	status, ok := w.checker.Check(ctx)
	changed := !w.seen || ok != w.healthy
	w.seen = true
	w.healthy = ok
	if !changed {
		return false
	}

	if ok {
		log.Println("Healthcheck: all dependencies ok")
		w.logFunc(models.LogLevelInfo, "healthcheck", "All dependencies ok")
		return true
	}

	msg := "Unhealthy: " + describeFailures(status)
	log.Printf("Warning: %s", msg)
	w.logFunc(models.LogLevelError, "healthcheck", msg)
	return true
}

func describeFailures(status map[string]string) string {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		if status[name] != "ok" {
			parts = append(parts, fmt.Sprintf("%s (%s)", name, status[name]))
		}
	}
	return strings.Join(parts, ", ")
}
