package workers

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"propmarket/models"
)

// Matcher reruns matching for every open request
type Matcher interface {
	RematchAll(ctx context.Context) (processed, failed int, err error)
}

// MatchWorker reruns matching on a timer and on demand
type MatchWorker struct {
	matcher   Matcher
	triggerCh chan struct{}
	logFunc   LogFunc
	running   sync.Mutex
}

func NewMatchWorker(matcher Matcher) *MatchWorker {
	return &MatchWorker{
		matcher:   matcher,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *MatchWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately. Triggers arriving while a
// run is queued collapse into one.
func (w *MatchWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// Run starts the worker loop. An interval of zero disables the timer.
func (w *MatchWorker) Run(ctx context.Context, interval time.Duration) {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Match worker stopping")
			return
		case <-tick:
			w.RunOnce(ctx)
		case <-w.triggerCh:
			log.Println("Match worker triggered")
			w.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single rematch pass. Concurrent calls are serialized.
func (w *MatchWorker) RunOnce(ctx context.Context) (processed, failed int, err error) {
	w.running.Lock()
	defer w.running.Unlock()

	start := time.Now()
	processed, failed, err = w.matcher.RematchAll(ctx)
	if err != nil {
		log.Printf("Match worker: rematch error: %v", err)
		w.logFunc(models.LogLevelError, "matcher", fmt.Sprintf("Rematch failed: %v", err))
		return processed, failed, err
	}

	log.Printf("Match worker: rematched %d requests, %d failed in %s", processed, failed, time.Since(start).Round(time.Millisecond))
	if failed > 0 {
		w.logFunc(models.LogLevelWarn, "matcher", fmt.Sprintf("Rematched %d requests, %d failed", processed, failed))
	} else if processed > 0 {
		w.logFunc(models.LogLevelInfo, "matcher", fmt.Sprintf("Rematched %d requests", processed))
	}
	return processed, failed, nil
}
