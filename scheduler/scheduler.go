package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"propmarket/config"
	"propmarket/models"
	"propmarket/services"
	"propmarket/storage"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// RequestMatcher reruns matching for one request
type RequestMatcher interface {
	MatchRequest(ctx context.Context, requestID uuid.UUID) (*services.MatchSummary, error)
}

type Scheduler struct {
	cfg     config.SchedulerConfig
	store   storage.Store
	matcher RequestMatcher
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}

	matchWorker  Triggerable
	healthWorker Triggerable
}

func New(cfg config.SchedulerConfig, store storage.Store, matcher RequestMatcher) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		store:   store,
		matcher: matcher,
		cron:    cron.New(),
		stopCh:  make(chan struct{}),
	}
}

// SetWorkers registers background workers for scheduled and manual triggering
func (s *Scheduler) SetWorkers(match, health Triggerable) {
	s.matchWorker = match
	s.healthWorker = health
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, s.triggerMatch)
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.triggerMatch()
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, matching runs only on commands and approvals")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) triggerMatch() {
	if s.matchWorker != nil {
		s.matchWorker.Trigger()
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// processCommands drains the command queue once. Every command is marked
// processed, failed or not, so a bad command cannot wedge the queue.
func (s *Scheduler) processCommands(ctx context.Context) int {
	cmds, err := s.store.GetPendingCommands(ctx)
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return 0
	}

	for _, cmd := range cmds {
		log.Printf("Processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, &cmd); err != nil {
			log.Printf("Command error: %v", err)
		}
		if err := s.store.MarkCommandProcessed(ctx, cmd.ID); err != nil {
			log.Printf("Error marking command processed: %v", err)
		}
	}
	return len(cmds)
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdRematchAll:
		if s.matchWorker != nil {
			s.matchWorker.Trigger()
			log.Println("Match worker triggered via command")
		}
		return nil
	case models.CmdRematchRequest:
		params, err := storage.ParseCommandParams(cmd)
		if err != nil {
			return fmt.Errorf("parse params: %w", err)
		}
		id, err := uuid.Parse(params.RequestID)
		if err != nil {
			return fmt.Errorf("rematch_request: bad request id %q", params.RequestID)
		}
		summary, err := s.matcher.MatchRequest(ctx, id)
		if err != nil {
			return fmt.Errorf("rematch %s: %w", id, err)
		}
		log.Printf("Rematched %s: %d stored, %d pruned", id, summary.Stored, summary.Pruned)
		return nil
	case models.CmdRunHealthcheck:
		if s.healthWorker != nil {
			s.healthWorker.Trigger()
			log.Println("Health worker triggered via command")
		}
		return nil
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}
