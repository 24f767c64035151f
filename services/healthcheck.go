package services

import (
	"context"
	"time"

	"propmarket/storage"
)

// Pinger is anything the health check should reach, such as a Redis client
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthcheckService reports whether the backing services answer
type HealthcheckService struct {
	store  storage.Store
	extras map[string]Pinger
}

func NewHealthcheckService(store storage.Store) *HealthcheckService {
	return &HealthcheckService{store: store, extras: make(map[string]Pinger)}
}

// Register adds a named dependency to the check
func (s *HealthcheckService) Register(name string, p Pinger) {
	s.extras[name] = p
}

// Check pings every dependency and returns "ok" or the error text per name
func (s *HealthcheckService) Check(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true

	record := func(name string, err error) {
		if err != nil {
			status[name] = err.Error()
			healthy = false
			return
		}
		status[name] = "ok"
	}

	record("database", s.store.Ping(ctx))
	for name, p := range s.extras {
		record(name, p.Ping(ctx))
	}
	return status, healthy
}
