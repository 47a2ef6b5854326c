package game

import (
	"log"
	"sync"
	"time"
)

// Registry caches one controller per user. Controllers are created on
// first use, reused across requests, and closed after an idle period;
// their durable state is already persisted incrementally so eviction
// only needs an outbox flush.
type Registry struct {
	mu          sync.Mutex
	controllers map[int64]*Controller

	config      ControllerConfig
	idleTimeout time.Duration
	now         func() time.Time
}

// NewRegistry builds a registry that creates controllers from config
func NewRegistry(config ControllerConfig, idleTimeout time.Duration) *Registry {
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		controllers: make(map[int64]*Controller),
		config:      config,
		idleTimeout: idleTimeout,
		now:         now,
	}
}

// Get returns the user's controller, loading it on first access
func (r *Registry) Get(userID int64) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[userID]; ok {
		return c, nil
	}
	c, err := NewController(userID, r.config)
	if err != nil {
		return nil, err
	}
	r.controllers[userID] = c
	return c, nil
}

// SweepIdle closes controllers that have seen no activity for the idle
// timeout and returns how many were evicted.
func (r *Registry) SweepIdle() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTimeout)
	evicted := 0
	for userID, c := range r.controllers {
		if c.LastActive().Before(cutoff) {
			c.Close()
			delete(r.controllers, userID)
			evicted++
		}
	}
	return evicted
}

// StartSweeper runs SweepIdle on an interval until stop is closed
func (r *Registry) StartSweeper(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := r.SweepIdle(); n > 0 {
					log.Printf("Evicted %d idle game controller(s)", n)
				}
			}
		}
	}()
}

// Close closes every cached controller
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.controllers {
		c.Close()
		delete(r.controllers, userID)
	}
}
