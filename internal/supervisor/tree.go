/*
Package supervisor runs kimo's long-lived services under a suture tree so a
crashed service is restarted with backoff instead of taking the process
down.
*/
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/khanglvm/kimo/internal/logger"
)

// Config tunes restart behaviour.
type Config struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultConfig matches suture's defaults with a 10s shutdown timeout.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the root supervisor with one child for the API and one for
// background maintenance.
type Tree struct {
	root        *suture.Supervisor
	api         *suture.Supervisor
	maintenance *suture.Supervisor
}

// NewTree builds an empty tree. Zero config fields take defaults.
func NewTree(log logger.Logger, cfg Config) *Tree {
	def := DefaultConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = def.FailureDecay
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = def.FailureBackoff
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = eventHook(log)

	t := &Tree{
		root:        suture.New("kimo", rootSpec),
		api:         suture.New("api", spec),
		maintenance: suture.New("maintenance", spec),
	}
	t.root.Add(t.api)
	t.root.Add(t.maintenance)
	return t
}

// eventHook routes suture events to the logger.
func eventHook(log logger.Logger) suture.EventHook {
	return func(e suture.Event) {
		switch ev := e.(type) {
		case suture.EventServicePanic:
			log.Error("service panicked",
				logger.String("supervisor", ev.SupervisorName),
				logger.String("service", ev.ServiceName),
				logger.String("panic", ev.PanicMsg),
			)
		case suture.EventServiceTerminate:
			log.Warn("service terminated",
				logger.String("supervisor", ev.SupervisorName),
				logger.String("service", ev.ServiceName),
				logger.Bool("restarting", ev.Restarting),
			)
		case suture.EventBackoff:
			log.Warn("supervisor backing off", logger.String("supervisor", ev.SupervisorName))
		default:
			log.Info(e.String())
		}
	}
}

// AddAPI adds a request-serving service.
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// AddMaintenance adds a background service such as the retention sweeper.
func (t *Tree) AddMaintenance(svc suture.Service) suture.ServiceToken {
	return t.maintenance.Add(svc)
}

// Serve runs the tree until ctx is done.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
