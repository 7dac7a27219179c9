package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brizzai/oauth-playground/internal/auth/flow"
	"github.com/brizzai/oauth-playground/internal/config"
	"github.com/brizzai/oauth-playground/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Sink stores records in one table.
type Sink interface {
	// Ensure creates the table when it is absent.
	Ensure(ctx context.Context) error
	Insert(ctx context.Context, r Record) error
	Close() error
}

// Observer is told the outcome of every persist attempt.
type Observer interface {
	ObservePersist(platform, result string)
}

// Open connects the sink cfg describes.
func Open(ctx context.Context, cfg config.PersistenceConfig) (Sink, error) {
	if !cfg.Enabled() {
		return nil, ErrSinkNotConfigured
	}
	table := strings.TrimSpace(cfg.Table)
	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case config.SinkDriverPostgres:
		return openPostgres(ctx, cfg.DSN, table)
	case config.SinkDriverSQLite:
		return openSQLite(ctx, cfg.DSN, table)
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrPersistenceFailed, cfg.Driver)
	}
}

// Persister writes session credentials to a lazily opened sink.
type Persister struct {
	cfg      config.PersistenceConfig
	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	sink    Sink
	ensured bool
}

func NewPersister(cfg config.PersistenceConfig, observer Observer) *Persister {
	return &Persister{cfg: cfg, observer: observer, now: time.Now}
}

// NewWithSink uses an already opened sink.
func NewWithSink(sink Sink, observer Observer) *Persister {
	return &Persister{sink: sink, observer: observer, now: time.Now}
}

// Enabled reports whether persisting can be attempted at all.
func (p *Persister) Enabled() bool {
	return p != nil && (p.sink != nil || p.cfg.Enabled())
}

// Persist appends the session's credentials. The session itself is never changed.
func (p *Persister) Persist(ctx context.Context, snap flow.Snapshot) (Record, error) {
	if !p.Enabled() {
		return Record{}, ErrSinkNotConfigured
	}

	rec, err := NewRecord(snap.Config.Name, snap.Tokens, snap.Profile, p.now())
	if err == nil {
		err = p.insert(ctx, rec)
	}

	result := "success"
	if err != nil {
		result = "failed"
		logger.Error("Failed to persist credentials", zap.String("platform", snap.Config.Name), zap.Error(err))
	} else {
		logger.Info("Credentials persisted",
			zap.String("platform", rec.Platform),
			zap.String("unique_id", rec.UniqueID),
		)
	}
	if p.observer != nil {
		p.observer.ObservePersist(snap.Config.Name, result)
	}
	return rec, err
}

func (p *Persister) insert(ctx context.Context, rec Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sink == nil {
		sink, err := Open(ctx, p.cfg)
		if err != nil {
			return err
		}
		p.sink = sink
	}
	if !p.ensured {
		if err := p.sink.Ensure(ctx); err != nil {
			return err
		}
		p.ensured = true
	}
	return p.sink.Insert(ctx, rec)
}

func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil {
		return nil
	}
	err := p.sink.Close()
	p.sink = nil
	p.ensured = false
	return err
}

type PersisterParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.PersistenceConfig `optional:"true"`
	Observer  Observer                  `optional:"true"`
}

func newPersister(params PersisterParams) *Persister {
	var cfg config.PersistenceConfig
	if params.Config != nil {
		cfg = *params.Config
	}
	p := NewPersister(cfg, params.Observer)
	params.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return p.Close() },
	})
	return p
}

var Module = fx.Module("persistence",
	fx.Provide(newPersister),
)
