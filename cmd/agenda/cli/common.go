package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/felixgeelhaar/agenda/internal/config"
	"github.com/felixgeelhaar/agenda/internal/confirm"
	"github.com/felixgeelhaar/agenda/internal/credential"
	"github.com/felixgeelhaar/agenda/internal/guard"
	"github.com/felixgeelhaar/agenda/internal/mcp"
	"github.com/felixgeelhaar/agenda/internal/memory"
	"github.com/felixgeelhaar/agenda/internal/observe"
	"github.com/felixgeelhaar/agenda/internal/runtime"
	"github.com/felixgeelhaar/agenda/internal/schedule"
	"github.com/felixgeelhaar/agenda/internal/store"
)

// app is everything a command needs, wired from the configuration.
type app struct {
	cfg     *config.Config
	obs     *observe.Observer
	store   *store.Store
	memory  *memory.Engine
	pending *confirm.PendingStore
	runtime *runtime.Runtime
}

// loadConfig reads, checks and unseals the configuration file.
func loadConfig(obs *observe.Observer) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	res := config.Validate(cfg)
	for _, w := range res.Warnings {
		obs.Log().Warn().Str("config", configPath).Msg(w)
	}
	if !res.Valid {
		return nil, fmt.Errorf("invalid configuration %s: %v", configPath, res.Errors)
	}

	sealer, err := credential.NewSealer()
	if err != nil {
		return nil, err
	}
	if err := config.Unseal(cfg, sealer); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bootstrap opens the store and memory and builds the runtime. Logs go to logOut.
func bootstrap(ctx context.Context, logOut io.Writer) (*app, error) {
	obs := observe.NewWith(logOut, observe.Options{JSON: jsonLogs, Verbose: verbose})

	cfg, err := loadConfig(obs)
	if err != nil {
		return nil, err
	}
	if cfg.Log.JSON || cfg.Log.Verbose {
		obs = observe.NewWith(logOut, observe.Options{
			JSON:    jsonLogs || cfg.Log.JSON,
			Verbose: verbose || cfg.Log.Verbose,
		})
	}

	s, err := openStore(ctx, cfg.Data)
	if err != nil {
		return nil, err
	}

	mem := memory.Open(memory.Options{
		Path:       cfg.Memory.Path,
		MaxEntries: cfg.Memory.MaxEntries,
		Observer:   obs,
	})
	pending := confirm.NewPendingStore(time.Now)
	rt := runtime.New(mcp.NewExecutor(s, obs), pending, mem, guard.New(cfg.Guard), obs)

	obs.Log().Info().
		Str("backend", cfg.Data.Backend).
		Str("memory", cfg.Memory.Path).
		Msg("agenda runtime ready")

	return &app{cfg: cfg, obs: obs, store: s, memory: mem, pending: pending, runtime: rt}, nil
}

func openStore(ctx context.Context, data config.DataConfig) (*store.Store, error) {
	switch data.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendSQLite:
		return store.NewSQLiteStore(data.SQLitePath)
	case config.BackendMongo:
		return store.NewMongoStore(ctx, data.MongoURI, data.MongoDatabase)
	}
	return nil, fmt.Errorf("unknown data backend %q", data.Backend)
}

// Close flushes memory, drops pending writes and closes the store.
func (a *app) Close() error {
	return errors.Join(
		a.runtime.Shutdown(a.cfg.Memory.SessionMaxAge.Std()),
		a.store.Close(),
	)
}

// startScheduler begins the pending sweep and session cleanup jobs.
func (a *app) startScheduler() (*schedule.Scheduler, error) {
	sched := schedule.New(a.runtime, schedule.Options{
		PendingTTL:      a.cfg.Confirm.PendingTTL.Std(),
		SweepInterval:   a.cfg.Confirm.SweepInterval.Std(),
		SessionMaxAge:   a.cfg.Memory.SessionMaxAge.Std(),
		CleanupInterval: a.cfg.Memory.CleanupInterval.Std(),
	}, a.obs)
	if err := sched.Start(); err != nil {
		return nil, err
	}
	return sched, nil
}

func stopScheduler(sched *schedule.Scheduler) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sched.Stop(ctx)
}
