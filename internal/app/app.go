// Package app wires config, logging, the build database and the trigger
// service into one runnable unit.
package app

import (
	"context"
	"fmt"
	"sync"

	"l10nsched/internal/builddb"
	"l10nsched/internal/config"
	"l10nsched/internal/eventbus"
	"l10nsched/internal/fanout"
	"l10nsched/internal/fetch"
	"l10nsched/internal/properties"
	"l10nsched/internal/trigger"
	logx "l10nsched/pkg/logx"
)

type App struct {
	manager *config.Manager
	logSvc  *logx.Service
	log     logx.Logger
	bus     eventbus.Bus

	db       *builddb.DB
	fetcher  *fetch.Client
	triggers *trigger.Service

	mu         sync.Mutex
	registered map[string]bool

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

// New loads the config file and constructs all services. Fetch knobs are
// fixed at startup; logging and the scheduler set follow config reloads.
func New(cfgPath string) (*App, error) {
	manager := config.NewManager(cfgPath)
	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	manager.SetLogger(log)

	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	db, err := builddb.Open(builddb.Config{Path: cfg.Storage.Path, BusyTimeout: busyTimeout}, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("open build database: %w", err)
	}

	fetchTimeout, err := config.ParseDurationOrDefault("fetch.timeout", cfg.Fetch.Timeout, fetch.DefaultTimeout)
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, err
	}

	nightlyTimeout, err := config.ParseDurationField("trigger.nightly_timeout", cfg.Trigger.NightlyTimeout)
	if err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, err
	}

	a := &App{
		manager: manager,
		logSvc:  logSvc,
		log:     log,
		bus:     eventbus.New(),
		db:      db,
		fetcher: fetch.NewClient(fetch.Config{Timeout: fetchTimeout, RatePerHost: cfg.Fetch.RatePerHost}),
		triggers: trigger.NewService(trigger.Config{
			Enabled:        cfg.Trigger.Enabled,
			Timezone:       cfg.Trigger.Timezone,
			NightlyTimeout: nightlyTimeout,
		}, log),
		registered: map[string]bool{},
	}

	if err := a.applySchedulers(cfg); err != nil {
		_ = db.Close()
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

// applySchedulers (re)builds the scheduler registry from cfg. Schedulers
// that disappeared from config are removed; the rest are upserted.
func (a *App) applySchedulers(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := map[string]bool{}
	for _, sc := range cfg.Schedulers {
		fcfg := fanout.Config{
			Platform:    sc.Platform,
			Branch:      sc.Branch,
			BaseTag:     sc.BaseTag,
			Repo:        sc.Repo,
			LocalesFile: sc.LocalesFile,
			LocalesURL:  sc.LocalesURL,
			Locales:     sc.LocaleList(),
		}
		deps := fanout.Deps{
			Fetcher: a.fetcher,
			DB:      a.db,
			Log:     a.log,
			Bus:     a.bus,
		}
		if len(sc.Properties) > 0 {
			deps.BaseProperties = properties.FromMap(sc.Properties, "Config")
		}

		t, err := trigger.NewTriggerable(sc.Name, sc.Builders, fcfg, deps)
		if err != nil {
			return fmt.Errorf("scheduler %q: %w", sc.Name, err)
		}
		if sc.Nightly != "" {
			if err := a.triggers.AddNightly(sc.Nightly, t); err != nil {
				return fmt.Errorf("scheduler %q: %w", sc.Name, err)
			}
		} else {
			a.triggers.Register(t)
		}
		next[sc.Name] = true
	}

	for name := range a.registered {
		if !next[name] {
			a.triggers.Remove(name)
		}
	}
	a.registered = next
	return nil
}

// Start begins nightly triggering and the config watch.
func (a *App) Start(ctx context.Context) error {
	a.triggers.Start(ctx)

	wctx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel

	sub := a.manager.Subscribe(1)
	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		if err := a.manager.Watch(wctx); err != nil && wctx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	go func() {
		defer a.watchWG.Done()
		for {
			select {
			case <-wctx.Done():
				return
			case cfg, ok := <-sub:
				if !ok {
					return
				}
				a.apply(cfg)
			}
		}
	}()
	return nil
}

// apply reacts to a config reload: logging and the scheduler set change
// live; storage and fetch settings need a restart.
func (a *App) apply(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	if err := a.applySchedulers(cfg); err != nil {
		a.log.Error("config reload: scheduler rebuild failed", logx.Err(err))
		return
	}
	a.bus.Publish(eventbus.Event{Type: eventbus.TypeConfigReloaded})
	a.log.Info("configuration applied", logx.Int("schedulers", len(cfg.Schedulers)))
}

func (a *App) Stop(ctx context.Context) error {
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchWG.Wait()
	}
	a.triggers.Stop(ctx)
	err := a.db.Close()
	_ = a.logSvc.Close()
	return err
}

func (a *App) Triggers() *trigger.Service { return a.triggers }
func (a *App) DB() *builddb.DB            { return a.db }
func (a *App) Bus() eventbus.Bus          { return a.bus }
func (a *App) Logger() logx.Logger        { return a.log }
