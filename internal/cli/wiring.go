package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/krunaldodiya/tcc-manager/internal/cache"
	"github.com/krunaldodiya/tcc-manager/internal/config"
	"github.com/krunaldodiya/tcc-manager/internal/discovery"
	"github.com/krunaldodiya/tcc-manager/internal/engine"
	"github.com/krunaldodiya/tcc-manager/internal/hostexec"
	"github.com/krunaldodiya/tcc-manager/internal/mutator"
	"github.com/krunaldodiya/tcc-manager/internal/store"
)

// App is the set of services a command works with, built once from the
// loaded configuration.
type App struct {
	Config   *config.Config
	Engine   *engine.Engine
	Cache    *cache.Cache
	Resolver *discovery.Resolver

	// Querier is nil when permissions are read by script.
	Querier store.Querier

	// Helper is nil when mutations write the store directly.
	Helper *mutator.HelperBackend
}

// Preflight probes the configured stores once. It returns nil when
// permissions are read by script.
func (a *App) Preflight(ctx context.Context) []store.StoreStatus {
	if a.Querier == nil {
		return nil
	}
	return store.Preflight(ctx, a.Querier, a.Config.StorePaths())
}

// BuildApp wires discovery, the permission reader, the mutator and the
// cache into an Engine according to cfg.
func BuildApp(cfg *config.Config, runner hostexec.Runner, logger *slog.Logger, opts ...engine.Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg}

	app.Resolver = discovery.NewResolver(runner, cfg.Discovery.PlistTool, logger)
	disc := discovery.NewDiscoverer(runner, cfg.DiscoverySettings(), logger)

	paths := cfg.StorePaths()
	driver := store.Driver(cfg.Store.Driver)

	var reader engine.Reader
	switch store.Strategy(cfg.Store.Strategy) {
	case store.StrategyTool:
		app.Querier = store.NewToolQuerier(runner, cfg.Store.SQLiteTool)
		reader = store.NewPermissionStore(app.Resolver, app.Querier, paths, logger)
	case store.StrategyDirect:
		app.Querier = store.NewDirectQuerier(driver)
		reader = store.NewPermissionStore(app.Resolver, app.Querier, paths, logger)
	case config.StrategyScript:
		reader = store.NewScriptReader(app.Resolver, runner, cfg.Store.QueryScript, logger)
	default:
		return nil, fmt.Errorf("unknown store strategy %q", cfg.Store.Strategy)
	}

	var backend mutator.Backend
	switch mutator.Strategy(cfg.Mutation.Strategy) {
	case mutator.StrategyHelper:
		app.Helper = mutator.NewHelperBackend(runner, cfg.Mutation.HelperCandidates)
		backend = app.Helper
	case mutator.StrategyDirect:
		backend = mutator.NewDirectBackend(store.NewWriter(driver, paths.User), nil)
	default:
		return nil, fmt.Errorf("unknown mutation strategy %q", cfg.Mutation.Strategy)
	}

	var notifier *mutator.Notifier
	if cfg.Mutation.Notify {
		notifier = mutator.NewNotifier(runner, paths.User, logger)
	}
	mut := mutator.New(app.Resolver, backend, notifier, logger)

	app.Cache = cache.New(cfg.Cache.Path, logger)

	engineOpts := append([]engine.Option{engine.WithLogger(logger)}, opts...)
	app.Engine = engine.New(disc, reader, mut, app.Cache, cfg.EngineConfig(), engineOpts...)
	return app, nil
}
