package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"techpack-studio/internal/cache"
	"techpack-studio/internal/common/config"
	"techpack-studio/internal/common/database"
	apihttp "techpack-studio/internal/common/http"
	"techpack-studio/internal/common/logger"
	"techpack-studio/internal/common/observability"
	"techpack-studio/internal/facade"
	"techpack-studio/internal/ledger"
	"techpack-studio/internal/orchestrator"
	"techpack-studio/internal/stages"
	"techpack-studio/pkg/registry"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	appOnce sync.Once
	app     *app
	appErr  error
}

// app holds everything one CLI invocation needs.
type app struct {
	config *config.Config
	logger logger.Logger
	obs    *observability.Observability
	redis  *database.RedisClient
	ledger *ledger.Ledger
	orch   *orchestrator.Orchestrator
	hook   *facade.Hook

	unsubscribe func()
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path != "" {
			c.config, c.configErr = config.LoadFromFile(path)
			return
		}
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureApp(ctx context.Context) (*app, error) {
	c.appOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.appErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.app, c.appErr = buildApp(ctx, cfg)
	})
	return c.app, c.appErr
}

// withApp runs fn against the wired application under a context cancelled by SIGINT or SIGTERM.
func (c *commandContext) withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := c.ensureApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// withRun is withApp for one-shot generation commands; metrics are exposed while they run.
func (c *commandContext) withRun(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	return c.withApp(cmd, func(ctx context.Context, a *app) error {
		return withBackgroundMetrics(a, func() error { return fn(ctx, a) })
	})
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("observability disabled", map[string]interface{}{"error": err})
		obs = observability.NewNoop()
	}

	reg := registry.Default()
	if cfg.App.RegistryPath != "" {
		loaded, err := registry.LoadRegistry(cfg.App.RegistryPath)
		if err != nil {
			return nil, fmt.Errorf("load stage registry: %w", err)
		}
		reg = loaded
	}

	var techCache *cache.TechFileCache
	var redisClient *database.RedisClient
	if cfg.Cache.Enabled {
		redisClient = database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(ctx, func() error {
			return redisClient.Ping(ctx)
		}, 5, 500*time.Millisecond, log, "Redis connection")
		if err != nil {
			// the cache is optional; run without it
			log.Warn("tech-file cache disabled", map[string]interface{}{"error": err})
			_ = redisClient.Close()
			redisClient = nil
		} else {
			techCache = cache.New(redisClient, cfg.CacheTTL(), log)
		}
	}

	transport := apihttp.NewClient(cfg.API.BaseURL,
		apihttp.WithAPIKey(cfg.API.APIKey),
		apihttp.WithMaxRetries(cfg.API.MaxRetries),
	)
	client := stages.NewClient(transport, reg, cfg, obs, log)

	l := ledger.New(log)
	orch := orchestrator.New(cfg, client, l, techCache, reg, obs, log)
	hook := facade.New(orch, l, reg, log)

	a := &app{
		config: cfg,
		logger: log,
		obs:    obs,
		redis:  redisClient,
		ledger: l,
		orch:   orch,
		hook:   hook,
	}
	a.unsubscribe = l.Subscribe(progressReporter(log))
	return a, nil
}

func (a *app) close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", map[string]interface{}{"error": err})
		}
	}
	a.obs.Shutdown()
}

// progressReporter logs each step change and every progress advance of an active run.
func progressReporter(log logger.Logger) func(ledger.Snapshot) {
	var mu sync.Mutex
	var lastStep string
	lastProgress := -1

	return func(s ledger.Snapshot) {
		mu.Lock()
		defer mu.Unlock()

		step := string(s.Status.CurrentStep)
		if step == lastStep && s.Status.Progress == lastProgress {
			return
		}
		lastStep, lastProgress = step, s.Status.Progress
		if !s.Status.IsGenerating {
			return
		}
		log.Info("generation progress", map[string]interface{}{
			"step":     step,
			"progress": s.Status.Progress,
			"detail":   s.Status.CurrentStepDetail,
		})
	}
}
