package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/twilio-labs/bulk-sms-tool/internal/api/handlers"
	"github.com/twilio-labs/bulk-sms-tool/internal/api/middleware"
	"github.com/twilio-labs/bulk-sms-tool/internal/config"
	"github.com/twilio-labs/bulk-sms-tool/internal/dispatch"
	"github.com/twilio-labs/bulk-sms-tool/internal/infra/redis"
	"github.com/twilio-labs/bulk-sms-tool/internal/scheduler"
	bulksvc "github.com/twilio-labs/bulk-sms-tool/internal/service/bulk"
	"github.com/twilio-labs/bulk-sms-tool/internal/sms"
	smsmock "github.com/twilio-labs/bulk-sms-tool/internal/sms/mock"
	smstwilio "github.com/twilio-labs/bulk-sms-tool/internal/sms/twilio"
	"github.com/twilio-labs/bulk-sms-tool/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	// Redis backs the per-IP rate limiter; nil when not configured.
	Redis *redis.Client

	components struct {
		once      sync.Once
		providers *providers
		services  *services
	}
}

type providers struct {
	SMS    sms.Factory
	Lister sms.ServiceLister
}

type services struct {
	Bulk *bulksvc.Service
	Jobs *scheduler.Store
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	container := &Container{
		Config: cfg,
		Logger: lg,
	}

	if cfg.Redis.Address != "" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		container.Redis = redisClient
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		prov := &providers{}
		switch c.Config.SMS.ProviderName {
		case "mock":
			factory := smsmock.NewFactory(c.Config.SMS)
			prov.SMS = factory
			prov.Lister = factory
		default:
			factory := smstwilio.NewFactory(c.Config.SMS)
			prov.SMS = factory
			prov.Lister = factory
		}

		engine := dispatch.NewEngine(prov.SMS, c.Logger.Named("dispatch"))

		jobs := scheduler.NewStore(engine, c.Logger.Named("scheduler"), scheduler.Config{
			MaxBatch:        c.Config.SMS.MaxScheduledBatch,
			PreviewLength:   c.Config.SMS.PreviewLength,
			ResultMaxAge:    c.Config.Scheduler.ResultMaxAge,
			ResultMaxCount:  c.Config.Scheduler.ResultMaxCount,
			JanitorInterval: c.Config.Scheduler.JanitorInterval,
		})

		c.components.providers = prov
		c.components.services = &services{
			Bulk: bulksvc.NewService(engine, c.Config.SMS.MaxImmediateBatch),
			Jobs: jobs,
		}
	})
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Providers exposes messaging provider integrations.
func (c *Container) Providers() *providers {
	c.initComponents()
	return c.components.providers
}

// HandlerSet builds HTTP handlers with dependencies.
func (c *Container) HandlerSet() *handlers.HandlerSet {
	c.initComponents()
	return handlers.NewHandlerSet(
		c.Logger.Named("http"),
		c.Config,
		c.components.services.Bulk,
		c.components.services.Jobs,
		c.components.providers.Lister,
	)
}

// RateLimiter builds the per-IP limiter, or nil when Redis is absent.
func (c *Container) RateLimiter() *middleware.RateLimiter {
	if c.Redis == nil {
		return nil
	}
	return middleware.NewRateLimiter(c.Redis.Inner(), c.Config.RateLimit, c.Logger.Named("ratelimit"))
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error

	if c.components.services != nil && c.components.services.Jobs != nil {
		c.components.services.Jobs.Stop()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
