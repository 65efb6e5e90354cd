package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/engage-agent/config"
	"github.com/d60-Lab/engage-agent/internal/llm"
	"github.com/d60-Lab/engage-agent/internal/platform"
	"github.com/d60-Lab/engage-agent/internal/repository"
	"github.com/d60-Lab/engage-agent/internal/service"
	"github.com/d60-Lab/engage-agent/pkg/database"
	"github.com/d60-Lab/engage-agent/pkg/logger"
	"github.com/d60-Lab/engage-agent/pkg/tracing"
)

// app 进程内所有组件；closers 逆序释放
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	ledger    repository.Ledger
	window    service.PostingWindow
	engine    *service.EngagementEngine
	scheduler *service.Scheduler
	closers   []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadBase 配置、日志与账本；查询类命令只需要这一层
func loadBase(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dryRun {
		cfg.App.DryRun = true
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	hooked, flush, err := logger.WithSentry(log, cfg.Sentry)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.log = hooked
	a.closers = append(a.closers, flush)

	if a.window, err = windowFrom(cfg); err != nil {
		a.Close()
		return nil, err
	}

	if a.ledger, err = openLedger(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.ledger.Close() })
	return a, nil
}

// loadAgent 在 loadBase 之上建立平台会话与生成器；会话失败直接退出
func loadAgent(ctx context.Context) (*app, error) {
	a, err := loadBase(ctx)
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	if err := cfg.RequireCredentials(); err != nil {
		a.Close()
		return nil, err
	}

	shutdown, err := tracing.Init(ctx, cfg.App.Name, cfg.Tracing)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := shutdown(context.Background()); err != nil {
			a.log.Warn("tracing shutdown failed", zap.Error(err))
		}
	})

	today := a.window.Today(time.Now())
	if n, err := a.ledger.PurgeStaleCounters(ctx, today); err != nil {
		a.log.Warn("purge stale counters failed", zap.Error(err))
	} else if n > 0 {
		a.log.Info("purged stale daily counters", zap.Int64("rows", n))
	}

	bsky, err := platform.NewBluesky(ctx, platform.BlueskyOptions{
		Host:       cfg.Platform.Host,
		Identifier: cfg.Platform.Identifier,
		Password:   cfg.Platform.Password,
		Timeout:    cfg.Platform.Timeout,
		Language:   cfg.Engagement.Language,
	}, a.log)
	if err != nil {
		a.Close()
		return nil, err
	}
	var p platform.Platform = platform.NewPaced(bsky, cfg.Platform.RequestsPerSecond)
	if cfg.App.DryRun {
		a.log.Info("dry run enabled, platform writes are logged only")
		p = platform.NewDryRun(p, a.log)
	}

	completer, err := llm.NewGenAICompleter(ctx, cfg.Generator.APIKey, cfg.Generator.Model)
	if err != nil {
		a.Close()
		return nil, err
	}

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	gen := service.NewContentGenerator(completer, service.GeneratorConfig{
		Persona:         cfg.Generator.Persona,
		Topic:           cfg.Generator.Topic,
		Hashtags:        cfg.Generator.Hashtags,
		HashtagOdds:     cfg.Generator.HashtagOdds,
		MaxOutputTokens: cfg.Generator.MaxOutputTokens,
		Temperature:     cfg.Generator.Temperature,
		MaxChars:        cfg.Generator.MaxChars,
		MaxAttempts:     cfg.Generator.MaxAttempts,
		RetryBackoff:    cfg.Generator.RetryBackoff,
	}, rnd, a.log.Named("generator"))

	a.engine = service.NewEngagementEngine(a.ledger, p, a.window, service.EngagementConfig{
		DailyFollowCap:    cfg.Engagement.DailyFollowCap,
		GracePeriod:       cfg.Engagement.GracePeriod,
		Keywords:          cfg.Engagement.Keywords,
		Language:          cfg.Engagement.Language,
		SearchLimit:       cfg.Engagement.SearchLimit,
		FollowProbability: cfg.Engagement.FollowProbability,
		ThankYouMessages:  cfg.Engagement.ThankYouMessages,
	}, rnd, a.log.Named("engagement"))

	a.scheduler = service.NewScheduler(gen, p, a.engine, service.RealClock(), service.SchedulerConfig{
		IntervalMin: cfg.Schedule.IntervalMin,
		IntervalMax: cfg.Schedule.IntervalMax,
		Window:      a.window,
	}, rnd, a.log.Named("scheduler"))

	a.log.Info("agent ready",
		zap.String("account", bsky.Self().Handle),
		zap.String("model", completer.Name()),
		zap.Bool("dry_run", cfg.App.DryRun))
	return a, nil
}

func windowFrom(cfg *config.Config) (service.PostingWindow, error) {
	start, err := config.ParseClock(cfg.Schedule.WindowStart)
	if err != nil {
		return service.PostingWindow{}, err
	}
	end, err := config.ParseClock(cfg.Schedule.WindowEnd)
	if err != nil {
		return service.PostingWindow{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return service.PostingWindow{}, err
	}
	return service.PostingWindow{Start: start, End: end, Location: loc}, nil
}

func openLedger(ctx context.Context, cfg *config.Config) (repository.Ledger, error) {
	if cfg.Database.Driver == "redis" {
		rdb, err := database.InitRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisLedger(rdb, cfg.Redis.Prefix), nil
	}
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	return repository.NewGormLedger(db), nil
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
