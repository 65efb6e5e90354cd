package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/engage-agent/internal/platform"
)

const tracerName = "github.com/d60-Lab/engage-agent/internal/service"

// Generator 内容来源
type Generator interface {
	Generate(ctx context.Context) (string, error)
}

// Engager 每个活跃周期的互动步骤
type Engager interface {
	RunCycle(ctx context.Context, now time.Time) error
}

// SchedulerState 调度状态机
type SchedulerState string

const (
	StateWaitingForWindow      SchedulerState = "waiting_for_window"
	StateActiveCycle           SchedulerState = "active_cycle"
	StateSleepingBetweenCycles SchedulerState = "sleeping_between_cycles"
)

// SchedulerConfig 周期间隔 [IntervalMin, IntervalMax]，整秒均匀抖动
type SchedulerConfig struct {
	IntervalMin time.Duration
	IntervalMax time.Duration
	Window      PostingWindow
}

// CycleResult 一次活跃周期的结果
type CycleResult struct {
	ID        string
	Published bool
	PostID    platform.PostID
	Err       error
}

// Scheduler 单线程控制循环：窗口外等待，窗口内 生成->发帖->互动->休眠
type Scheduler struct {
	gen       Generator
	publisher platform.Publisher
	engager   Engager
	clock     Clock
	cfg       SchedulerConfig
	rnd       *rand.Rand
	log       *zap.Logger
	tracer    trace.Tracer
	state     SchedulerState
}

func NewScheduler(gen Generator, publisher platform.Publisher, engager Engager, clock Clock, cfg SchedulerConfig, rnd *rand.Rand, log *zap.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.IntervalMin <= 0 {
		cfg.IntervalMin = time.Hour
	}
	if cfg.IntervalMax < cfg.IntervalMin {
		cfg.IntervalMax = cfg.IntervalMin
	}
	return &Scheduler{
		gen:       gen,
		publisher: publisher,
		engager:   engager,
		clock:     clock,
		cfg:       cfg,
		rnd:       rnd,
		log:       log,
		tracer:    otel.Tracer(tracerName),
		state:     StateWaitingForWindow,
	}
}

func (s *Scheduler) State() SchedulerState { return s.state }

// Run 一直运行直到 ctx 取消；取消时返回 nil
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started",
		zap.String("window_start", s.cfg.Window.Start.String()),
		zap.String("window_end", s.cfg.Window.End.String()),
		zap.Duration("interval_min", s.cfg.IntervalMin),
		zap.Duration("interval_max", s.cfg.IntervalMax))

	for {
		now := s.clock.Now()
		if !s.cfg.Window.Contains(now) {
			s.state = StateWaitingForWindow
			wait := s.cfg.Window.UntilNextStart(now)
			s.log.Info("outside posting window, waiting", zap.Duration("wait", wait))
			if err := s.clock.Sleep(ctx, wait); err != nil {
				return s.stopped(err)
			}
			continue
		}

		s.RunOnce(ctx)

		s.state = StateSleepingBetweenCycles
		delay := s.NextInterval()
		s.log.Info("waiting before next cycle", zap.Duration("delay", delay))
		if err := s.clock.Sleep(ctx, delay); err != nil {
			return s.stopped(err)
		}
	}
}

func (s *Scheduler) stopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.log.Info("scheduler stopped")
		return nil
	}
	return err
}

// RunOnce 执行一个活跃周期，不休眠；所有失败只记录
func (s *Scheduler) RunOnce(ctx context.Context) CycleResult {
	s.state = StateActiveCycle
	res := CycleResult{ID: uuid.NewString()}
	log := s.log.With(zap.String("cycle", res.ID))

	ctx, span := s.tracer.Start(ctx, "scheduler.cycle", trace.WithAttributes(attribute.String("cycle.id", res.ID)))
	defer span.End()

	text, err := s.gen.Generate(ctx)
	switch {
	case err != nil:
		res.Err = err
		log.Warn("generated post is empty, skipping publish", zap.Error(err))
	case !Appropriate(text):
		res.Err = ErrInappropriate
		log.Warn("generated post is inappropriate, skipping publish")
	default:
		id, err := s.publisher.Publish(ctx, text)
		if err != nil {
			res.Err = errors.Join(ErrPublish, err)
			log.Error("publish failed", zap.Error(res.Err))
			span.RecordError(res.Err)
		} else {
			res.Published = true
			res.PostID = id
			log.Info("post published", zap.String("post", string(id)))
		}
	}
	span.SetAttributes(attribute.Bool("cycle.published", res.Published))

	// 生成失败时账本不动，直接进入休眠
	if errors.Is(res.Err, ErrGenerationFailed) {
		return res
	}

	if err := s.engager.RunCycle(ctx, s.clock.Now()); err != nil {
		log.Error("engagement cycle failed", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
	}
	return res
}

// NextInterval [IntervalMin, IntervalMax] 内的均匀随机整秒
func (s *Scheduler) NextInterval() time.Duration {
	lo := int64(s.cfg.IntervalMin / time.Second)
	hi := int64(s.cfg.IntervalMax / time.Second)
	if hi <= lo {
		return time.Duration(lo) * time.Second
	}
	return time.Duration(lo+s.rnd.Int63n(hi-lo+1)) * time.Second
}
