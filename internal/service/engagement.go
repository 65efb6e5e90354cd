package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/engage-agent/internal/model"
	"github.com/d60-Lab/engage-agent/internal/platform"
	"github.com/d60-Lab/engage-agent/internal/repository"
)

const fallbackGreeting = "Hey there!"

// EngagementConfig 关注配额、回关宽限期与检索条件
type EngagementConfig struct {
	DailyFollowCap    int64
	GracePeriod       time.Duration
	Keywords          []string
	Language          string
	SearchLimit       int
	FollowProbability float64
	ThankYouMessages  []string
}

// FollowReport 一次 SearchAndFollow 的结果
type FollowReport struct {
	Remaining  int64
	Candidates int
	Followed   int64
	Failed     int
	Skipped    bool
}

// SweepReport 一次回关检查的结果
type SweepReport struct {
	Checked    int
	Thanked    int
	Unfollowed int
	Failed     int
}

// EngagementEngine 发现->关注->致谢->取关；账本只由这里写入
type EngagementEngine struct {
	ledger   repository.Ledger
	platform platform.Platform
	window   PostingWindow
	cfg      EngagementConfig
	rnd      *rand.Rand
	log      *zap.Logger
}

func NewEngagementEngine(ledger repository.Ledger, p platform.Platform, window PostingWindow, cfg EngagementConfig, rnd *rand.Rand, log *zap.Logger) *EngagementEngine {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 48 * time.Hour
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 50
	}
	if len(cfg.ThankYouMessages) == 0 {
		cfg.ThankYouMessages = []string{"Thanks for the follow!"}
	}
	return &EngagementEngine{ledger: ledger, platform: p, window: window, cfg: cfg, rnd: rnd, log: log}
}

// RunCycle 抛硬币决定是否检索关注；回关检查每轮都跑
func (e *EngagementEngine) RunCycle(ctx context.Context, now time.Time) error {
	if e.rnd.Float64() < e.cfg.FollowProbability {
		if _, err := e.SearchAndFollow(ctx, e.window.Today(now), now); err != nil {
			e.log.Error("search and follow aborted", zap.Error(err))
		}
	} else {
		e.log.Debug("search and follow skipped this cycle")
	}

	report, err := e.CheckReciprocity(ctx, now)
	if err != nil {
		return err
	}
	e.log.Info("reciprocity sweep done",
		zap.Int("checked", report.Checked),
		zap.Int("thanked", report.Thanked),
		zap.Int("unfollowed", report.Unfollowed),
		zap.Int("failed", report.Failed))
	return nil
}

// SearchAndFollow 在今日剩余配额内按检索顺序关注新账号，结束后一次性累加计数
func (e *EngagementEngine) SearchAndFollow(ctx context.Context, today string, now time.Time) (FollowReport, error) {
	var report FollowReport

	done, err := e.ledger.GetFollowedToday(ctx, today)
	if err != nil {
		return report, fmt.Errorf("read daily counter: %w", err)
	}
	report.Remaining = e.cfg.DailyFollowCap - done
	if report.Remaining <= 0 {
		report.Skipped = true
		e.log.Info("daily follow limit reached", zap.String("date", today), zap.Int64("followed", done))
		return report, nil
	}

	candidates, err := e.platform.SearchRecent(ctx, platform.Query{
		Keywords:        e.cfg.Keywords,
		Language:        e.cfg.Language,
		ExcludeReshares: true,
	}, e.cfg.SearchLimit)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	report.Candidates = len(candidates)
	if len(candidates) == 0 {
		e.log.Info("no accounts found to follow")
		return report, nil
	}

	// 已发生的关注必须落账，关停信号不能打断这两次写入
	persist := context.WithoutCancel(ctx)
	self := e.platform.Self().ID
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if report.Followed >= report.Remaining {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}
		if c.AuthorID == "" || c.AuthorID == self {
			continue
		}
		if _, dup := seen[c.AuthorID]; dup {
			continue
		}
		seen[c.AuthorID] = struct{}{}

		followed, err := e.ledger.IsFollowed(ctx, c.AuthorID)
		if err != nil {
			report.Failed++
			e.log.Error("ledger lookup failed", zap.String("account", c.AuthorID),
				zap.Error(fmt.Errorf("%w: %w", ErrPerAccountEngagement, err)))
			continue
		}
		if followed {
			continue
		}

		if err := e.platform.Follow(ctx, c.AuthorID); err != nil {
			report.Failed++
			e.log.Error("follow failed", zap.String("account", c.AuthorID),
				zap.Error(fmt.Errorf("%w: %w", ErrPerAccountEngagement, err)))
			continue
		}
		// 关注已真实发生，计入配额
		report.Followed++
		if err := e.ledger.RecordFollow(persist, c.AuthorID, c.AuthorHandle, now); err != nil {
			// 账号已关注但不在账本里：不会被致谢或取关，之后还可能被重复关注
			e.log.Error("record follow failed, account untracked",
				zap.String("account", c.AuthorID),
				zap.Error(fmt.Errorf("%w: %w", ErrPerAccountEngagement, err)))
		}
		e.log.Info("followed account", zap.String("account", c.AuthorID), zap.String("handle", c.AuthorHandle))
	}

	if report.Followed > 0 {
		if err := e.ledger.IncrementFollowedToday(persist, today, report.Followed); err != nil {
			return report, fmt.Errorf("update daily counter: %w", err)
		}
	}
	e.log.Info("search and follow done",
		zap.String("date", today),
		zap.Int64("followed", report.Followed),
		zap.Int64("remaining_before", report.Remaining),
		zap.Int("candidates", report.Candidates))
	return report, nil
}

// CheckReciprocity 遍历账本快照：回关且未致谢则致谢；未回关且超过宽限期（严格大于）则取关
func (e *EngagementEngine) CheckReciprocity(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	accounts, err := e.ledger.ListFollowed(ctx)
	if err != nil {
		return report, fmt.Errorf("list followed: %w", err)
	}

	for _, fa := range accounts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := e.checkOne(ctx, fa, now, &report); err != nil {
			report.Failed++
			e.log.Error("engagement check failed",
				zap.String("account", fa.AccountID),
				zap.Error(fmt.Errorf("%w: %w", ErrPerAccountEngagement, err)))
		}
	}
	return report, nil
}

func (e *EngagementEngine) checkOne(ctx context.Context, fa *model.FollowedAccount, now time.Time, report *SweepReport) error {
	acct, err := e.platform.GetAccount(ctx, fa.AccountID)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	if acct.FollowsCaller {
		if fa.Thanked {
			return nil
		}
		e.log.Info("account followed back", zap.String("account", fa.AccountID))
		if err := e.thank(ctx, fa, acct); err != nil {
			return err
		}
		report.Thanked++
		return nil
	}

	if now.Sub(fa.FollowedAt) <= e.cfg.GracePeriod {
		return nil
	}
	if err := e.platform.Unfollow(ctx, fa.AccountID); err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	if err := e.ledger.RemoveFollowed(ctx, fa.AccountID); err != nil {
		return fmt.Errorf("remove followed: %w", err)
	}
	report.Unfollowed++
	e.log.Info("unfollowed account without follow-back",
		zap.String("account", fa.AccountID),
		zap.Duration("since_follow", now.Sub(fa.FollowedAt)))
	return nil
}

// thank 致谢发出后才标记；发帖失败下一轮重试
func (e *EngagementEngine) thank(ctx context.Context, fa *model.FollowedAccount, acct *platform.Account) error {
	msg := e.cfg.ThankYouMessages[e.rnd.Intn(len(e.cfg.ThankYouMessages))]
	text := ThankYouText(acct.Handle, fa.Handle, msg)

	id, err := e.platform.Publish(ctx, text)
	if err != nil {
		return fmt.Errorf("send thank-you: %w: %w", ErrPublish, err)
	}
	if err := e.ledger.MarkThanked(ctx, fa.AccountID); err != nil {
		return fmt.Errorf("mark thanked: %w", err)
	}
	e.log.Info("sent thank-you", zap.String("account", fa.AccountID), zap.String("post", string(id)))
	return nil
}

// ThankYouText 优先使用平台返回的 handle，其次账本中的 handle
func ThankYouText(handle, ledgerHandle, msg string) string {
	if handle == "" {
		handle = ledgerHandle
	}
	if handle == "" {
		return fallbackGreeting + " " + msg
	}
	return fmt.Sprintf("@%s %s", handle, msg)
}
