package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/engage-agent/config"
	"github.com/d60-Lab/engage-agent/internal/llm"
	"github.com/d60-Lab/engage-agent/internal/model"
	"github.com/d60-Lab/engage-agent/internal/repository"
)

func newTestLedger(t *testing.T) repository.Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.FollowedAccount{}, &model.DailyFollowCounter{}))
	l := repository.NewGormLedger(db)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func testWindow(t *testing.T) PostingWindow {
	return PostingWindow{
		Start:    config.Clock{Hour: 8},
		End:      config.Clock{Hour: 22},
		Location: newYork(t),
	}
}

func seeded() *rand.Rand { return rand.New(rand.NewSource(42)) }

// stubCompleter 按顺序返回预设结果
type stubCompleter struct {
	replies []string
	errs    []error
	calls   int
	reqs    []llm.Request
}

var errProvider = errors.New("provider unavailable")

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	i := s.calls
	s.calls++
	s.reqs = append(s.reqs, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errProvider
}

// fakeClock Sleep 只推进时间；达到 maxSleeps 后取消 ctx
type fakeClock struct {
	now       time.Time
	sleeps    []time.Duration
	maxSleeps int
	cancel    context.CancelFunc
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	if c.maxSleeps > 0 && len(c.sleeps) >= c.maxSleeps {
		c.cancel()
		return ctx.Err()
	}
	return nil
}
