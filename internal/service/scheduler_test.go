package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/d60-Lab/engage-agent/internal/platform/platformtest"
)

type stubGenerator struct {
	text  string
	err   error
	calls int
}

func (g *stubGenerator) Generate(context.Context) (string, error) {
	g.calls++
	return g.text, g.err
}

type stubEngager struct {
	calls []time.Time
	err   error
}

func (e *stubEngager) RunCycle(_ context.Context, now time.Time) error {
	e.calls = append(e.calls, now)
	return e.err
}

func newTestScheduler(t *testing.T, gen Generator, pub *platformtest.Fake, eng Engager, clock Clock) *Scheduler {
	return NewScheduler(gen, pub, eng, clock, SchedulerConfig{
		IntervalMin: time.Hour,
		IntervalMax: 3 * time.Hour,
		Window:      testWindow(t),
	}, seeded(), zaptest.NewLogger(t))
}

func TestScheduler_OutsideWindowWaitsWithoutPlatformCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 5, 0, 0, 0, newYork(t)), maxSleeps: 1, cancel: cancel}
	gen := &stubGenerator{text: "hello"}
	pub := platformtest.NewFake()
	eng := &stubEngager{}
	s := newTestScheduler(t, gen, pub, eng, clock)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, []time.Duration{3 * time.Hour}, clock.sleeps)
	assert.Zero(t, gen.calls)
	assert.Zero(t, pub.Calls())
	assert.Empty(t, eng.calls)
	assert.Equal(t, StateWaitingForWindow, s.State())
}

func TestScheduler_RunsCycleThenSleeps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, newYork(t)), maxSleeps: 1, cancel: cancel}
	gen := &stubGenerator{text: "hello"}
	pub := platformtest.NewFake()
	eng := &stubEngager{}
	s := newTestScheduler(t, gen, pub, eng, clock)

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, []string{"hello"}, pub.Published)
	assert.Len(t, eng.calls, 1)
	require.Len(t, clock.sleeps, 1)
	assert.GreaterOrEqual(t, clock.sleeps[0], time.Hour)
	assert.LessOrEqual(t, clock.sleeps[0], 3*time.Hour)
	assert.Equal(t, StateSleepingBetweenCycles, s.State())
}

func TestScheduler_RunStopsWhenAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clock := &fakeClock{now: time.Date(2024, 5, 1, 23, 0, 0, 0, newYork(t))}
	s := newTestScheduler(t, &stubGenerator{}, platformtest.NewFake(), &stubEngager{}, clock)

	assert.NoError(t, s.Run(ctx))
	assert.Empty(t, clock.sleeps)
}

func TestScheduler_GenerationFailureSkipsEngagement(t *testing.T) {
	l := newTestLedger(t)
	pub := platformtest.NewFake()
	pub.Candidates = candidates(3)
	eng := newTestEngine(t, l, pub)
	gen := &stubGenerator{err: errors.Join(ErrGenerationFailed, errProvider)}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, newYork(t))}
	s := newTestScheduler(t, gen, pub, eng, clock)

	res := s.RunOnce(context.Background())
	assert.False(t, res.Published)
	assert.True(t, errors.Is(res.Err, ErrGenerationFailed))
	assert.Zero(t, pub.Calls())

	followed, err := l.ListFollowed(context.Background())
	require.NoError(t, err)
	assert.Empty(t, followed)
	cnt, err := l.GetFollowedToday(context.Background(), testDay)
	require.NoError(t, err)
	assert.Zero(t, cnt)
}

func TestScheduler_PublishFailureStillEngages(t *testing.T) {
	pub := platformtest.NewFake()
	pub.PublishErr = platformtest.ErrInjected
	eng := &stubEngager{}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, newYork(t))}
	s := newTestScheduler(t, &stubGenerator{text: "hello"}, pub, eng, clock)

	res := s.RunOnce(context.Background())
	assert.False(t, res.Published)
	assert.True(t, errors.Is(res.Err, ErrPublish))
	assert.True(t, errors.Is(res.Err, platformtest.ErrInjected))
	require.Len(t, eng.calls, 1)
	assert.True(t, eng.calls[0].Equal(clock.now))
}

func TestScheduler_EngagementErrorIsContained(t *testing.T) {
	pub := platformtest.NewFake()
	eng := &stubEngager{err: errors.New("ledger unavailable")}
	clock := &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, newYork(t))}
	s := newTestScheduler(t, &stubGenerator{text: "hello"}, pub, eng, clock)

	res := s.RunOnce(context.Background())
	assert.True(t, res.Published)
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.ID)
	assert.NotEmpty(t, res.PostID)
}

func TestScheduler_NextIntervalWithinBounds(t *testing.T) {
	s := newTestScheduler(t, &stubGenerator{}, platformtest.NewFake(), &stubEngager{}, &fakeClock{})
	for i := 0; i < 1000; i++ {
		d := s.NextInterval()
		assert.GreaterOrEqual(t, d, time.Hour)
		assert.LessOrEqual(t, d, 3*time.Hour)
		assert.Zero(t, d%time.Second)
	}
}

func TestScheduler_NextIntervalFixedWhenEqual(t *testing.T) {
	s := NewScheduler(&stubGenerator{}, platformtest.NewFake(), &stubEngager{}, &fakeClock{}, SchedulerConfig{
		IntervalMin: 90 * time.Minute,
		IntervalMax: 90 * time.Minute,
		Window:      testWindow(t),
	}, seeded(), zaptest.NewLogger(t))
	assert.Equal(t, 90*time.Minute, s.NextInterval())
}
