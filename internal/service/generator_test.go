package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rivo/uniseg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestGenerator(t *testing.T, c *stubCompleter) *ContentGenerator {
	return NewContentGenerator(c, GeneratorConfig{
		Persona:      "You are a wellness enthusiast.",
		Topic:        "anti-aging and healthy living",
		Hashtags:     []string{"#AntiAging", "#Wellness"},
		MaxChars:     280,
		MaxAttempts:  3,
		RetryBackoff: time.Millisecond,
	}, seeded(), zaptest.NewLogger(t))
}

func TestClean(t *testing.T) {
	assert.Equal(t, "Drink water!", Clean("  \"Drink water!\"\n"))
	assert.Equal(t, "Sleep well", Clean("'Sleep well'"))
	assert.Equal(t, "it's fine", Clean(" it's fine "))
	assert.Equal(t, "", Clean(` "" `))
}

func TestTruncate(t *testing.T) {
	short := "short post"
	assert.Equal(t, short, Truncate(short, 280))

	exact := strings.Repeat("a", 280)
	assert.Equal(t, exact, Truncate(exact, 280))

	long := strings.Repeat("b", 300)
	got := Truncate(long, 280)
	assert.Equal(t, 280, uniseg.GraphemeClusterCount(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, strings.Repeat("b", 277), strings.TrimSuffix(got, "..."))

	// emoji 按一个字符计
	emoji := strings.Repeat("🥑", 20)
	got = Truncate(emoji, 10)
	assert.Equal(t, 10, uniseg.GraphemeClusterCount(got))
	assert.Equal(t, strings.Repeat("🥑", 7)+"...", got)
}

func TestBuildPrompt(t *testing.T) {
	g := newTestGenerator(t, &stubCompleter{})

	with := g.BuildPrompt(true)
	assert.Contains(t, with, "anti-aging and healthy living")
	assert.Contains(t, with, "#AntiAging #Wellness")
	assert.Contains(t, with, "under 280 characters")

	without := g.BuildPrompt(false)
	assert.Contains(t, without, "Do not include any hashtags.")
	assert.NotContains(t, without, "#AntiAging")
}

func TestGenerate_Success(t *testing.T) {
	c := &stubCompleter{replies: []string{"  \"Stay hydrated, friends!\"  "}}
	g := newTestGenerator(t, c)

	text, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Stay hydrated, friends!", text)
	require.Len(t, c.reqs, 1)
	assert.Equal(t, "You are a wellness enthusiast.", c.reqs[0].System)
	assert.Equal(t, int32(80), c.reqs[0].MaxOutputTokens)
	assert.InDelta(t, 0.8, c.reqs[0].Temperature, 1e-6)
	assert.Equal(t, int32(1), c.reqs[0].CandidateCount)
}

func TestGenerate_RetriesThenSucceeds(t *testing.T) {
	c := &stubCompleter{
		errs:    []error{errProvider, errProvider},
		replies: []string{"", "", "Third time lucky"},
	}
	g := newTestGenerator(t, c)

	text, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Third time lucky", text)
	assert.Equal(t, 3, c.calls)
}

func TestGenerate_ExhaustsRetries(t *testing.T) {
	c := &stubCompleter{errs: []error{errProvider, errProvider, errProvider, nil}, replies: []string{"", "", "", "never"}}
	g := newTestGenerator(t, c)

	text, err := g.Generate(context.Background())
	assert.Empty(t, text)
	assert.True(t, errors.Is(err, ErrGenerationFailed))
	assert.True(t, errors.Is(err, errProvider))
	assert.Equal(t, 3, c.calls)
}

func TestGenerate_EmptyCompletionCountsAsFailure(t *testing.T) {
	c := &stubCompleter{replies: []string{"  ", `""`, "ok"}}
	g := newTestGenerator(t, c)

	text, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, c.calls)
}

func TestGenerate_HashtagDraw(t *testing.T) {
	replies := make([]string, 200)
	for i := range replies {
		replies[i] = "post"
	}
	c := &stubCompleter{replies: replies}
	g := newTestGenerator(t, c)

	for i := 0; i < len(replies); i++ {
		_, err := g.Generate(context.Background())
		require.NoError(t, err)
	}
	tagged := 0
	for _, r := range c.reqs {
		if strings.Contains(r.User, "#AntiAging") {
			tagged++
		}
	}
	// 1/5 概率，200 次里应大致 40 次
	assert.Greater(t, tagged, 15)
	assert.Less(t, tagged, 70)
}

func TestAppropriate(t *testing.T) {
	assert.True(t, Appropriate("anything"))
}
