package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rivo/uniseg"
	"go.uber.org/zap"

	"github.com/d60-Lab/engage-agent/internal/llm"
)

const ellipsis = "..."

var errEmptyCompletion = errors.New("completion empty after cleanup")

// GeneratorConfig 提示词与生成参数
type GeneratorConfig struct {
	Persona         string
	Topic           string
	Hashtags        []string
	HashtagOdds     int // 1/HashtagOdds 的概率带话题标签
	MaxOutputTokens int32
	Temperature     float32
	MaxChars        int
	MaxAttempts     int
	RetryBackoff    time.Duration
}

// ContentGenerator 按模板生成一条短帖，失败有限次重试
type ContentGenerator struct {
	llm llm.Completer
	cfg GeneratorConfig
	rnd *rand.Rand
	log *zap.Logger
}

func NewContentGenerator(completer llm.Completer, cfg GeneratorConfig, rnd *rand.Rand, log *zap.Logger) *ContentGenerator {
	if cfg.HashtagOdds <= 0 {
		cfg.HashtagOdds = 5
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 80
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.8
	}
	if cfg.MaxChars <= len(ellipsis) {
		cfg.MaxChars = 280
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	return &ContentGenerator{llm: completer, cfg: cfg, rnd: rnd, log: log}
}

// BuildPrompt 用户提示词；includeHashtags 决定话题标签子句
func (g *ContentGenerator) BuildPrompt(includeHashtags bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a casual and engaging post about %s. ", g.cfg.Topic)
	fmt.Fprintf(&b, "Keep it friendly, use everyday language, and keep the post under %d characters.", g.cfg.MaxChars)
	if includeHashtags && len(g.cfg.Hashtags) > 0 {
		fmt.Fprintf(&b, " Include relevant hashtags like %s.", strings.Join(g.cfg.Hashtags, " "))
	} else {
		b.WriteString(" Do not include any hashtags.")
	}
	return b.String()
}

// Generate 返回清洗截断后的文本；重试耗尽返回 ErrGenerationFailed
func (g *ContentGenerator) Generate(ctx context.Context) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		withTags := g.rnd.Intn(g.cfg.HashtagOdds) == 0
		raw, err := g.llm.Complete(ctx, llm.Request{
			System:          g.cfg.Persona,
			User:            g.BuildPrompt(withTags),
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			Temperature:     g.cfg.Temperature,
			CandidateCount:  1,
		})
		if err != nil {
			return "", err
		}
		text := Truncate(Clean(raw), g.cfg.MaxChars)
		if text == "" {
			return "", errEmptyCompletion
		}
		return text, nil
	}

	text, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.cfg.RetryBackoff)),
		backoff.WithMaxTries(uint(g.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			g.log.Warn("generation attempt failed",
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", wait),
				zap.Error(err))
		}),
	)
	if err != nil {
		return "", fmt.Errorf("%w after %d attempts: %w", ErrGenerationFailed, attempt, err)
	}
	g.log.Info("generated post", zap.String("text", text), zap.Int("attempts", attempt))
	return text, nil
}

// Clean 去掉首尾空白与包裹的引号
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// Truncate 按字素簇计数；超长时保留 maxChars-3 个字符并追加 "..."
func Truncate(text string, maxChars int) string {
	if uniseg.GraphemeClusterCount(text) <= maxChars {
		return text
	}
	keep := maxChars - len(ellipsis)
	var b strings.Builder
	g := uniseg.NewGraphemes(text)
	for n := 0; n < keep && g.Next(); n++ {
		b.WriteString(g.Str())
	}
	return b.String() + ellipsis
}

// Appropriate 内容审核占位，目前全部通过
func Appropriate(text string) bool {
	return true
}
