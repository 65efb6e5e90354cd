package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Generator  GeneratorConfig  `mapstructure:"generator"`
	Platform   PlatformConfig   `mapstructure:"platform"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Engagement EngagementConfig `mapstructure:"engagement"`
	Server     ServerConfig     `mapstructure:"server"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

type AppConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	DryRun bool   `mapstructure:"dry_run"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
	File   string `mapstructure:"file"`
}

// DatabaseConfig 账本存储；driver=redis 时使用 Redis 配置
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres redis"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// GeneratorConfig 内容生成
type GeneratorConfig struct {
	APIKey          string        `mapstructure:"api_key" validate:"required"`
	Model           string        `mapstructure:"model" validate:"required"`
	Persona         string        `mapstructure:"persona" validate:"required"`
	Topic           string        `mapstructure:"topic" validate:"required"`
	Hashtags        []string      `mapstructure:"hashtags"`
	HashtagOdds     int           `mapstructure:"hashtag_odds" validate:"gte=1"`
	MaxOutputTokens int32         `mapstructure:"max_output_tokens" validate:"gt=0"`
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxChars        int           `mapstructure:"max_chars" validate:"gt=3"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=1"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
}

// PlatformConfig 社交平台账号
type PlatformConfig struct {
	Host              string        `mapstructure:"host" validate:"required,url"`
	Identifier        string        `mapstructure:"identifier" validate:"required"`
	Password          string        `mapstructure:"password" validate:"required"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// ScheduleConfig 发帖窗口与间隔
type ScheduleConfig struct {
	IntervalMin time.Duration `mapstructure:"interval_min" validate:"gt=0"`
	IntervalMax time.Duration `mapstructure:"interval_max" validate:"gt=0"`
	WindowStart string        `mapstructure:"window_start" validate:"required"`
	WindowEnd   string        `mapstructure:"window_end" validate:"required"`
	Timezone    string        `mapstructure:"timezone" validate:"required"`
}

// EngagementConfig 关注/回关/取关
type EngagementConfig struct {
	DailyFollowCap    int64         `mapstructure:"daily_follow_cap" validate:"gte=0"`
	GracePeriod       time.Duration `mapstructure:"grace_period" validate:"gt=0"`
	Keywords          []string      `mapstructure:"keywords" validate:"min=1,dive,required"`
	Language          string        `mapstructure:"language"`
	SearchLimit       int           `mapstructure:"search_limit" validate:"gt=0,lte=100"`
	FollowProbability float64       `mapstructure:"follow_probability" validate:"gte=0,lte=1"`
	ThankYouMessages  []string      `mapstructure:"thank_you_messages" validate:"min=1,dive,required"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Mode    string `mapstructure:"mode" validate:"oneof=debug release test"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn"`
	Environment string `mapstructure:"environment"`
}

// credentialFields 只有 run/once 需要的字段，查询类命令不校验
var credentialFields = []string{
	"Generator.APIKey",
	"Platform.Identifier",
	"Platform.Password",
}

var validate = validator.New()

// Load 读取配置：.env -> config.yaml -> AGENT_ 环境变量
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "engage-agent")
	v.SetDefault("app.dry_run", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/agent.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "agent")

	v.SetDefault("generator.api_key", "")
	v.SetDefault("generator.model", "gemini-2.0-flash")
	v.SetDefault("generator.persona", "You are a wellness enthusiast from the US East Coast who shares casual, engaging anti-aging tips on social media.")
	v.SetDefault("generator.topic", "anti-aging and healthy living")
	v.SetDefault("generator.hashtags", []string{"#AntiAging", "#Wellness"})
	v.SetDefault("generator.hashtag_odds", 5)
	v.SetDefault("generator.max_output_tokens", 80)
	v.SetDefault("generator.temperature", 0.8)
	v.SetDefault("generator.max_chars", 280)
	v.SetDefault("generator.max_attempts", 3)
	v.SetDefault("generator.retry_backoff", "2s")

	v.SetDefault("platform.host", "https://bsky.social")
	v.SetDefault("platform.identifier", "")
	v.SetDefault("platform.password", "")
	v.SetDefault("platform.requests_per_second", 1.0)
	v.SetDefault("platform.timeout", "30s")

	v.SetDefault("schedule.interval_min", "1h")
	v.SetDefault("schedule.interval_max", "3h")
	v.SetDefault("schedule.window_start", "08:00")
	v.SetDefault("schedule.window_end", "22:00")
	v.SetDefault("schedule.timezone", "America/New_York")

	v.SetDefault("engagement.daily_follow_cap", 5)
	v.SetDefault("engagement.grace_period", "48h")
	v.SetDefault("engagement.keywords", []string{"anti-aging", "wellness", "healthy living"})
	v.SetDefault("engagement.language", "en")
	v.SetDefault("engagement.search_limit", 50)
	v.SetDefault("engagement.follow_probability", 0.5)
	v.SetDefault("engagement.thank_you_messages", []string{
		"Thanks for the follow! 😊 Stay tuned for more anti-aging tips!",
		"Appreciate the follow! Let's embark on this wellness journey together! 🌟",
		"Glad to connect with you! Here's to healthy living! 🥑",
	})

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "http://localhost:4318")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}

// Validate 校验结构与字段间约束（不含凭证）
func (c *Config) Validate() error {
	if err := validate.StructExcept(c, credentialFields...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Schedule.IntervalMin > c.Schedule.IntervalMax {
		return fmt.Errorf("invalid config: schedule.interval_min %s > interval_max %s",
			c.Schedule.IntervalMin, c.Schedule.IntervalMax)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	start, err := ParseClock(c.Schedule.WindowStart)
	if err != nil {
		return fmt.Errorf("invalid config: schedule.window_start: %w", err)
	}
	end, err := ParseClock(c.Schedule.WindowEnd)
	if err != nil {
		return fmt.Errorf("invalid config: schedule.window_end: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("invalid config: window start %s must be before end %s", start, end)
	}
	return nil
}

// RequireCredentials 校验运行主循环所需的凭证
func (c *Config) RequireCredentials() error {
	if err := validate.StructPartial(c, credentialFields...); err != nil {
		return fmt.Errorf("missing credentials: %w", err)
	}
	return nil
}

// Location 参考时区
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// Clock 一天中的时刻（时:分）
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock 解析 "HH:MM"
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Clock{}, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) Before(o Clock) bool {
	return c.Hour*60+c.Minute < o.Hour*60+o.Minute
}

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }
