package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test-agent\n"))
	require.NoError(t, err)

	assert.Equal(t, "test-agent", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, int64(5), cfg.Engagement.DailyFollowCap)
	assert.Equal(t, 48*time.Hour, cfg.Engagement.GracePeriod)
	assert.Equal(t, 2*time.Second, cfg.Generator.RetryBackoff)
	assert.Equal(t, 3, cfg.Generator.MaxAttempts)
	assert.Equal(t, 280, cfg.Generator.MaxChars)
	assert.Equal(t, 5, cfg.Generator.HashtagOdds)
	assert.Equal(t, []string{"anti-aging", "wellness", "healthy living"}, cfg.Engagement.Keywords)
	assert.Len(t, cfg.Engagement.ThankYouMessages, 3)
	assert.Equal(t, "08:00", cfg.Schedule.WindowStart)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AGENT_ENGAGEMENT_DAILY_FOLLOW_CAP", "9")
	t.Setenv("AGENT_SCHEDULE_INTERVAL_MIN", "30m")
	t.Setenv("AGENT_APP_DRY_RUN", "true")

	cfg, err := Load(writeConfig(t, "app:\n  name: env-agent\n"))
	require.NoError(t, err)

	assert.Equal(t, int64(9), cfg.Engagement.DailyFollowCap)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.IntervalMin)
	assert.True(t, cfg.App.DryRun)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"interval order", "schedule:\n  interval_min: 3h\n  interval_max: 1h\n"},
		{"window order", "schedule:\n  window_start: \"22:00\"\n  window_end: \"08:00\"\n"},
		{"bad clock", "schedule:\n  window_start: \"8am\"\n"},
		{"bad timezone", "schedule:\n  timezone: Mars/Olympus\n"},
		{"bad driver", "database:\n  driver: mysql\n"},
		{"probability", "engagement:\n  follow_probability: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: creds\n"))
	require.NoError(t, err)
	assert.Error(t, cfg.RequireCredentials())

	cfg.Generator.APIKey = "key"
	cfg.Platform.Identifier = "agent.bsky.social"
	cfg.Platform.Password = "app-password"
	assert.NoError(t, cfg.RequireCredentials())
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("08:30")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 8, Minute: 30}, c)
	assert.Equal(t, "08:30", c.String())
	assert.True(t, c.Before(Clock{Hour: 22}))

	_, err = ParseClock("25:00")
	assert.Error(t, err)
}
