package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engage-agent/config"
	"github.com/d60-Lab/engage-agent/internal/repository"
	"github.com/d60-Lab/engage-agent/pkg/database"
)

func TestRunWorkload(t *testing.T) {
	db, err := database.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	mr := miniredis.RunT(t)

	ledgers := map[string]repository.Ledger{
		"sqlite": repository.NewGormLedger(db),
		"redis":  repository.NewRedisLedger(redis.NewClient(&redis.Options{Addr: mr.Addr()}), benchPrefix),
	}
	for name, l := range ledgers {
		t.Run(name, func(t *testing.T) {
			defer l.Close()
			res := runWorkload(context.Background(), l, 5, 4, 20, 5, 48*time.Hour)

			assert.Len(t, res["purge"], 5)
			assert.LessOrEqual(t, len(res["record"]), 5*5)
			assert.NotEmpty(t, res["record"])
			assert.NotEmpty(t, res["remove"])
			assert.Len(t, res["list"], 5*4)
		})
	}
}

func TestParseRedisMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	assert.Equal(t, int64(1048576), parseRedisMemory(info))
	assert.Equal(t, "1.0 MB", formatBytes(parseRedisMemory(info)))
	assert.Zero(t, parseRedisMemory("# Memory\r\n"))
}

func TestPct(t *testing.T) {
	vs := []time.Duration{5, 1, 4, 2, 3}
	assert.Equal(t, time.Duration(3), avg(vs))
	assert.Equal(t, time.Duration(5), pct(vs, 0.99))
	assert.Equal(t, time.Duration(1), pct(vs, 0))
}
