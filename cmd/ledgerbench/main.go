package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/engage-agent/config"
	"github.com/d60-Lab/engage-agent/internal/model"
	"github.com/d60-Lab/engage-agent/internal/repository"
	"github.com/d60-Lab/engage-agent/pkg/database"
)

const benchPrefix = "ledgerbench"

type opTimings map[string][]time.Duration

func (o opTimings) time(op string, fn func() error) {
	start := time.Now()
	mustDo(fn())
	o[op] = append(o[op], time.Since(start))
}

// 模拟 DAYS 天的互动：每天检索 SEARCH 个候选、关注至多 CAP 个，
// 每个周期扫描一次账本，约三分之一回关，其余过宽限期后取关
func main() {
	ctx := context.Background()

	cfg := must(config.Load(os.Getenv("CONFIG")))
	days := envInt("DAYS", 30)
	cycles := envInt("CYCLES", 8)
	search := envInt("SEARCH", 50)
	dailyCap := int64(envInt("CAP", int(cfg.Engagement.DailyFollowCap)))

	backends := map[string]repository.Ledger{}

	dbCfg := cfg.Database
	if dbCfg.Driver == "redis" {
		dbCfg = config.DatabaseConfig{Driver: "sqlite", DSN: "data/ledgerbench.db"}
	}
	db := must(database.InitDB(dbCfg))
	mustDo(db.Exec("DELETE FROM followed_accounts").Error)
	mustDo(db.Exec("DELETE FROM daily_follow_counters").Error)
	backends[dbCfg.Driver] = repository.NewGormLedger(db)

	var client *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" || cfg.Database.Driver == "redis" {
		rcfg := cfg.Redis
		if addr != "" {
			rcfg.Addr = addr
		}
		client = must(database.InitRedis(ctx, rcfg))
		mustDo(clearPrefix(ctx, client, benchPrefix))
		backends["redis"] = repository.NewRedisLedger(client, benchPrefix)
	}

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("DAYS=%d CYCLES=%d SEARCH=%d CAP=%d\n", days, cycles, search, dailyCap)
	for _, name := range names {
		l := backends[name]
		fmt.Printf("\n[%s] running workload...", name)
		res := runWorkload(ctx, l, days, cycles, search, dailyCap, cfg.Engagement.GracePeriod)
		fmt.Println(" done")
		for _, op := range []string{"get_today", "is_followed", "record", "increment", "list", "mark_thanked", "remove", "purge"} {
			vs := res[op]
			fmt.Printf("  %-13s n=%-6d avg=%v p95=%v p99=%v\n", op, len(vs), avg(vs), pct(vs, 0.95), pct(vs, 0.99))
		}
		if name == "redis" {
			info, err := client.Info(ctx, "memory").Result()
			if err == nil {
				fmt.Printf("  redis used_memory=%s\n", formatBytes(parseRedisMemory(info)))
			}
		}
		mustDo(l.Close())
	}
}

func runWorkload(ctx context.Context, l repository.Ledger, days, cycles, search int, dailyCap int64, grace time.Duration) opTimings {
	res := opTimings{}
	rnd := rand.New(rand.NewSource(42))
	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	followsBack := map[string]bool{}
	population := days * search

	for d := 0; d < days; d++ {
		day := start.AddDate(0, 0, d)
		today := day.Format(model.DateLayout)
		res.time("purge", func() error { _, err := l.PurgeStaleCounters(ctx, today); return err })

		for c := 0; c < cycles; c++ {
			now := day.Add(time.Duration(c) * 100 * time.Minute)

			var done int64
			res.time("get_today", func() error {
				var err error
				done, err = l.GetFollowedToday(ctx, today)
				return err
			})
			var followed int64
			for i := 0; i < search && done+followed < dailyCap; i++ {
				id := fmt.Sprintf("did:plc:%06d", rnd.Intn(population))
				var known bool
				res.time("is_followed", func() error {
					var err error
					known, err = l.IsFollowed(ctx, id)
					return err
				})
				if known {
					continue
				}
				res.time("record", func() error { return l.RecordFollow(ctx, id, id+".test", now) })
				followsBack[id] = rnd.Intn(3) == 0
				followed++
			}
			if followed > 0 {
				res.time("increment", func() error { return l.IncrementFollowedToday(ctx, today, followed) })
			}

			var list []string
			res.time("list", func() error {
				all, err := l.ListFollowed(ctx)
				for _, f := range all {
					switch {
					case followsBack[f.AccountID] && !f.Thanked:
						list = append(list, "t:"+f.AccountID)
					case !followsBack[f.AccountID] && now.Sub(f.FollowedAt) > grace:
						list = append(list, "u:"+f.AccountID)
					}
				}
				return err
			})
			for _, item := range list {
				id := item[2:]
				if item[0] == 't' {
					res.time("mark_thanked", func() error { return l.MarkThanked(ctx, id) })
				} else {
					res.time("remove", func() error { return l.RemoveFollowed(ctx, id) })
				}
			}
		}
	}
	return res
}

func clearPrefix(ctx context.Context, client *redis.Client, prefix string) error {
	iter := client.Scan(ctx, 0, prefix+":*", 500).Iterator()
	for iter.Next(ctx) {
		if err := client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

// parseRedisMemory 从 INFO memory 中取 used_memory
func parseRedisMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:"); ok {
			n, _ := strconv.ParseInt(v, 10, 64)
			return n
		}
	}
	return 0
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
