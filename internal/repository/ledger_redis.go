package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/engage-agent/internal/model"
)

// redisLedger Redis 版账本
//
//	<prefix>:followed          SET  所有已关注账号
//	<prefix>:followed:<id>     HASH handle / followed_at / thanked
//	<prefix>:daily             SET  已存在计数的日期
//	<prefix>:daily:<date>      STRING 计数
type redisLedger struct {
	rdb    *redis.Client
	prefix string
}

// recordFollowScript 仅在 hash 不存在时写入，并加入集合
var recordFollowScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "handle", ARGV[2], "followed_at", ARGV[3], "thanked", "0")
redis.call("SADD", KEYS[2], ARGV[1])
return 1
`)

// markThankedScript 记录不存在时为 no-op
var markThankedScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "thanked", "1")
return 1
`)

func NewRedisLedger(rdb *redis.Client, prefix string) Ledger {
	if prefix == "" {
		prefix = "agent"
	}
	return &redisLedger{rdb: rdb, prefix: prefix}
}

func (r *redisLedger) followedSetKey() string { return r.prefix + ":followed" }
func (r *redisLedger) followedKey(id string) string { return r.prefix + ":followed:" + id }
func (r *redisLedger) dailySetKey() string { return r.prefix + ":daily" }
func (r *redisLedger) dailyKey(date string) string { return r.prefix + ":daily:" + date }

func (r *redisLedger) GetFollowedToday(ctx context.Context, today string) (int64, error) {
	n, err := r.rdb.Get(ctx, r.dailyKey(today)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r *redisLedger) IncrementFollowedToday(ctx context.Context, today string, n int64) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.dailySetKey(), today)
		pipe.IncrBy(ctx, r.dailyKey(today), n)
		return nil
	})
	return err
}

func (r *redisLedger) PurgeStaleCounters(ctx context.Context, today string) (int64, error) {
	dates, err := r.rdb.SMembers(ctx, r.dailySetKey()).Result()
	if err != nil {
		return 0, err
	}
	var stale []string
	for _, d := range dates {
		// YYYY-MM-DD 字典序即时间序
		if d < today {
			stale = append(stale, d)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	keys := make([]string, len(stale))
	members := make([]interface{}, len(stale))
	for i, d := range stale {
		keys[i] = r.dailyKey(d)
		members[i] = d
	}
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, r.dailySetKey(), members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(stale)), nil
}

func (r *redisLedger) IsFollowed(ctx context.Context, accountID string) (bool, error) {
	return r.rdb.SIsMember(ctx, r.followedSetKey(), accountID).Result()
}

func (r *redisLedger) RecordFollow(ctx context.Context, accountID, handle string, followedAt time.Time) error {
	keys := []string{r.followedKey(accountID), r.followedSetKey()}
	ts := followedAt.UTC().Format(time.RFC3339Nano)
	return recordFollowScript.Run(ctx, r.rdb, keys, accountID, handle, ts).Err()
}

func (r *redisLedger) MarkThanked(ctx context.Context, accountID string) error {
	return markThankedScript.Run(ctx, r.rdb, []string{r.followedKey(accountID)}).Err()
}

func (r *redisLedger) ListFollowed(ctx context.Context) ([]*model.FollowedAccount, error) {
	ids, err := r.rdb.SMembers(ctx, r.followedSetKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.FollowedAccount{}, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.followedKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	res := make([]*model.FollowedAccount, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		f, err := decodeFollowed(ids[i], fields)
		if err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].FollowedAt.Equal(res[j].FollowedAt) {
			return res[i].FollowedAt.Before(res[j].FollowedAt)
		}
		return res[i].AccountID < res[j].AccountID
	})
	return res, nil
}

func decodeFollowed(id string, fields map[string]string) (*model.FollowedAccount, error) {
	at, err := time.Parse(time.RFC3339Nano, fields["followed_at"])
	if err != nil {
		return nil, fmt.Errorf("decode followed_at for %s: %w", id, err)
	}
	thanked, _ := strconv.ParseBool(fields["thanked"])
	return &model.FollowedAccount{
		AccountID:  id,
		Handle:     fields["handle"],
		FollowedAt: at.UTC(),
		Thanked:    thanked,
	}, nil
}

func (r *redisLedger) RemoveFollowed(ctx context.Context, accountID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.followedKey(accountID))
		pipe.SRem(ctx, r.followedSetKey(), accountID)
		return nil
	})
	return err
}

func (r *redisLedger) Close() error { return r.rdb.Close() }
