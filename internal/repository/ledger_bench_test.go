package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func BenchmarkLedger_RecordAndCheck(b *testing.B) {
	backends := map[string]func(testing.TB) Ledger{
		"gorm":  setupGormLedger,
		"redis": setupRedisLedger,
	}
	for name, setup := range backends {
		b.Run(name, func(b *testing.B) {
			l := setup(b)
			ctx := context.Background()
			now := time.Now()
			rnd := rand.New(rand.NewSource(1))

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				id := fmt.Sprintf("did:plc:%06d", rnd.Intn(10000))
				if ok, _ := l.IsFollowed(ctx, id); ok {
					continue
				}
				_ = l.RecordFollow(ctx, id, id, now)
			}
		})
	}
}

func BenchmarkLedger_ListFollowed(b *testing.B) {
	const N = 1000
	backends := map[string]func(testing.TB) Ledger{
		"gorm":  setupGormLedger,
		"redis": setupRedisLedger,
	}
	for name, setup := range backends {
		b.Run(name, func(b *testing.B) {
			l := setup(b)
			ctx := context.Background()
			now := time.Now()
			for i := 0; i < N; i++ {
				_ = l.RecordFollow(ctx, fmt.Sprintf("did:plc:%06d", i), "", now.Add(time.Duration(i)*time.Second))
			}

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = l.ListFollowed(ctx)
			}
		})
	}
}
