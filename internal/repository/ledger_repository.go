package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/engage-agent/internal/model"
)

// Ledger 关注记录与每日关注计数；每个方法自成一个原子操作
type Ledger interface {
	GetFollowedToday(ctx context.Context, today string) (int64, error)
	// IncrementFollowedToday 行不存在时先建 0 行再累加；重复调用会重复累加
	IncrementFollowedToday(ctx context.Context, today string, n int64) error
	// PurgeStaleCounters 删除 date < today 的计数行，返回删除行数
	PurgeStaleCounters(ctx context.Context, today string) (int64, error)

	IsFollowed(ctx context.Context, accountID string) (bool, error)
	// RecordFollow 幂等：已存在时不覆盖 followed_at / thanked
	RecordFollow(ctx context.Context, accountID, handle string, followedAt time.Time) error
	MarkThanked(ctx context.Context, accountID string) error
	ListFollowed(ctx context.Context) ([]*model.FollowedAccount, error)
	RemoveFollowed(ctx context.Context, accountID string) error

	Close() error
}

type gormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) Ledger { return &gormLedger{db: db} }

func (r *gormLedger) GetFollowedToday(ctx context.Context, today string) (int64, error) {
	var rows []model.DailyFollowCounter
	if err := r.db.WithContext(ctx).Where("date = ?", today).Limit(1).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

func (r *gormLedger) IncrementFollowedToday(ctx context.Context, today string, n int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &model.DailyFollowCounter{Date: today, Count: 0}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
			return err
		}
		return tx.Model(&model.DailyFollowCounter{}).
			Where("date = ?", today).
			UpdateColumn("follow_count", gorm.Expr("follow_count + ?", n)).Error
	})
}

func (r *gormLedger) PurgeStaleCounters(ctx context.Context, today string) (int64, error) {
	res := r.db.WithContext(ctx).Where("date < ?", today).Delete(&model.DailyFollowCounter{})
	return res.RowsAffected, res.Error
}

func (r *gormLedger) IsFollowed(ctx context.Context, accountID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.FollowedAccount{}).
		Where("account_id = ?", accountID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *gormLedger) RecordFollow(ctx context.Context, accountID, handle string, followedAt time.Time) error {
	f := &model.FollowedAccount{AccountID: accountID, Handle: handle, FollowedAt: followedAt.UTC(), Thanked: false}
	// 幂等：重复关注不报错，也不覆盖
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error
}

func (r *gormLedger) MarkThanked(ctx context.Context, accountID string) error {
	return r.db.WithContext(ctx).
		Model(&model.FollowedAccount{}).
		Where("account_id = ?", accountID).
		Update("thanked", true).Error
}

func (r *gormLedger) ListFollowed(ctx context.Context) ([]*model.FollowedAccount, error) {
	var res []*model.FollowedAccount
	err := r.db.WithContext(ctx).Order("followed_at, account_id").Find(&res).Error
	return res, err
}

func (r *gormLedger) RemoveFollowed(ctx context.Context, accountID string) error {
	return r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&model.FollowedAccount{}).Error
}

func (r *gormLedger) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
