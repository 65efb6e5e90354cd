package platform

import (
	"context"

	"go.uber.org/zap"
)

// DryRunPostID dry run 模式下 Publish 返回的占位 ID
const DryRunPostID PostID = "dry-run"

// DryRun 写操作只记日志不发送，读操作透传
type DryRun struct {
	next Platform
	log  *zap.Logger
}

func NewDryRun(next Platform, log *zap.Logger) *DryRun {
	return &DryRun{next: next, log: log}
}

func (d *DryRun) Self() Account { return d.next.Self() }

func (d *DryRun) Publish(ctx context.Context, text string) (PostID, error) {
	d.log.Info("dry run: post not published", zap.String("text", text))
	return DryRunPostID, nil
}

func (d *DryRun) SearchRecent(ctx context.Context, q Query, maxResults int) ([]Candidate, error) {
	return d.next.SearchRecent(ctx, q, maxResults)
}

func (d *DryRun) Follow(ctx context.Context, accountID string) error {
	d.log.Info("dry run: follow skipped", zap.String("account", accountID))
	return nil
}

func (d *DryRun) Unfollow(ctx context.Context, accountID string) error {
	d.log.Info("dry run: unfollow skipped", zap.String("account", accountID))
	return nil
}

func (d *DryRun) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	return d.next.GetAccount(ctx, accountID)
}
