// Package platform 外部社交平台能力：发帖、检索、关注、取关、查询账号
package platform

import (
	"context"
	"errors"
)

var (
	// ErrAuthentication 启动时建立会话失败，进程不应进入主循环
	ErrAuthentication = errors.New("platform authentication failed")
	ErrNotFound       = errors.New("account not found")
)

// PostID 平台返回的帖子标识
type PostID string

// Account 平台账号视图
type Account struct {
	ID            string
	Handle        string
	FollowsCaller bool
}

// Candidate 检索到的帖子及其作者，按平台返回顺序处理
type Candidate struct {
	PostID       string
	AuthorID     string
	AuthorHandle string
}

// Query 检索条件：关键词 OR 集合，限定语言，排除转发
type Query struct {
	Keywords        []string
	Language        string
	ExcludeReshares bool
}

// Publisher 发帖
type Publisher interface {
	Publish(ctx context.Context, text string) (PostID, error)
}

// Platform 引擎与调度器依赖的全部平台能力
type Platform interface {
	Publisher
	Self() Account
	SearchRecent(ctx context.Context, q Query, maxResults int) ([]Candidate, error)
	Follow(ctx context.Context, accountID string) error
	Unfollow(ctx context.Context, accountID string) error
	GetAccount(ctx context.Context, accountID string) (*Account, error)
}
