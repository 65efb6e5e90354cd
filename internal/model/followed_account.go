package model

import "time"

// FollowedAccount 已关注的外部账号；取关即删除，不保留历史
type FollowedAccount struct {
	AccountID  string    `json:"account_id" gorm:"primaryKey;type:varchar(128)"`
	Handle     string    `json:"handle" gorm:"type:varchar(255)"`
	FollowedAt time.Time `json:"followed_at" gorm:"index;not null"`
	Thanked    bool      `json:"thanked" gorm:"not null;default:false"`
}

func (FollowedAccount) TableName() string { return "followed_accounts" }

// EngagementState 互关状态机中的账号状态
type EngagementState string

const (
	StateUnknown         EngagementState = "unknown"
	StateFollowedPending EngagementState = "followed_pending"
	StateFollowedThanked EngagementState = "followed_thanked"
	StateUnfollowed      EngagementState = "unfollowed"
)

// State 账本中存在的记录只可能处于 pending 或 thanked
func (f *FollowedAccount) State() EngagementState {
	if f == nil {
		return StateUnknown
	}
	if f.Thanked {
		return StateFollowedThanked
	}
	return StateFollowedPending
}
