package model

// DailyFollowCounter 某个日历日（参考时区）的关注次数
type DailyFollowCounter struct {
	Date  string `json:"date" gorm:"primaryKey;type:varchar(10)"` // YYYY-MM-DD
	Count int64  `json:"count" gorm:"column:follow_count;not null;default:0"`
}

func (DailyFollowCounter) TableName() string { return "daily_follow_counters" }

// DateLayout 计数器日期格式
const DateLayout = "2006-01-02"
