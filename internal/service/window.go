package service

import (
	"time"

	"github.com/d60-Lab/engage-agent/config"
	"github.com/d60-Lab/engage-agent/internal/model"
)

// PostingWindow 每日允许发帖与互动的时间段，两端均包含
type PostingWindow struct {
	Start    config.Clock
	End      config.Clock
	Location *time.Location
}

func (w PostingWindow) at(day time.Time, c config.Clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, w.loc())
}

func (w PostingWindow) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Contains now 换算到参考时区后是否落在 [Start, End]
func (w PostingWindow) Contains(now time.Time) bool {
	local := now.In(w.loc())
	start := w.at(local, w.Start)
	end := w.at(local, w.End)
	return !local.Before(start) && !local.After(end)
}

// UntilNextStart 距离严格晚于 now 的下一个窗口起点：
// 早于今天起点则为今天，否则为明天
func (w PostingWindow) UntilNextStart(now time.Time) time.Duration {
	local := now.In(w.loc())
	next := w.at(local, w.Start)
	if !local.Before(next) {
		next = w.at(local.AddDate(0, 0, 1), w.Start)
	}
	return next.Sub(local)
}

// Today 参考时区下的日历日，用作每日计数的 key
func (w PostingWindow) Today(now time.Time) string {
	return now.In(w.loc()).Format(model.DateLayout)
}
