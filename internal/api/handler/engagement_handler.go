package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engage-agent/pkg/response"
)

// Healthz 存活检查
// @Summary 健康检查
// @Tags 状态
// @Success 200 {object} response.Response
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// ListFollowed 账本中的已关注账号，按关注时间升序
// @Summary 已关注账号列表
// @Tags 互动
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(20)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/engagement/followed [get]
func (h *Handler) ListFollowed(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		response.BadRequest(c, "invalid page")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 200 {
		response.BadRequest(c, "invalid page_size")
		return
	}

	all, err := h.ledger.ListFollowed(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "total": len(all), "list": all[start:end]})
}

// Stats 今日关注计数与剩余配额
// @Summary 今日互动统计
// @Tags 互动
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 500 {object} response.Response
// @Router /api/v1/engagement/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	now := h.now()
	today := h.window.Today(now)

	done, err := h.ledger.GetFollowedToday(ctx, today)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	followed, err := h.ledger.ListFollowed(ctx)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	thanked := 0
	for _, f := range followed {
		if f.Thanked {
			thanked++
		}
	}
	remaining := h.dailyCap - done
	if remaining < 0 {
		remaining = 0
	}
	response.Success(c, gin.H{
		"date":           today,
		"followed_today": done,
		"daily_cap":      h.dailyCap,
		"remaining":      remaining,
		"tracked":        len(followed),
		"thanked":        thanked,
		"in_window":      h.window.Contains(now),
	})
}
