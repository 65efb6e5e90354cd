package handler

import (
	"time"

	"github.com/d60-Lab/engage-agent/internal/repository"
	"github.com/d60-Lab/engage-agent/internal/service"
)

// Handler 只读状态接口
type Handler struct {
	ledger   repository.Ledger
	window   service.PostingWindow
	dailyCap int64
	now      func() time.Time
}

func NewHandler(ledger repository.Ledger, window service.PostingWindow, dailyCap int64) *Handler {
	return &Handler{ledger: ledger, window: window, dailyCap: dailyCap, now: time.Now}
}
