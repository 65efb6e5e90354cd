// Package llm 语言生成能力
package llm

import (
	"context"
	"errors"
)

// ErrGeneration 生成服务返回错误或空结果
var ErrGeneration = errors.New("generation provider error")

// Request 一次补全请求
type Request struct {
	System          string
	User            string
	MaxOutputTokens int32
	Temperature     float32
	CandidateCount  int32
}

// Completer 返回单个候选文本
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
