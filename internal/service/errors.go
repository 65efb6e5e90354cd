package service

import "errors"

// 可恢复错误只记日志；只有 platform.ErrAuthentication 会终止进程
var (
	ErrGenerationFailed     = errors.New("content generation failed")
	ErrInappropriate        = errors.New("content rejected by appropriateness check")
	ErrPublish              = errors.New("publish failed")
	ErrDiscovery            = errors.New("candidate discovery failed")
	ErrPerAccountEngagement = errors.New("engagement failed for account")
)
