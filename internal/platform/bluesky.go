package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	collectionPost   = "app.bsky.feed.post"
	collectionFollow = "app.bsky.graph.follow"

	// access token 无法解析 exp 时的保守有效期
	fallbackSessionTTL = 90 * time.Minute
	// 距离过期不足该值即刷新
	refreshMargin = 5 * time.Minute
)

// BlueskyOptions 登录参数；Password 建议使用 app password
type BlueskyOptions struct {
	Host       string
	Identifier string
	Password   string
	Timeout    time.Duration
	Language   string
}

// Bluesky 基于 atproto XRPC 的平台实现
type Bluesky struct {
	client    *xrpc.Client
	self      Account
	lang      string
	expiresAt time.Time
	log       *zap.Logger
}

// NewBluesky 建立会话；失败返回 ErrAuthentication
func NewBluesky(ctx context.Context, opts BlueskyOptions, log *zap.Logger) (*Bluesky, error) {
	if opts.Host == "" {
		opts.Host = "https://bsky.social"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	client := &xrpc.Client{
		Client: &http.Client{Timeout: opts.Timeout},
		Host:   opts.Host,
	}

	ses, err := comatproto.ServerCreateSession(ctx, client, &comatproto.ServerCreateSession_Input{
		Identifier: opts.Identifier,
		Password:   opts.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create session for %s: %v", ErrAuthentication, opts.Identifier, err)
	}
	client.Auth = &xrpc.AuthInfo{
		Handle:     ses.Handle,
		Did:        ses.Did,
		RefreshJwt: ses.RefreshJwt,
		AccessJwt:  ses.AccessJwt,
	}
	log.Info("platform session created", zap.String("handle", ses.Handle), zap.String("did", ses.Did))

	return &Bluesky{
		client:    client,
		self:      Account{ID: ses.Did, Handle: ses.Handle},
		lang:      opts.Language,
		expiresAt: sessionExpiry(ses.AccessJwt, time.Now()),
		log:       log,
	}, nil
}

// tokenExpiry 读取 JWT 的 exp，不校验签名（签名由 PDS 校验）
func tokenExpiry(token string) (time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

func sessionExpiry(accessJwt string, now time.Time) time.Time {
	exp, err := tokenExpiry(accessJwt)
	if err != nil {
		return now.Add(fallbackSessionTTL)
	}
	return exp
}

func (b *Bluesky) Self() Account { return b.self }

// refresh 单线程调用，无需加锁
func (b *Bluesky) refresh(ctx context.Context) error {
	if time.Until(b.expiresAt) > refreshMargin {
		return nil
	}
	b.client.Auth.AccessJwt = b.client.Auth.RefreshJwt
	out, err := comatproto.ServerRefreshSession(ctx, b.client)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	b.client.Auth = &xrpc.AuthInfo{
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
		Did:        out.Did,
		Handle:     out.Handle,
	}
	b.expiresAt = sessionExpiry(out.AccessJwt, time.Now())
	b.log.Debug("platform session refreshed", zap.Time("expires_at", b.expiresAt))
	return nil
}

func (b *Bluesky) Publish(ctx context.Context, text string) (PostID, error) {
	if err := b.refresh(ctx); err != nil {
		return "", err
	}
	post := &appbsky.FeedPost{
		Text:      text,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if b.lang != "" {
		post.Langs = []string{b.lang}
	}
	resp, err := comatproto.RepoCreateRecord(ctx, b.client, &comatproto.RepoCreateRecord_Input{
		Collection: collectionPost,
		Repo:       b.self.ID,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return PostID(resp.Uri), nil
}

// SearchRecent 每个关键词单独检索（searchPosts 不支持 OR），按关键词顺序合并
func (b *Bluesky) SearchRecent(ctx context.Context, q Query, maxResults int) ([]Candidate, error) {
	if err := b.refresh(ctx); err != nil {
		return nil, err
	}
	res := make([]Candidate, 0, maxResults)
	seen := make(map[string]struct{})
	for _, kw := range q.Keywords {
		if len(res) >= maxResults {
			break
		}
		out, err := appbsky.FeedSearchPosts(ctx, b.client, "", "", "", q.Language,
			int64(maxResults), "", kw, "", "latest", nil, "", "")
		if err != nil {
			return nil, fmt.Errorf("search posts %q: %w", kw, err)
		}
		for _, p := range out.Posts {
			if p == nil || p.Author == nil {
				continue
			}
			if _, dup := seen[p.Uri]; dup {
				continue
			}
			seen[p.Uri] = struct{}{}
			res = append(res, Candidate{PostID: p.Uri, AuthorID: p.Author.Did, AuthorHandle: p.Author.Handle})
			if len(res) >= maxResults {
				break
			}
		}
	}
	return res, nil
}

func (b *Bluesky) Follow(ctx context.Context, accountID string) error {
	if err := b.refresh(ctx); err != nil {
		return err
	}
	follow := &appbsky.GraphFollow{
		LexiconTypeID: collectionFollow,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Subject:       accountID,
	}
	_, err := comatproto.RepoCreateRecord(ctx, b.client, &comatproto.RepoCreateRecord_Input{
		Collection: collectionFollow,
		Repo:       b.self.ID,
		Record:     &lexutil.LexiconTypeDecoder{Val: follow},
	})
	if err != nil {
		return fmt.Errorf("follow %s: %w", accountID, err)
	}
	return nil
}

// Unfollow 通过 viewer.following 找到关注记录的 rkey 后删除
func (b *Bluesky) Unfollow(ctx context.Context, accountID string) error {
	if err := b.refresh(ctx); err != nil {
		return err
	}
	profile, err := appbsky.ActorGetProfile(ctx, b.client, accountID)
	if err != nil {
		return fmt.Errorf("get profile %s: %w", accountID, err)
	}
	if profile.Viewer == nil || profile.Viewer.Following == nil {
		// 平台侧已不存在关注关系
		return nil
	}
	uri, err := syntax.ParseATURI(*profile.Viewer.Following)
	if err != nil {
		return fmt.Errorf("parse follow uri: %w", err)
	}
	_, err = comatproto.RepoDeleteRecord(ctx, b.client, &comatproto.RepoDeleteRecord_Input{
		Collection: collectionFollow,
		Repo:       b.self.ID,
		Rkey:       uri.RecordKey().String(),
	})
	if err != nil {
		return fmt.Errorf("unfollow %s: %w", accountID, err)
	}
	return nil
}

func (b *Bluesky) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	if err := b.refresh(ctx); err != nil {
		return nil, err
	}
	profile, err := appbsky.ActorGetProfile(ctx, b.client, accountID)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", accountID, err)
	}
	if profile == nil {
		return nil, ErrNotFound
	}
	return &Account{
		ID:            profile.Did,
		Handle:        profile.Handle,
		FollowsCaller: profile.Viewer != nil && profile.Viewer.FollowedBy != nil,
	}, nil
}
