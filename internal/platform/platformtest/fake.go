// Package platformtest 内存版平台，供测试使用
package platformtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/d60-Lab/engage-agent/internal/platform"
)

var ErrInjected = errors.New("injected platform error")

// Fake 记录所有调用；按需注入错误
type Fake struct {
	SelfAccount platform.Account

	Candidates []platform.Candidate
	Accounts   map[string]*platform.Account

	PublishErr    error
	SearchErr     error
	FollowErr     map[string]error
	UnfollowErr   map[string]error
	GetAccountErr map[string]error

	Published   []string
	Followed    []string
	Unfollowed  []string
	Searches    int
	AccountGets []string
}

func NewFake() *Fake {
	return &Fake{
		SelfAccount:   platform.Account{ID: "did:plc:self", Handle: "agent.test"},
		Accounts:      map[string]*platform.Account{},
		FollowErr:     map[string]error{},
		UnfollowErr:   map[string]error{},
		GetAccountErr: map[string]error{},
	}
}

// SetFollowsBack 设置某账号是否回关
func (f *Fake) SetFollowsBack(id, handle string, follows bool) {
	f.Accounts[id] = &platform.Account{ID: id, Handle: handle, FollowsCaller: follows}
}

func (f *Fake) Self() platform.Account { return f.SelfAccount }

func (f *Fake) Publish(_ context.Context, text string) (platform.PostID, error) {
	if f.PublishErr != nil {
		return "", f.PublishErr
	}
	f.Published = append(f.Published, text)
	return platform.PostID(fmt.Sprintf("at://%s/app.bsky.feed.post/%d", f.SelfAccount.ID, len(f.Published))), nil
}

func (f *Fake) SearchRecent(_ context.Context, _ platform.Query, maxResults int) ([]platform.Candidate, error) {
	f.Searches++
	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	if maxResults < len(f.Candidates) {
		return f.Candidates[:maxResults], nil
	}
	return f.Candidates, nil
}

func (f *Fake) Follow(_ context.Context, id string) error {
	if err := f.FollowErr[id]; err != nil {
		return err
	}
	f.Followed = append(f.Followed, id)
	return nil
}

func (f *Fake) Unfollow(_ context.Context, id string) error {
	if err := f.UnfollowErr[id]; err != nil {
		return err
	}
	f.Unfollowed = append(f.Unfollowed, id)
	return nil
}

func (f *Fake) GetAccount(_ context.Context, id string) (*platform.Account, error) {
	f.AccountGets = append(f.AccountGets, id)
	if err := f.GetAccountErr[id]; err != nil {
		return nil, err
	}
	if a, ok := f.Accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	return &platform.Account{ID: id}, nil
}

// Calls 平台调用总次数
func (f *Fake) Calls() int {
	return len(f.Published) + len(f.Followed) + len(f.Unfollowed) + f.Searches + len(f.AccountGets)
}
