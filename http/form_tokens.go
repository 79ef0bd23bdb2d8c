package http

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultFormTokenCapacity = 4096

// FormTokens 表单令牌：每次渲染表单时签发，提交时查询
//
// Tokens are not consumed on use, the same form may be submitted repeatedly.
// The oldest tokens are evicted once capacity is reached. An unknown token
// never blocks a prediction; the page is simply re-rendered with a new one.
type FormTokens struct {
	cache *lru.Cache[string, struct{}]
}

// NewFormTokens 创建表单令牌池
func NewFormTokens(capacity int) (*FormTokens, error) {
	if capacity <= 0 {
		capacity = defaultFormTokenCapacity
	}
	cache, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, fmt.Errorf("create form token cache: %w", err)
	}
	return &FormTokens{cache: cache}, nil
}

// Issue 签发新令牌
func (ft *FormTokens) Issue() string {
	token := uuid.NewString()
	ft.cache.Add(token, struct{}{})
	return token
}

// Valid 校验令牌
func (ft *FormTokens) Valid(token string) bool {
	if token == "" {
		return false
	}
	_, ok := ft.cache.Get(token)
	return ok
}
