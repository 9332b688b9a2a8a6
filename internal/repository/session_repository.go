package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cockpit_go/internal/model"

	"github.com/go-redis/redis/v8"
)

var (
	// ErrSessionNotFound 表示会话不存在或已过期。
	ErrSessionNotFound = errors.New("filter session not found")
)

// sessionKeyPrefix 是过滤器会话在 Redis 中的 key 前缀。
// 与 token 黑名单（token_blacklist:）共用同一个 Redis 实例，靠前缀隔离。
const sessionKeyPrefix = "filter_session:"

// SessionRepository 定义过滤器构建会话的存取接口。
// 会话是临时状态，所有写入都会重置 TTL。
type SessionRepository interface {
	Save(ctx context.Context, session *model.FilterSession) error
	Find(ctx context.Context, id string) (*model.FilterSession, error)
	Delete(ctx context.Context, id string) error
}

// redisSessionRepository 把会话以 JSON 存进 Redis。
type redisSessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionRepository(rdb *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{rdb: rdb, ttl: ttl}
}

func (r *redisSessionRepository) Save(ctx context.Context, session *model.FilterSession) error {
	if session == nil {
		return fmt.Errorf("session is nil")
	}
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return r.rdb.Set(ctx, sessionKeyPrefix+session.ID, payload, r.ttl).Err()
}

func (r *redisSessionRepository) Find(ctx context.Context, id string) (*model.FilterSession, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	payload, err := r.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	var session model.FilterSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	return r.rdb.Del(ctx, sessionKeyPrefix+id).Err()
}
