// Package cache はRedisを使用した読み取りキャッシュを提供する。
//
// プロフィール読み取りは固定TTLでキャッシュされ、プロフィール更新時に
// 上書きされる。フォロー変更など他の更新ではキャッシュを能動的に
// 無効化しないため、相手側のフォロワー数はTTL満了まで古い値を返しうる。
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/thriftswipe/internal/model"
)

// ProfileCache はプロフィールキャッシュのインターフェース。
type ProfileCache interface {
	// Get はキャッシュされたプロフィールを返す。ミスの場合はnilを返す。
	Get(ctx context.Context, username string) (*model.Profile, error)
	// Set はプロフィールを固定TTLでキャッシュする。既存エントリは上書きされる。
	Set(ctx context.Context, profile *model.Profile) error
	// Delete はキャッシュエントリを削除する。ユーザー削除時に使用する。
	Delete(ctx context.Context, username string) error
}

// RedisProfileCache はgo-redisクライアントによるProfileCache実装。
type RedisProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProfileCache はRedisProfileCacheを生成する。
func NewRedisProfileCache(client *redis.Client, ttl time.Duration) *RedisProfileCache {
	return &RedisProfileCache{client: client, ttl: ttl}
}

// profileKey はキャッシュキーを組み立てる。
func profileKey(username string) string {
	return "profile:" + username
}

// Get はキャッシュされたプロフィールを返す。ミスの場合は (nil, nil) を返す。
func (c *RedisProfileCache) Get(ctx context.Context, username string) (*model.Profile, error) {
	data, err := c.client.Get(ctx, profileKey(username)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached profile: %w", err)
	}

	profile := &model.Profile{}
	if err := json.Unmarshal(data, profile); err != nil {
		// 壊れたエントリはミスとして扱い、次のSetで上書きされる
		return nil, nil
	}
	return profile, nil
}

// Set はプロフィールをJSONで直列化し固定TTLでキャッシュする。
func (c *RedisProfileCache) Set(ctx context.Context, profile *model.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := c.client.Set(ctx, profileKey(profile.Username), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached profile: %w", err)
	}
	return nil
}

// Delete はキャッシュエントリを削除する。エントリが存在しなくてもエラーにならない。
func (c *RedisProfileCache) Delete(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, profileKey(username)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileCache = (*RedisProfileCache)(nil)
