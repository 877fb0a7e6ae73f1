package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// 缓存相关常量
const (
	CacheKeyPrefix   = "pm:cache:" // 缓存key前缀
	MessageNamespace = "message"   // 私信缓存命名空间
)

// Namespace 带命名空间的缓存，key 形如 pm:cache:message:42
type Namespace struct {
	client *redis.Client
	name   string
	ttl    time.Duration
}

// NewNamespace 创建缓存命名空间
func NewNamespace(client *redis.Client, name string, ttl time.Duration) *Namespace {
	return &Namespace{client: client, name: name, ttl: ttl}
}

// Name 命名空间名称
func (n *Namespace) Name() string {
	return n.name
}

// Key 完整的缓存key
func (n *Namespace) Key(key string) string {
	return fmt.Sprintf("%s%s:%s", CacheKeyPrefix, n.name, key)
}

// Invalidate 删除缓存项，不存在时不报错
func (n *Namespace) Invalidate(ctx context.Context, key string) error {
	if n.client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	if err := n.client.Del(ctx, n.Key(key)).Err(); err != nil {
		return fmt.Errorf("删除缓存失败: %w", err)
	}
	return nil
}

// SetJSON 序列化并写入缓存
func (n *Namespace) SetJSON(ctx context.Context, key string, value interface{}) error {
	if n.client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}

	if err := n.client.Set(ctx, n.Key(key), data, n.ttl).Err(); err != nil {
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	return nil
}

// GetJSON 读取并反序列化缓存，未命中返回 false
func (n *Namespace) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if n.client == nil {
		return false, fmt.Errorf("redis客户端未初始化")
	}

	data, err := n.client.Get(ctx, n.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("读取缓存失败: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("反序列化缓存失败: %w", err)
	}
	return true, nil
}

// Flush 删除命名空间下的全部缓存项，返回删除数量
func (n *Namespace) Flush(ctx context.Context) (int64, error) {
	if n.client == nil {
		return 0, fmt.Errorf("redis客户端未初始化")
	}

	var deleted int64
	iter := n.client.Scan(ctx, 0, n.Key("*"), 100).Iterator()
	for iter.Next(ctx) {
		c, err := n.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("删除缓存失败: %w", err)
		}
		deleted += c
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("扫描缓存失败: %w", err)
	}
	return deleted, nil
}
