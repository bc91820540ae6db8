package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"OpenFarm-Chain/internal/auth"

	"github.com/redis/go-redis/v9"
)

// Config 描述会话缓存的连接参数。
type Config struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// SessionCache 把会话令牌按地址缓存到 Redis，TTL 对齐令牌过期时间。
// 进程重启后可以复用仍然有效的令牌，省掉一次认证握手。
type SessionCache struct {
	client *redis.Client
	prefix string
}

// NewSessionCache 创建会话缓存实例。
func NewSessionCache(cfg Config) (*SessionCache, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "openfarm:session:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	return &SessionCache{client: client, prefix: prefix}, nil
}

// Load 按地址读取缓存的令牌，未命中时返回 (nil, nil)。
func (c *SessionCache) Load(ctx context.Context, address string) (*auth.Token, error) {
	raw, err := c.client.Get(ctx, c.prefix+address).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取会话缓存失败: %w", err)
	}
	var token auth.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("解析缓存令牌失败: %w", err)
	}
	return &token, nil
}

// Save 写入令牌，已过期的令牌直接丢弃。
func (c *SessionCache) Save(ctx context.Context, token *auth.Token) error {
	if token == nil || token.Address == "" {
		return errors.New("令牌缺少地址")
	}
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	encoded, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("序列化令牌失败: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+token.Address, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("写入会话缓存失败: %w", err)
	}
	return nil
}

// Close 关闭 Redis 连接。
func (c *SessionCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
