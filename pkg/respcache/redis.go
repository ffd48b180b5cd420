package respcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix は他用途のキーと衝突しないよう付与するプレフィックス。
const redisKeyPrefix = "releaseproxy:resp:"

// Redis はRedisをバックエンドとするキャッシュ。複数インスタンス間でキャッシュを共有できる。
type Redis struct {
	cl *redis.Client
}

// OpenRedis はURLからRedisクライアントを生成し、疎通を確認する。
func OpenRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("Redis URLの解析に失敗: %w", err)
	}

	cl := redis.NewClient(opt)
	if err := cl.Ping(ctx).Err(); err != nil {
		cl.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
	}
	return NewRedis(cl), nil
}

// NewRedis は既存のクライアントを使うキャッシュを生成する。
func NewRedis(cl *redis.Client) *Redis {
	return &Redis{cl: cl}
}

// Get はキーに対応するエントリを返す。
func (r *Redis) Get(ctx context.Context, key string) (*Entry, bool, error) {
	b, err := r.cl.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("キャッシュの取得に失敗: %w", err)
	}

	entry, err := decode(b)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Set はエントリを ttl 付きで保存する。期限切れはRedis側で処理される。
func (r *Redis) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b, err := encode(entry)
	if err != nil {
		return err
	}
	if err := r.cl.Set(ctx, redisKeyPrefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗: %w", err)
	}
	return nil
}

// Close はRedisクライアントを閉じる。
func (r *Redis) Close() error {
	return r.cl.Close()
}
