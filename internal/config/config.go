// Package config はリリースプロキシの起動時設定を提供する。
//
// 設定は起動時に一度だけ環境変数（および存在すれば .env ファイル）から読み込まれ、
// 以降は値として各コンポーネントに渡される。実行中に書き換えられることはない。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// デフォルト値。
const (
	DefaultRepoOwner  = "gino-vi"
	DefaultRepoName   = "Wangfang-Suite"
	DefaultPort       = "5000"
	DefaultAPIBaseURL = "https://api.github.com"
	DefaultUserAgent  = "Release-Proxy/1.0"
	DefaultCacheTTL   = 5 * time.Minute
	// DefaultCacheMaxEntries は memory バックエンドが保持するエントリ数の上限。
	DefaultCacheMaxEntries = 1024
)

// キャッシュバックエンド名。
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendSQLite = "sqlite"
	CacheBackendNone   = "none"
)

// ErrMissingToken はアクセストークンが設定されていないことを表す。
var ErrMissingToken = errors.New("GITHUB_TOKEN が設定されていません")

// Config はプロセス全体で共有される不変の設定値。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// RepoOwner は公開対象リポジトリのオーナー。
	RepoOwner string
	// RepoName は公開対象リポジトリ名。
	RepoName string
	// Token は上流APIへのアクセストークン。クライアントには決して渡さない。
	Token string
	// APIBaseURL は上流APIのベースURL。
	APIBaseURL string
	// UserAgent は上流APIに送る識別文字列。
	UserAgent string
	// AllowedOrigins はCORSで許可するオリジン。"*" は全オリジンを許可する。
	AllowedOrigins []string
	// Cache はリクエスト単位のレスポンスキャッシュ設定。
	Cache CacheConfig
}

// CacheConfig はアドバイザリキャッシュの設定。
type CacheConfig struct {
	// Backend は memory / redis / sqlite / none のいずれか。
	Backend string
	// TTL はキャッシュエントリの保持期間。
	TTL time.Duration
	// MaxEntries は memory バックエンドが保持するエントリ数の上限。
	MaxEntries int
	// RedisURL は redis バックエンドの接続URL。
	RedisURL string
	// SQLitePath は sqlite バックエンドのデータベースパス。
	SQLitePath string
}

// Load は環境変数から設定を読み込む。
// カレントディレクトリに .env があれば先に読み込むが、既存の環境変数は上書きしない。
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf(".env の読み込みに失敗: %w", err)
	}

	ttl := DefaultCacheTTL
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("CACHE_TTL の解析に失敗: %w", err)
		}
		ttl = d
	}

	maxEntries := DefaultCacheMaxEntries
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("CACHE_MAX_ENTRIES は正の整数で指定してください: %q", v)
		}
		maxEntries = n
	}

	cfg := Config{
		Port:           getEnvOr("PORT", DefaultPort),
		RepoOwner:      getEnvOr("REPO_OWNER", DefaultRepoOwner),
		RepoName:       getEnvOr("REPO_NAME", DefaultRepoName),
		Token:          os.Getenv("GITHUB_TOKEN"),
		APIBaseURL:     getEnvOr("GITHUB_API_URL", DefaultAPIBaseURL),
		UserAgent:      getEnvOr("USER_AGENT", DefaultUserAgent),
		AllowedOrigins: splitList(getEnvOr("CORS_ALLOWED_ORIGINS", "*")),
		Cache: CacheConfig{
			Backend:    getEnvOr("CACHE_BACKEND", CacheBackendMemory),
			TTL:        ttl,
			MaxEntries: maxEntries,
			RedisURL:   getEnvOr("REDIS_URL", "redis://localhost:6379/0"),
			SQLitePath: getEnvOr("CACHE_SQLITE_PATH", "/tmp/releaseproxy-cache.db"),
		},
	}

	switch cfg.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendSQLite, CacheBackendNone:
	default:
		return Config{}, fmt.Errorf("未知のキャッシュバックエンド: %q", cfg.Cache.Backend)
	}

	return cfg, nil
}

// Validate は上流APIを呼び出す前に満たすべき設定を検証する。
func (c Config) Validate() error {
	if c.Token == "" {
		return ErrMissingToken
	}
	return nil
}

// Repository は "owner/name" 形式のリポジトリ識別子を返す。
func (c Config) Repository() string {
	return c.RepoOwner + "/" + c.RepoName
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
