package respcache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Entry はキャッシュされたHTTPレスポンス。
type Entry struct {
	// Status はHTTPステータスコード。
	Status int `json:"status"`
	// Header はレスポンスヘッダー。
	Header http.Header `json:"header"`
	// Body はレスポンスボディ。
	Body []byte `json:"body"`
}

// Store はアドバイザリキャッシュのバックエンド。
// 実装は並行に呼び出されても安全でなければならない。
type Store interface {
	// Get はキーに対応するエントリを返す。存在しない・期限切れの場合は false を返す。
	Get(ctx context.Context, key string) (*Entry, bool, error)
	// Set はエントリを ttl の間保持する。
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
	// Close はバックエンドの資源を解放する。
	Close() error
}

// Options はバックエンド生成時のオプション。
type Options struct {
	// MaxEntries は memory バックエンドが保持するエントリ数の上限。
	MaxEntries int
	// RedisURL は redis バックエンドの接続URL。
	RedisURL string
	// SQLitePath は sqlite バックエンドのデータベースパス。
	SQLitePath string
}

// Open はバックエンド名に対応する Store を生成する。
func Open(ctx context.Context, backend string, opts Options) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemorySize(opts.MaxEntries), nil
	case "redis":
		return OpenRedis(ctx, opts.RedisURL)
	case "sqlite":
		return OpenSQLite(ctx, opts.SQLitePath)
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("未知のキャッシュバックエンド: %q", backend)
	}
}

// Clone はエントリの複製を返す。
// 呼び出し側がヘッダーやボディを書き換えてもキャッシュ内容に影響しないようにする。
func (e *Entry) Clone() *Entry {
	body := make([]byte, len(e.Body))
	copy(body, e.Body)
	return &Entry{Status: e.Status, Header: e.Header.Clone(), Body: body}
}

// encode はリモートバックエンド向けにエントリをシリアライズする。
func encode(e *Entry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("キャッシュエントリのシリアライズに失敗: %w", err)
	}
	return b, nil
}

// decode はシリアライズされたエントリを復元する。
func decode(b []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("キャッシュエントリのデシリアライズに失敗: %w", err)
	}
	return &e, nil
}

// Nop は何も保持しないキャッシュ。
type Nop struct{}

// Get は常にミスを返す。
func (Nop) Get(context.Context, string) (*Entry, bool, error) { return nil, false, nil }

// Set は何もしない。
func (Nop) Set(context.Context, string, *Entry, time.Duration) error { return nil }

// Close は何もしない。
func (Nop) Close() error { return nil }
