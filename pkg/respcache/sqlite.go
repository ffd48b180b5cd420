package respcache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/releaseproxy/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite はSQLiteをバックエンドとするキャッシュ。
// プロセス再起動後も期限内のエントリを再利用できる。
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite はデータベースを開き、スキーマを適用する。
// ":memory:" を指定した場合は単一接続に制限し、接続ごとに別DBになることを防ぐ。
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Get はキーに対応する有効なエントリを返す。
func (s *SQLite) Get(ctx context.Context, key string) (*Entry, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM response_cache WHERE cache_key = ? AND expires_at > ?",
		key, s.now().UnixNano(),
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("キャッシュの取得に失敗: %w", err)
	}

	entry, err := decode(payload)
	if err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

// Set はエントリを保存し、あわせて期限切れの行を削除する。
func (s *SQLite) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := encode(entry)
	if err != nil {
		return err
	}

	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO response_cache (cache_key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, payload, now.Add(ttl).UnixNano(),
	); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM response_cache WHERE expires_at <= ?", now.UnixNano()); err != nil {
		return fmt.Errorf("期限切れキャッシュの削除に失敗: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *SQLite) Close() error {
	return s.db.Close()
}
