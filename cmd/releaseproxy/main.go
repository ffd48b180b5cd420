// リリースプロキシのエントリポイント。
// 非公開リポジトリのリリース一覧と .exe アセットを、認証なしの公開エンドポイントとして提供する。
// 上流へのアクセストークンはこのプロセスの外に出さない。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/releaseproxy/internal/config"
	"github.com/nao1215/releaseproxy/internal/gateway"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("リリースプロキシが異常終了しました: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("設定が不正です: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("サーバーの初期化に失敗: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("キャッシュのクローズに失敗: %v", err)
		}
	}()

	log.Printf("リリースプロキシを起動します: :%s (repository=%s, cache=%s)", cfg.Port, cfg.Repository(), cfg.Cache.Backend)
	if err := server.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Printf("リリースプロキシを停止しました")
	return nil
}
