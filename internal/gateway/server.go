package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/releaseproxy/internal/config"
	"github.com/nao1215/releaseproxy/pkg/github"
	"github.com/nao1215/releaseproxy/pkg/middleware"
	"github.com/nao1215/releaseproxy/pkg/respcache"
)

const (
	// serviceName はサービス情報として返す名前。
	serviceName = "Release Proxy"
	// edgeCacheControl は中間キャッシュ（CDN等）に一覧レスポンスの保持を許可するディレクティブ。
	// リクエスト単位のアドバイザリキャッシュとは独立している。
	edgeCacheControl = "public, max-age=120, s-maxage=120"
	// cacheWriteTimeout は非同期のキャッシュ書き込みに許す時間。
	cacheWriteTimeout = 5 * time.Second
	// contentTypeJSON はJSONレスポンスのContent-Type。
	contentTypeJSON = "application/json; charset=utf-8"
	// contentTypeBinary はアセット転送時に強制するContent-Type。
	contentTypeBinary = "application/octet-stream"
	// readHeaderTimeout はリクエストヘッダーの読み込みに許す時間。
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout は停止時に処理中のリクエストを待つ時間。
	shutdownTimeout = 30 * time.Second
)

// hopByHopHeaders はアセット転送時に上流から引き継がないヘッダー。
// Content-Type / Content-Disposition / Content-Length はこちらで設定する。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Content-Type":        {},
	"Content-Disposition": {},
	"Content-Length":      {},
}

// Upstream はGatewayが利用する上流APIの操作。
type Upstream interface {
	GetRepository(ctx context.Context) (*github.Repository, error)
	ListReleases(ctx context.Context) ([]github.Release, error)
	GetReleaseByTag(ctx context.Context, tag string) (*github.Release, error)
	DownloadAsset(ctx context.Context, assetID int64) (*http.Response, error)
}

// Server はリリースプロキシのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// cfg は起動時に読み込んだ不変の設定。
	cfg config.Config
	// upstream は上流APIクライアント。
	upstream Upstream
	// cache はリクエスト単位のアドバイザリキャッシュ。
	cache respcache.Store
	// cacheTTL はアドバイザリキャッシュの保持期間。
	cacheTTL time.Duration
	// pending は実行中の非同期キャッシュ書き込み。
	pending sync.WaitGroup
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewServer は新しいリリースプロキシサーバーを生成する。
// キャッシュバックエンドへの接続に失敗した場合はエラーを返す。
func NewServer(ctx context.Context, cfg config.Config) (*Server, error) {
	cache, err := respcache.Open(ctx, cfg.Cache.Backend, respcache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		RedisURL:   cfg.Cache.RedisURL,
		SQLitePath: cfg.Cache.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("キャッシュの初期化に失敗: %w", err)
	}

	upstream := github.New(github.Options{
		BaseURL:   cfg.APIBaseURL,
		Token:     cfg.Token,
		Owner:     cfg.RepoOwner,
		Repo:      cfg.RepoName,
		UserAgent: cfg.UserAgent,
	})

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:   router,
		port:     cfg.Port,
		cfg:      cfg,
		upstream: upstream,
		cache:    cache,
		cacheTTL: cfg.Cache.TTL,
		now:      time.Now,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はHTTPハンドラとしてのルーターを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctx が終了するまでリクエストを処理する。
// ctx の終了後は処理中のリクエストを shutdownTimeout まで待ってから戻る。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("サーバーの停止に失敗: %w", err)
	}
	return nil
}

// Close は実行中のキャッシュ書き込みを待ってからキャッシュを閉じる。
func (s *Server) Close() error {
	s.pending.Wait()
	return s.cache.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleInfo())
	s.router.GET("/health", s.handleHealth())
	s.router.GET("/releases", s.handleListReleases())
	s.router.GET("/releases/download/:tag/:asset", s.handleDownloadAsset())

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// handleInfo はサービス情報を返すハンドラを返す。上流は呼び出さない。
func (s *Server) handleInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":    serviceName,
			"status":     "operational",
			"repository": s.cfg.Repository(),
			"endpoints": gin.H{
				"/":                                "Service information",
				"/health":                          "Health check",
				"/releases":                        "Get available releases",
				"/releases/download/{tag}/{asset}": "Download a release asset",
			},
		})
	}
}

// handleHealth は上流APIへの到達性を確認するハンドラを返す。
// 上流の状態に関わらず常に整形済みのJSONを返し、異常時は500を返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"repository": s.cfg.Repository(),
			"timestamp":  s.now().UTC().Format(time.RFC3339),
			"cache":      s.cfg.Cache.Backend,
		}

		if err := s.cfg.Validate(); err != nil {
			log.Printf("[Health] request_id=%s 設定エラー: %v", middleware.GetRequestID(c), err)
			body["status"] = "unhealthy"
			body["upstream"] = "not_configured"
			body["error"] = "Service configuration error: " + err.Error()
			c.JSON(http.StatusInternalServerError, body)
			return
		}

		_, err := s.upstream.GetRepository(c.Request.Context())
		if err == nil {
			body["status"] = "healthy"
			body["upstream"] = "connected"
			c.JSON(http.StatusOK, body)
			return
		}

		log.Printf("[Health] request_id=%s 上流APIの確認に失敗: %v", middleware.GetRequestID(c), err)
		body["status"] = "unhealthy"
		var transportErr *github.TransportError
		if code, ok := github.StatusCode(err); ok {
			body["upstream"] = "error"
			body["upstream_status"] = code
		} else if errors.As(err, &transportErr) {
			body["upstream"] = "unreachable"
			body["error"] = err.Error()
		} else {
			// 応答は受け取れたが内容を解釈できなかった
			body["upstream"] = "invalid_response"
			body["error"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

// handleListReleases はフィルタ済みのリリース一覧を返すハンドラを返す。
func (s *Server) handleListReleases() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		requestID := middleware.GetRequestID(c)
		key := cacheKey(c.Request)

		if entry, ok := s.lookupCache(ctx, requestID, key); ok {
			writeEntry(c, entry)
			return
		}

		if err := s.cfg.Validate(); err != nil {
			log.Printf("[Releases] request_id=%s 設定エラー: %v", requestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service configuration error"})
			return
		}

		releases, err := s.upstream.ListReleases(ctx)
		if err != nil {
			log.Printf("[Releases] request_id=%s 上流からの取得に失敗: %v", requestID, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch releases from upstream"})
			return
		}

		views := FilterReleases(releases)
		body, err := json.Marshal(views)
		if err != nil {
			log.Printf("[Releases] request_id=%s シリアライズに失敗: %v", requestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		log.Printf("[Releases] request_id=%s 上流 %d 件中 %d 件を公開", requestID, len(releases), len(views))

		entry := &respcache.Entry{
			Status: http.StatusOK,
			Header: http.Header{
				"Content-Type":  {contentTypeJSON},
				"Cache-Control": {edgeCacheControl},
			},
			Body: body,
		}
		s.storeCacheAsync(requestID, key, entry)
		writeEntry(c, entry)
	}
}

// handleDownloadAsset はアセット本体をストリーム転送するハンドラを返す。
func (s *Server) handleDownloadAsset() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		requestID := middleware.GetRequestID(c)
		tag := c.Param("tag")
		name := c.Param("asset")

		// 許可されていない拡張子は上流に問い合わせる前に拒否する
		if !IsAllowedAsset(name) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Only %s assets can be downloaded", ExecutableSuffix)})
			return
		}

		if err := s.cfg.Validate(); err != nil {
			log.Printf("[Download] request_id=%s 設定エラー: %v", requestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Service configuration error"})
			return
		}

		release, err := s.upstream.GetReleaseByTag(ctx, tag)
		if err != nil {
			log.Printf("[Download] request_id=%s リリースの取得に失敗: tag=%s, error=%v", requestID, tag, err)
			c.JSON(http.StatusNotFound, gin.H{"error": "Release not found"})
			return
		}

		asset, ok := release.FindAsset(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}

		resp, err := s.upstream.DownloadAsset(ctx, asset.ID)
		if err != nil {
			log.Printf("[Download] request_id=%s アセットの取得に失敗: tag=%s, asset=%s, error=%v", requestID, tag, name, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to download asset from upstream"})
			return
		}
		defer resp.Body.Close()

		header := c.Writer.Header()
		for k, values := range resp.Header {
			if _, skip := hopByHopHeaders[http.CanonicalHeaderKey(k)]; skip {
				continue
			}
			for _, v := range values {
				header.Add(k, v)
			}
		}

		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": name})
		if disposition == "" {
			disposition = "attachment"
		}
		c.DataFromReader(http.StatusOK, resp.ContentLength, contentTypeBinary, resp.Body, map[string]string{
			"Content-Disposition": disposition,
		})

		if err := c.Errors.Last(); err != nil {
			log.Printf("[Download] request_id=%s 転送が中断されました: asset=%s, error=%v", requestID, name, err)
		}
	}
}

// lookupCache はアドバイザリキャッシュを参照する。
// キャッシュのエラーはミスとして扱い、レスポンスの内容には影響させない。
func (s *Server) lookupCache(ctx context.Context, requestID, key string) (*respcache.Entry, bool) {
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("[Cache] request_id=%s キャッシュの参照に失敗: %v", requestID, err)
		}
		return nil, false
	}
	return entry, ok
}

// storeCacheAsync はレスポンスを返すのを待たせずにアドバイザリキャッシュへ書き込む。
// リクエストのコンテキストとは独立させ、クライアント切断で書き込みが取り消されないようにする。
func (s *Server) storeCacheAsync(requestID, key string, entry *respcache.Entry) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), cacheWriteTimeout)
		defer cancel()

		if err := s.cache.Set(ctx, key, entry, s.cacheTTL); err != nil {
			log.Printf("[Cache] request_id=%s キャッシュの保存に失敗: %v", requestID, err)
		}
	}()
}

// cacheKey は受信したリクエストのURLからキャッシュキーを生成する。
func cacheKey(r *http.Request) string {
	return r.Host + r.URL.RequestURI()
}

// writeEntry はキャッシュエントリの形式のレスポンスをそのまま書き出す。
func writeEntry(c *gin.Context, entry *respcache.Entry) {
	header := c.Writer.Header()
	for k, values := range entry.Header {
		header[k] = append([]string(nil), values...)
	}
	c.Status(entry.Status)
	if _, err := c.Writer.Write(entry.Body); err != nil {
		log.Printf("[Releases] request_id=%s レスポンスの書き込みに失敗: %v", middleware.GetRequestID(c), err)
	}
}
