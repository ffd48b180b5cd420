package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL は公開GitHub APIのベースURL。
	DefaultBaseURL = "https://api.github.com"
	// APIVersion は X-GitHub-Api-Version ヘッダーに送るバージョン。
	APIVersion = "2022-11-28"

	acceptJSON   = "application/vnd.github+json"
	acceptBinary = "application/octet-stream"

	// maxErrorBody はエラー時に保持するレスポンスボディの最大バイト数。
	maxErrorBody = 4 << 10
	// releasesPerPage はリリース一覧で一度に取得する件数。
	releasesPerPage = 100
)

// Options はクライアントの生成オプション。
type Options struct {
	// BaseURL は上流APIのベースURL。空の場合は DefaultBaseURL。
	BaseURL string
	// Token はBearer認証に使うアクセストークン。
	Token string
	// Owner はリポジトリのオーナー。
	Owner string
	// Repo はリポジトリ名。
	Repo string
	// UserAgent は User-Agent ヘッダーの値。
	UserAgent string
	// HTTPClient は内部で使用するHTTPクライアント。nilの場合は新規に生成する。
	HTTPClient *http.Client
}

// Client は単一リポジトリに対する上流APIクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	// バイナリ転送を途中で打ち切らないよう、全体タイムアウトは設定しない。
	httpClient *http.Client
	// baseURL は上流APIのベースURL（末尾スラッシュなし）。
	baseURL string
	token   string
	owner   string
	repo    string
	// userAgent は上流に送る識別文字列。
	userAgent string
}

// New は新しい上流APIクライアントを生成する。
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      opts.Token,
		owner:      opts.Owner,
		repo:       opts.Repo,
		userAgent:  opts.UserAgent,
	}
}

// GetRepository はリポジトリのメタデータを取得する。
func (c *Client) GetRepository(ctx context.Context) (*Repository, error) {
	var repo Repository
	if err := c.getJSON(ctx, c.repoPath(), &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// ListReleases はリポジトリのリリース一覧を上流の並び順のまま取得する。
func (c *Client) ListReleases(ctx context.Context) ([]Release, error) {
	var releases []Release
	path := c.repoPath() + "/releases?per_page=" + strconv.Itoa(releasesPerPage)
	if err := c.getJSON(ctx, path, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// GetReleaseByTag はタグ名を指定してリリースを取得する。
func (c *Client) GetReleaseByTag(ctx context.Context, tag string) (*Release, error) {
	var release Release
	if err := c.getJSON(ctx, c.repoPath()+"/releases/tags/"+url.PathEscape(tag), &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// DownloadAsset はアセットのバイナリ本体を要求し、上流レスポンスをそのまま返す。
// ボディは読み込まずにストリームとして呼び出し側に渡すため、呼び出し側で必ずCloseすること。
// ctx がキャンセルされると転送も中断される。
func (c *Client) DownloadAsset(ctx context.Context, assetID int64) (*http.Response, error) {
	path := c.repoPath() + "/releases/assets/" + strconv.FormatInt(assetID, 10)
	resp, err := c.do(ctx, path, acceptBinary)
	if err != nil {
		return nil, err
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, ErrEmptyBody
	}
	return resp, nil
}

// getJSON はGETリクエストを送信し、レスポンスボディをresultにデシリアライズする。
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	resp, err := c.do(ctx, path, acceptJSON)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return nil
}

// do は認証ヘッダーを付与してGETリクエストを送信する。
// 2xx以外のレスポンスはボディを閉じた上で StatusError に変換する。
func (c *Client) do(ctx context.Context, path, accept string) (*http.Response, error) {
	reqURL := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{URL: reqURL, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body), URL: reqURL}
	}
	return resp, nil
}

func (c *Client) repoPath() string {
	return "/repos/" + url.PathEscape(c.owner) + "/" + url.PathEscape(c.repo)
}
