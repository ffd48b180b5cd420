package github

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyBody は上流がコンテンツストリームを返さなかったことを表す。
var ErrEmptyBody = errors.New("上流レスポンスにボディがありません")

// StatusError は上流が2xx以外のステータスで応答したことを表す。
type StatusError struct {
	// StatusCode は上流が返したHTTPステータスコード。
	StatusCode int
	// Body は上流が返したレスポンスボディ（先頭の一部）。
	Body string
	// URL はリクエスト先URL。
	URL string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("上流APIエラー: status=%d, url=%s, body=%s", e.StatusCode, e.URL, e.Body)
}

// TransportError は上流からレスポンスを受け取れなかったことを表す。
type TransportError struct {
	// URL はリクエスト先URL。
	URL string
	// Err は下位の通信エラー。
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("上流APIへの接続に失敗: url=%s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode はエラーが StatusError の場合にそのステータスコードを返す。
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// IsNotFound は上流が404を返したかどうかを判定する。
func IsNotFound(err error) bool {
	code, ok := StatusCode(err)
	return ok && code == http.StatusNotFound
}
