// Package github は上流のリリース配信API（GitHub REST API）を呼び出すクライアントを提供する。
//
// サーバー側で保持するアクセストークンと必須ヘッダーを付与し、
// リポジトリ情報・リリース一覧・タグ指定リリース・アセット本体の取得を行う。
// 失敗は「上流が拒否した（StatusError）」と「上流に到達できなかった（TransportError）」
// を区別して返す。リトライは行わない。
package github
