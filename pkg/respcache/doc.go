// Package respcache はリクエスト単位のアドバイザリレスポンスキャッシュを提供する。
//
// キャッシュはベストエフォートであり、ミスや追い出しが起きてもレスポンスの内容は変わらず、
// レイテンシだけが変わる。バックエンドはメモリ・Redis・SQLite・無効（Nop）から選択できる。
package respcache
