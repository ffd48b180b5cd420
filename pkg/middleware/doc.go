// Package middleware はリリースプロキシのGinルーターで使用する共通ミドルウェアを提供する。
//
// パニックリカバリ、CORS設定、リクエストIDの付与を含む。
package middleware
