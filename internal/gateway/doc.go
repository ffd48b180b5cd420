// Package gateway はリリースプロキシの内部実装を提供する。
//
// 非公開リポジトリのリリース情報と実行ファイルのアセットだけを公開し、
// ソースコードやアクセストークンをクライアントに見せずに中継する。
// リリース一覧はドラフトと実行ファイル以外のアセットを除外して返し、
// アセット本体はメモリに溜め込まずにストリームとして転送する。
package gateway
