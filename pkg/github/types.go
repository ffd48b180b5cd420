package github

import "time"

// Repository は上流リポジトリのメタデータのうち、本サービスが参照する部分。
type Repository struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
}

// Release は上流のリリース。
type Release struct {
	ID          int64      `json:"id"`
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Draft       bool       `json:"draft"`
	Prerelease  bool       `json:"prerelease"`
	Body        string     `json:"body"`
	HTMLURL     string     `json:"html_url"`
	PublishedAt *time.Time `json:"published_at"`
	Assets      []Asset    `json:"assets"`
}

// Asset はリリースに添付されたファイル。
// ID はバイナリ本体を取得する際に使用する。
type Asset struct {
	ID                 int64      `json:"id"`
	Name               string     `json:"name"`
	BrowserDownloadURL string     `json:"browser_download_url"`
	Size               int64      `json:"size"`
	CreatedAt          *time.Time `json:"created_at"`
}

// FindAsset は名前が完全一致するアセットを返す。
// 部分一致や大文字小文字を無視した一致は行わない。
func (r *Release) FindAsset(name string) (Asset, bool) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}
