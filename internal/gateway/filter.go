package gateway

import (
	"strings"
	"time"

	"github.com/nao1215/releaseproxy/pkg/github"
)

// ExecutableSuffix は公開を許可するアセットの拡張子。大文字小文字を区別する。
const ExecutableSuffix = ".exe"

// AssetView はクライアントに返すアセットの射影。上流のアセットIDは含めない。
// 上流が created_at を返さない場合は null になる。
type AssetView struct {
	Name               string     `json:"name"`
	BrowserDownloadURL string     `json:"browser_download_url"`
	Size               int64      `json:"size"`
	CreatedAt          *time.Time `json:"created_at"`
}

// ReleaseView はフィルタ済みのリリースの射影。
type ReleaseView struct {
	TagName     string      `json:"tag_name"`
	Name        string      `json:"name"`
	Prerelease  bool        `json:"prerelease"`
	Body        string      `json:"body"`
	HTMLURL     string      `json:"html_url"`
	PublishedAt *time.Time  `json:"published_at"`
	Assets      []AssetView `json:"assets"`
}

// IsAllowedAsset はアセット名が公開許可された拡張子で終わるかを判定する。
func IsAllowedAsset(name string) bool {
	return strings.HasSuffix(name, ExecutableSuffix)
}

// FilterReleases は上流のリリース一覧を公開用に絞り込む。
// ドラフトを除外し、許可された拡張子以外のアセットを除外した上で、
// アセットが1つも残らないリリースは結果に含めない。上流の並び順は維持する。
func FilterReleases(releases []github.Release) []ReleaseView {
	views := make([]ReleaseView, 0, len(releases))
	for _, r := range releases {
		if r.Draft {
			continue
		}

		var assets []AssetView
		for _, a := range r.Assets {
			if !IsAllowedAsset(a.Name) {
				continue
			}
			assets = append(assets, AssetView{
				Name:               a.Name,
				BrowserDownloadURL: a.BrowserDownloadURL,
				Size:               a.Size,
				CreatedAt:          a.CreatedAt,
			})
		}
		if len(assets) == 0 {
			continue
		}

		name := r.Name
		if name == "" {
			name = r.TagName
		}
		views = append(views, ReleaseView{
			TagName:     r.TagName,
			Name:        name,
			Prerelease:  r.Prerelease,
			Body:        r.Body,
			HTMLURL:     r.HTMLURL,
			PublishedAt: r.PublishedAt,
			Assets:      assets,
		})
	}
	return views
}
