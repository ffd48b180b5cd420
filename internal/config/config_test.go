package config

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// clearEnv はテストに影響する環境変数を空にする。
// t.Setenv を使うため、このファイルのテストは並列実行しない。
func clearEnv(t *testing.T) {
	t.Helper()

	for _, key := range []string{
		"PORT", "REPO_OWNER", "REPO_NAME", "GITHUB_TOKEN", "GITHUB_API_URL", "USER_AGENT",
		"CORS_ALLOWED_ORIGINS", "CACHE_BACKEND", "CACHE_TTL", "CACHE_MAX_ENTRIES", "REDIS_URL", "CACHE_SQLITE_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad(t *testing.T) {
	t.Run("未設定の場合にデフォルト値が使われること", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if cfg.RepoOwner != DefaultRepoOwner {
			t.Errorf("RepoOwner = %q, want %q", cfg.RepoOwner, DefaultRepoOwner)
		}
		if cfg.RepoName != DefaultRepoName {
			t.Errorf("RepoName = %q, want %q", cfg.RepoName, DefaultRepoName)
		}
		if cfg.Port != DefaultPort {
			t.Errorf("Port = %q, want %q", cfg.Port, DefaultPort)
		}
		if cfg.APIBaseURL != DefaultAPIBaseURL {
			t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, DefaultAPIBaseURL)
		}
		if cfg.Cache.Backend != CacheBackendMemory {
			t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, CacheBackendMemory)
		}
		if cfg.Cache.TTL != DefaultCacheTTL {
			t.Errorf("Cache.TTL = %v, want %v", cfg.Cache.TTL, DefaultCacheTTL)
		}
		if cfg.Cache.MaxEntries != DefaultCacheMaxEntries {
			t.Errorf("Cache.MaxEntries = %d, want %d", cfg.Cache.MaxEntries, DefaultCacheMaxEntries)
		}
		if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"*"}) {
			t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
		}
	})

	t.Run("環境変数の値が反映されること", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("REPO_OWNER", "acme")
		t.Setenv("REPO_NAME", "tools")
		t.Setenv("GITHUB_TOKEN", "secret")
		t.Setenv("CACHE_BACKEND", "redis")
		t.Setenv("CACHE_TTL", "90s")
		t.Setenv("CACHE_MAX_ENTRIES", "256")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if got := cfg.Repository(); got != "acme/tools" {
			t.Errorf("Repository() = %q, want %q", got, "acme/tools")
		}
		if cfg.Token != "secret" {
			t.Errorf("Token = %q, want %q", cfg.Token, "secret")
		}
		if cfg.Cache.Backend != CacheBackendRedis {
			t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, CacheBackendRedis)
		}
		if cfg.Cache.TTL != 90*time.Second {
			t.Errorf("Cache.TTL = %v, want 90s", cfg.Cache.TTL)
		}
		if cfg.Cache.MaxEntries != 256 {
			t.Errorf("Cache.MaxEntries = %d, want 256", cfg.Cache.MaxEntries)
		}
		want := []string{"https://a.example", "https://b.example"}
		if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
			t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
		}
	})

	t.Run("不正なCACHE_TTLでエラーが返ること", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CACHE_TTL", "five minutes")

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("不正なCACHE_MAX_ENTRIESでエラーが返ること", func(t *testing.T) {
		for _, v := range []string{"0", "-1", "many"} {
			clearEnv(t)
			t.Setenv("CACHE_MAX_ENTRIES", v)

			if _, err := Load(); err == nil {
				t.Errorf("CACHE_MAX_ENTRIES=%q: Load()がエラーを返すべきだが、nilが返った", v)
			}
		}
	})

	t.Run("未知のキャッシュバックエンドでエラーが返ること", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("CACHE_BACKEND", "memcached")

		if _, err := Load(); err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("トークン未設定でErrMissingTokenが返ること", func(t *testing.T) {
		t.Parallel()

		err := Config{}.Validate()
		if !errors.Is(err, ErrMissingToken) {
			t.Errorf("Validate() = %v, want ErrMissingToken", err)
		}
	})

	t.Run("トークン設定済みならnilが返ること", func(t *testing.T) {
		t.Parallel()

		if err := (Config{Token: "x"}).Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}
