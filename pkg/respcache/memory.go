package respcache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// DefaultMaxEntries はメモリキャッシュが保持するエントリ数の既定の上限。
const DefaultMaxEntries = 1024

type memoryItem struct {
	entry     *Entry
	expiresAt time.Time
}

// Memory はプロセス内のキャッシュ。
// 保持数は上限を超えると最も使われていないエントリから追い出す。
// 期限切れのエントリは参照時と保存時に削除する。
type Memory struct {
	mu    sync.Mutex
	items *simplelru.LRU[string, memoryItem]
	// now はテストで時刻を差し替えるために使う。
	now func() time.Time
}

// NewMemory は既定の上限を持つ空のメモリキャッシュを生成する。
func NewMemory() *Memory {
	return NewMemorySize(DefaultMaxEntries)
}

// NewMemorySize は最大 maxEntries 件を保持するメモリキャッシュを生成する。
// maxEntries が0以下の場合は DefaultMaxEntries を使う。
func NewMemorySize(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	// サイズが正であればエラーにならない
	items, _ := simplelru.NewLRU[string, memoryItem](maxEntries, nil)
	return &Memory{
		items: items,
		now:   time.Now,
	}
}

// Get はキーに対応する有効なエントリの複製を返す。
func (m *Memory) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(item.expiresAt) {
		m.items.Remove(key)
		return nil, false, nil
	}
	return item.entry.Clone(), true, nil
}

// Set はエントリの複製を保持し、期限切れのエントリを掃除する。
// ttl が0以下の場合は保持しない。
func (m *Memory) Set(_ context.Context, key string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)
	m.items.Add(key, memoryItem{entry: entry.Clone(), expiresAt: now.Add(ttl)})
	return nil
}

// sweep は期限切れのエントリを削除する。呼び出し側でロックを保持すること。
func (m *Memory) sweep(now time.Time) {
	for _, key := range m.items.Keys() {
		if item, ok := m.items.Peek(key); ok && !now.Before(item.expiresAt) {
			m.items.Remove(key)
		}
	}
}

// Len は保持しているエントリ数（未掃除の期限切れを含む）を返す。
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Len()
}

// Close は保持しているエントリを破棄する。
func (m *Memory) Close() error {
	m.mu.Lock()
	m.items.Purge()
	m.mu.Unlock()
	return nil
}
