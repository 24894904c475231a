package cache

import (
	"sync"
	"time"
)

// MemCache is an in-memory cache backed by sync.Map. Each item carries its
// own lock so updates to one key never block another, and an optional
// expiration. A background sweep goroutine runs when NewMemCache is given a
// positive cleanupInterval.
type MemCache[V any] struct {
	items sync.Map
	now   func() time.Time
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

type item[V any] struct {
	mu         sync.Mutex
	value      V
	expiration int64 // unix nano; 0 means no expiration
	evicted    bool
}

func NewMemCache[V any](cleanupInterval time.Duration) *MemCache[V] {
	return NewMemCacheWithClock[V](cleanupInterval, time.Now)
}

func NewMemCacheWithClock[V any](cleanupInterval time.Duration, now func() time.Time) *MemCache[V] {
	if now == nil {
		now = time.Now
	}
	m := &MemCache[V]{
		now:  now,
		stop: make(chan struct{}),
	}
	if cleanupInterval > 0 {
		m.wg.Add(1)
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			defer m.wg.Done()
			for {
				select {
				case <-ticker.C:
					m.Sweep(m.now())
				case <-m.stop:
					return
				}
			}
		}()
	}
	return m
}

// Update replaces the value at key with fn(current) while holding that key's
// lock and extends its expiration to at+ttl. Expiration never moves
// backwards, so a late caller with an older at cannot expire a live entry.
// A missing or expired entry is presented to fn as the zero value.
func (m *MemCache[V]) Update(key string, at time.Time, ttl time.Duration, fn func(current V) V) V {
	for {
		actual, _ := m.items.LoadOrStore(key, &item[V]{})
		it := actual.(*item[V])

		it.mu.Lock()
		if it.evicted {
			// lost a race with Sweep; the key now belongs to a fresh item
			it.mu.Unlock()
			continue
		}
		if it.expiredAt(at) {
			var zero V
			it.value = zero
		}
		it.value = fn(it.value)
		if e := expiry(at, ttl); e == 0 || e > it.expiration {
			it.expiration = e
		}
		v := it.value
		it.mu.Unlock()
		return v
	}
}

// Sweep removes every item expired at the given instant and reports how
// many were removed.
func (m *MemCache[V]) Sweep(at time.Time) int {
	removed := 0
	m.items.Range(func(k, v any) bool {
		it := v.(*item[V])
		it.mu.Lock()
		if it.expiredAt(at) {
			it.evicted = true
			m.items.CompareAndDelete(k, v)
			removed++
		}
		it.mu.Unlock()
		return true
	})
	return removed
}

func (m *MemCache[V]) Len() int {
	n := 0
	m.items.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (m *MemCache[V]) Close() {
	m.once.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
}

func (it *item[V]) expiredAt(at time.Time) bool {
	if it.expiration == 0 {
		return false
	}
	return at.UnixNano() >= it.expiration
}

func expiry(at time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return at.Add(ttl).UnixNano()
}
