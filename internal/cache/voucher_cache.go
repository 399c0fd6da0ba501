package cache

import (
	"sync"
	"time"

	"github.com/webbangiay/voucher-service/internal/models"
)

type entry struct {
	voucher   models.Voucher
	expiresAt time.Time
}

// VoucherCache is a TTL-bound read cache keyed by canonical voucher code.
// Entries are invalidated on admin mutation and on redemption, so a cached
// voucher can be at most TTL behind on used_count; the redemption path never
// trusts the cache.
type VoucherCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry

	now func() time.Time
}

func NewVoucherCache(ttl time.Duration) *VoucherCache {
	return &VoucherCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *VoucherCache) Get(code string) (*models.Voucher, bool) {
	c.mu.RLock()
	e, ok := c.entries[code]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}

	v := e.voucher
	return &v, true
}

func (c *VoucherCache) Set(code string, v models.Voucher) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[code] = entry{voucher: v, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *VoucherCache) Invalidate(code string) {
	c.mu.Lock()
	delete(c.entries, code)
	c.mu.Unlock()
}

func (c *VoucherCache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}
