package session

import (
	"context"
	"sync"
	"time"
)

// MemoryDenylist : utilisé quand REDIS_ADDR est vide (dev, tests).
// Les révocations sont perdues au redémarrage.
type MemoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{
		revoked: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (d *MemoryDenylist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.purge()
	d.revoked[tokenID] = d.now().Add(ttl)
	return nil
}

func (d *MemoryDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !d.now().Before(exp) {
		delete(d.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// purge retire les entrées expirées ; appelé sous verrou.
func (d *MemoryDenylist) purge() {
	now := d.now()
	for id, exp := range d.revoked {
		if !now.Before(exp) {
			delete(d.revoked, id)
		}
	}
}
