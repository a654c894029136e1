// pkg/oauth1/replay.go
package oauth1

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// NonceStore enforces single use of an oauth_nonce per consumer key.
// Use marks (consumerKey, nonce) as consumed for ttl and returns true if it
// was not seen before (or the previous entry expired). It returns false on
// reuse inside the window.
type NonceStore interface {
	Use(ctx context.Context, consumerKey, nonce string, ttl time.Duration) (bool, error)
}

// InMemoryNonces is a process-local NonceStore for tests and single-node
// development. Multi-process deployments use the SQL-backed store.
type InMemoryNonces struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	useCount uint64
	purgeN   uint64
	now      func() time.Time
}

// NewInMemoryNonces creates the cache; every purgeEvery calls to Use expired
// entries are dropped. purgeEvery <= 0 means 1024.
func NewInMemoryNonces(purgeEvery int) *InMemoryNonces {
	if purgeEvery <= 0 {
		purgeEvery = 1024
	}
	return &InMemoryNonces{
		entries: make(map[string]time.Time, 256),
		purgeN:  uint64(purgeEvery),
		now:     time.Now,
	}
}

func (m *InMemoryNonces) Use(_ context.Context, consumerKey, nonce string, ttl time.Duration) (bool, error) {
	consumerKey = strings.TrimSpace(consumerKey)
	nonce = strings.TrimSpace(nonce)
	if consumerKey == "" || nonce == "" {
		return false, fmt.Errorf("oauth1: consumer key and nonce are required")
	}
	now := m.now()
	k := consumerKey + "|" + nonce

	m.mu.Lock()
	defer m.mu.Unlock()

	m.useCount++
	if m.useCount%m.purgeN == 0 {
		for key, until := range m.entries {
			if !until.After(now) {
				delete(m.entries, key)
			}
		}
	}

	if until, ok := m.entries[k]; ok && until.After(now) {
		return false, nil
	}
	m.entries[k] = now.Add(ttl)
	return true, nil
}

// NoopNonces accepts every nonce.
type NoopNonces struct{}

func (NoopNonces) Use(context.Context, string, string, time.Duration) (bool, error) { return true, nil }
