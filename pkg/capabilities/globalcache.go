package capabilities

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/joynr-go/joynr/pkg/model"
)

// cachedEntry is what the global lookup cache actually stores: the
// entry as learned from the global directory (or a peer), stamped
// with when this process received it, used for the per-lookup
// cacheMaxAge freshness check (spec.md §4.7.4).
type cachedEntry struct {
	entry      model.GlobalDiscoveryEntry
	receivedAt time.Time
}

// globalCache is the global-lookup-cache store of spec.md §4.7: entries
// learned from the global directory or from peers. Backed by
// patrickmn/go-cache (as pkg/replycallers and pkg/router are) for its
// janitor-goroutine cleanup, storing entries with NoExpiration since
// expiry is driven by the entries' own Expiry field via the sweep
// (§4.7.6), not by the cache's own TTL; a secondary by-(domain,
// interface) index is maintained alongside since go-cache has no
// built-in indexing.
type globalCache struct {
	cache *gocache.Cache

	mu        sync.RWMutex
	byAddress map[model.InterfaceAddress]map[model.ParticipantID]struct{}
}

func newGlobalCache(cleanupInterval time.Duration) *globalCache {
	return &globalCache{
		cache:     gocache.New(gocache.NoExpiration, cleanupInterval),
		byAddress: make(map[model.InterfaceAddress]map[model.ParticipantID]struct{}),
	}
}

func addressOfGlobal(e model.GlobalDiscoveryEntry) model.InterfaceAddress {
	return model.InterfaceAddress{Domain: e.Domain, Interface: e.Interface}
}

// Insert records entry as received at now.
func (c *globalCache) Insert(entry model.GlobalDiscoveryEntry, now time.Time) {
	c.cache.Set(string(entry.ParticipantID), cachedEntry{entry: entry, receivedAt: now}, gocache.NoExpiration)

	addr := addressOfGlobal(entry)
	c.mu.Lock()
	set, ok := c.byAddress[addr]
	if !ok {
		set = make(map[model.ParticipantID]struct{})
		c.byAddress[addr] = set
	}
	set[entry.ParticipantID] = struct{}{}
	c.mu.Unlock()
}

// Remove drops the cached entry for participantID, if any.
func (c *globalCache) Remove(participantID model.ParticipantID) {
	v, ok := c.cache.Get(string(participantID))
	if !ok {
		return
	}
	c.cache.Delete(string(participantID))

	addr := addressOfGlobal(v.(cachedEntry).entry)
	c.mu.Lock()
	if set, ok := c.byAddress[addr]; ok {
		delete(set, participantID)
		if len(set) == 0 {
			delete(c.byAddress, addr)
		}
	}
	c.mu.Unlock()
}

// Get returns the cached entry for participantID, honoring maxAge (a
// maxAge <= 0 means "no freshness limit").
func (c *globalCache) Get(participantID model.ParticipantID, maxAge time.Duration, now time.Time) (model.GlobalDiscoveryEntry, bool) {
	v, ok := c.cache.Get(string(participantID))
	if !ok {
		return model.GlobalDiscoveryEntry{}, false
	}
	ce := v.(cachedEntry)
	if maxAge > 0 && now.Sub(ce.receivedAt) > maxAge {
		return model.GlobalDiscoveryEntry{}, false
	}
	return ce.entry, true
}

// ByAddress returns every cached entry for (domain, interface) fresh
// enough to satisfy maxAge.
func (c *globalCache) ByAddress(addr model.InterfaceAddress, maxAge time.Duration, now time.Time) []model.GlobalDiscoveryEntry {
	c.mu.RLock()
	ids := make([]model.ParticipantID, 0, len(c.byAddress[addr]))
	for id := range c.byAddress[addr] {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	entries := make([]model.GlobalDiscoveryEntry, 0, len(ids))
	for _, id := range ids {
		if e, ok := c.Get(id, maxAge, now); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// RemoveExpired evicts every cached entry whose Expiry has passed as
// of now, returning the removed entries (spec.md §4.7.6).
func (c *globalCache) RemoveExpired(now time.Time) []model.GlobalDiscoveryEntry {
	var removed []model.GlobalDiscoveryEntry
	for key, item := range c.cache.Items() {
		ce := item.Object.(cachedEntry)
		if !ce.entry.Expired(now) {
			continue
		}
		removed = append(removed, ce.entry)
		c.Remove(model.ParticipantID(key))
	}
	return removed
}
