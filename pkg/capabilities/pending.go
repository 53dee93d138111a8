package capabilities

import (
	"sync"

	"github.com/joynr-go/joynr/pkg/joynrmetrics"
	"github.com/joynr-go/joynr/pkg/model"
)

// pendingLookups coalesces in-flight (domain, interface) global
// lookups against local registrations racing to satisfy the same
// address, per spec.md §4.7.5. A callback is registered before the
// global request is issued; it fires exactly once, either from the
// global result or from a concurrent local add that drains the
// address first.
type pendingLookups struct {
	mu       sync.Mutex
	nextID   uint64
	byAddr   map[model.InterfaceAddress]map[uint64]func(model.ResolvedEntry, error)
}

func newPendingLookups() *pendingLookups {
	return &pendingLookups{byAddr: make(map[model.InterfaceAddress]map[uint64]func(model.ResolvedEntry, error))}
}

// Register records callback for addr, returning a token to later
// Resolve it.
func (p *pendingLookups) Register(addr model.InterfaceAddress, callback func(model.ResolvedEntry, error)) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	set, ok := p.byAddr[addr]
	if !ok {
		set = make(map[uint64]func(model.ResolvedEntry, error))
		p.byAddr[addr] = set
	}
	set[id] = callback
	joynrmetrics.PendingLookups.Inc()
	return id
}

// Resolve is called when the global lookup that Register preceded
// completes. It reports whether the caller should invoke the callback
// itself: true if no concurrent local add already drained it, false if
// DrainLocal already fired it.
func (p *pendingLookups) Resolve(addr model.InterfaceAddress, id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.byAddr[addr]
	if !ok {
		return false
	}
	if _, ok := set[id]; !ok {
		return false
	}
	delete(set, id)
	if len(set) == 0 {
		delete(p.byAddr, addr)
	}
	joynrmetrics.PendingLookups.Dec()
	return true
}

// DrainLocal fires every pending callback for addr with entry (a
// freshly locally-registered provider) and clears addr's pending list,
// per spec.md §4.7.1 step 3's last bullet and §4.7.5's second
// paragraph.
func (p *pendingLookups) DrainLocal(addr model.InterfaceAddress, entry model.DiscoveryEntry) {
	p.mu.Lock()
	set, ok := p.byAddr[addr]
	if ok {
		delete(p.byAddr, addr)
	}
	p.mu.Unlock()

	if !ok {
		return
	}
	joynrmetrics.PendingLookups.Sub(float64(len(set)))
	resolved := model.ResolvedEntry{DiscoveryEntry: entry, IsLocal: true}
	for _, cb := range set {
		cb(resolved, nil)
	}
}
