// Package router defines the MessageRouter interface consumed by C7
// (spec.md §6) and provides an in-memory, TTL'd implementation backed
// by patrickmn/go-cache, mirroring the routing-table shape used
// throughout the pack for "who do I send bytes to for participant X".
package router

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/joynr-go/joynr/pkg/model"
)

// MessageRouter resolves a participant id to a transport address and
// tracks how to reach it. Consumed by pkg/capabilities (add/remove
// next-hops as providers come and go) and by pkg/transport (resolve an
// address to send to).
type MessageRouter interface {
	AddNextHop(participantID model.ParticipantID, address []byte, isGloballyVisible bool, expiry time.Duration, isSticky bool)
	RemoveNextHop(participantID model.ParticipantID)
	Resolve(participantID model.ParticipantID) ([]byte, bool)
}

// InMemoryRouter is a MessageRouter backed by an in-memory TTL cache.
// A zero (sticky, no-expiry) entry is stored with go-cache's
// NoExpiration sentinel.
type InMemoryRouter struct {
	cache *gocache.Cache
}

// New constructs an InMemoryRouter. cleanupInterval controls how often
// expired next-hops are purged in the background.
func New(cleanupInterval time.Duration) *InMemoryRouter {
	return &InMemoryRouter{cache: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

type nextHop struct {
	address           []byte
	isGloballyVisible bool
	isSticky          bool
}

// AddNextHop records the transport address for participantID. An
// expiry of zero (or isSticky true) means the entry never expires on
// its own — spec.md §4.7.8 calls for "effectively infinite expiry at
// the routing layer" for entries learned from a global lookup, since
// the capabilities directory, not the router, owns their real expiry.
func (r *InMemoryRouter) AddNextHop(participantID model.ParticipantID, address []byte, isGloballyVisible bool, expiry time.Duration, isSticky bool) {
	nh := nextHop{address: address, isGloballyVisible: isGloballyVisible, isSticky: isSticky}
	if isSticky || expiry <= 0 {
		r.cache.Set(string(participantID), nh, gocache.NoExpiration)
		return
	}
	r.cache.Set(string(participantID), nh, expiry)
}

// RemoveNextHop drops the next-hop for participantID, if any.
func (r *InMemoryRouter) RemoveNextHop(participantID model.ParticipantID) {
	r.cache.Delete(string(participantID))
}

// Resolve returns the transport address for participantID, if known
// and not expired.
func (r *InMemoryRouter) Resolve(participantID model.ParticipantID) ([]byte, bool) {
	v, ok := r.cache.Get(string(participantID))
	if !ok {
		return nil, false
	}
	return v.(nextHop).address, true
}
