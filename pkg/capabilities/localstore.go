package capabilities

import (
	"sync"
	"time"

	"github.com/joynr-go/joynr/pkg/model"
)

// localStore is the locally-registered-capabilities store of spec.md
// §4.7: entries this process itself has registered, indexed both by
// participant id and by (domain, interface) for the two lookup shapes
// §4.7.3/§4.7.4 need.
type localStore struct {
	mu         sync.RWMutex
	byID       map[model.ParticipantID]model.DiscoveryEntry
	byAddress  map[model.InterfaceAddress]map[model.ParticipantID]struct{}
}

func newLocalStore() *localStore {
	return &localStore{
		byID:      make(map[model.ParticipantID]model.DiscoveryEntry),
		byAddress: make(map[model.InterfaceAddress]map[model.ParticipantID]struct{}),
	}
}

func (s *localStore) addressOf(e model.DiscoveryEntry) model.InterfaceAddress {
	return model.InterfaceAddress{Domain: e.Domain, Interface: e.Interface}
}

// Insert adds or replaces entry, keyed by its participant id.
func (s *localStore) Insert(entry model.DiscoveryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[entry.ParticipantID] = entry

	addr := s.addressOf(entry)
	set, ok := s.byAddress[addr]
	if !ok {
		set = make(map[model.ParticipantID]struct{})
		s.byAddress[addr] = set
	}
	set[entry.ParticipantID] = struct{}{}
}

// Remove drops the entry for participantID, returning it if present.
func (s *localStore) Remove(participantID model.ParticipantID) (model.DiscoveryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byID[participantID]
	if !ok {
		return model.DiscoveryEntry{}, false
	}
	delete(s.byID, participantID)

	addr := s.addressOf(entry)
	if set, ok := s.byAddress[addr]; ok {
		delete(set, participantID)
		if len(set) == 0 {
			delete(s.byAddress, addr)
		}
	}
	return entry, true
}

// Get returns the entry registered for participantID.
func (s *localStore) Get(participantID model.ParticipantID) (model.DiscoveryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[participantID]
	return e, ok
}

// ByAddress returns every entry registered for (domain, interface).
func (s *localStore) ByAddress(addr model.InterfaceAddress) []model.DiscoveryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.byAddress[addr]
	entries := make([]model.DiscoveryEntry, 0, len(set))
	for id := range set {
		entries = append(entries, s.byID[id])
	}
	return entries
}

// All returns every locally registered entry, for persistence and
// diagnostics.
func (s *localStore) All() []model.DiscoveryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.DiscoveryEntry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	return entries
}

// RemoveExpired evicts every entry whose expiry has passed as of now,
// returning the removed entries so the caller can drop their next-hops
// (spec.md §4.7.6).
func (s *localStore) RemoveExpired(now time.Time) []model.DiscoveryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []model.DiscoveryEntry
	for id, e := range s.byID {
		if !e.Expired(now) {
			continue
		}
		removed = append(removed, e)
		delete(s.byID, id)
		addr := s.addressOf(e)
		if set, ok := s.byAddress[addr]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(s.byAddress, addr)
			}
		}
	}
	return removed
}
