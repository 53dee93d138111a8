package capabilities

import (
	"testing"
	"time"

	"github.com/joynr-go/joynr/pkg/model"
)

func entry(id model.ParticipantID, domain model.Domain, iface model.InterfaceName, expiry time.Time) model.DiscoveryEntry {
	return model.DiscoveryEntry{
		ParticipantID: id,
		Domain:        domain,
		Interface:     iface,
		Expiry:        expiry,
	}
}

func TestLocalStoreInsertGetRemove(t *testing.T) {
	s := newLocalStore()
	e := entry("p1", "d1", "iface1", time.Now().Add(time.Hour))
	s.Insert(e)

	got, ok := s.Get("p1")
	if !ok || got.ParticipantID != "p1" {
		t.Fatalf("Get after Insert = %v, %v", got, ok)
	}

	removed, ok := s.Remove("p1")
	if !ok || removed.ParticipantID != "p1" {
		t.Fatalf("Remove = %v, %v", removed, ok)
	}

	if _, ok := s.Get("p1"); ok {
		t.Fatal("entry still present after Remove")
	}
}

func TestLocalStoreRemoveUnknownIsFalse(t *testing.T) {
	s := newLocalStore()
	if _, ok := s.Remove("nope"); ok {
		t.Fatal("Remove of unknown participant returned ok=true")
	}
}

func TestLocalStoreByAddress(t *testing.T) {
	s := newLocalStore()
	addr := model.InterfaceAddress{Domain: "d1", Interface: "iface1"}
	s.Insert(entry("p1", addr.Domain, addr.Interface, time.Now().Add(time.Hour)))
	s.Insert(entry("p2", addr.Domain, addr.Interface, time.Now().Add(time.Hour)))
	s.Insert(entry("p3", "otherdomain", addr.Interface, time.Now().Add(time.Hour)))

	got := s.ByAddress(addr)
	if len(got) != 2 {
		t.Fatalf("ByAddress returned %d entries, want 2", len(got))
	}
}

func TestLocalStoreByAddressClearedAfterRemove(t *testing.T) {
	s := newLocalStore()
	addr := model.InterfaceAddress{Domain: "d1", Interface: "iface1"}
	s.Insert(entry("p1", addr.Domain, addr.Interface, time.Now().Add(time.Hour)))
	s.Remove("p1")

	if got := s.ByAddress(addr); len(got) != 0 {
		t.Fatalf("ByAddress after sole entry removed = %v, want empty", got)
	}
}

func TestLocalStoreRemoveExpired(t *testing.T) {
	s := newLocalStore()
	now := time.Now()
	fresh := entry("fresh", "d1", "iface1", now.Add(time.Hour))
	stale := entry("stale", "d1", "iface1", now.Add(-time.Hour))
	s.Insert(fresh)
	s.Insert(stale)

	removed := s.RemoveExpired(now)
	if len(removed) != 1 || removed[0].ParticipantID != "stale" {
		t.Fatalf("RemoveExpired = %v, want only stale", removed)
	}

	if _, ok := s.Get("fresh"); !ok {
		t.Fatal("fresh entry was removed")
	}
	if _, ok := s.Get("stale"); ok {
		t.Fatal("stale entry still present")
	}
}

func TestLocalStoreRemoveExpiredNoMutationWhenAllFresh(t *testing.T) {
	s := newLocalStore()
	now := time.Now()
	s.Insert(entry("p1", "d1", "iface1", now.Add(time.Hour)))

	if removed := s.RemoveExpired(now); len(removed) != 0 {
		t.Fatalf("RemoveExpired with no stale entries = %v, want empty", removed)
	}
	if len(s.All()) != 1 {
		t.Fatalf("All() after no-op sweep = %d entries, want 1", len(s.All()))
	}
}

func TestLocalStoreInsertReplacesByID(t *testing.T) {
	s := newLocalStore()
	s.Insert(entry("p1", "d1", "iface1", time.Now().Add(time.Hour)))
	s.Insert(entry("p1", "d2", "iface2", time.Now().Add(time.Hour)))

	got, ok := s.Get("p1")
	if !ok || got.Domain != "d2" {
		t.Fatalf("Get after re-Insert = %v, want domain d2", got)
	}
	if all := s.All(); len(all) != 1 {
		t.Fatalf("All() after re-Insert = %d entries, want 1", len(all))
	}
}
