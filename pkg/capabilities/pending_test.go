package capabilities

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/joynr-go/joynr/pkg/model"
)

func TestPendingLookupsResolveFiresOnce(t *testing.T) {
	p := newPendingLookups()
	addr := model.InterfaceAddress{Domain: "d1", Interface: "iface1"}

	var calls int32
	id := p.Register(addr, func(model.ResolvedEntry, error) {
		atomic.AddInt32(&calls, 1)
	})

	if ok := p.Resolve(addr, id); !ok {
		t.Fatal("first Resolve should report true")
	}
	if ok := p.Resolve(addr, id); ok {
		t.Fatal("second Resolve of the same id should report false")
	}
}

func TestPendingLookupsResolveUnknownAddrIsFalse(t *testing.T) {
	p := newPendingLookups()
	addr := model.InterfaceAddress{Domain: "d1", Interface: "iface1"}
	if ok := p.Resolve(addr, 1); ok {
		t.Fatal("Resolve on unregistered address should report false")
	}
}

func TestPendingLookupsDrainLocalFiresAllAndClears(t *testing.T) {
	p := newPendingLookups()
	addr := model.InterfaceAddress{Domain: "d1", Interface: "iface1"}

	var fired int32
	var gotLocal int32
	cb := func(re model.ResolvedEntry, err error) {
		atomic.AddInt32(&fired, 1)
		if re.IsLocal {
			atomic.AddInt32(&gotLocal, 1)
		}
	}
	id1 := p.Register(addr, cb)
	id2 := p.Register(addr, cb)

	p.DrainLocal(addr, entry("p1", addr.Domain, addr.Interface, time.Now().Add(time.Hour)))

	if got := atomic.LoadInt32(&fired); got != 2 {
		t.Fatalf("DrainLocal fired %d callbacks, want 2", got)
	}
	if got := atomic.LoadInt32(&gotLocal); got != 2 {
		t.Fatalf("DrainLocal delivered IsLocal=true %d times, want 2", got)
	}

	// Both ids are now drained; a racing Resolve must report false.
	if ok := p.Resolve(addr, id1); ok {
		t.Fatal("Resolve after DrainLocal should report false (id1)")
	}
	if ok := p.Resolve(addr, id2); ok {
		t.Fatal("Resolve after DrainLocal should report false (id2)")
	}
}

func TestPendingLookupsIndependentAddressesDoNotInterfere(t *testing.T) {
	p := newPendingLookups()
	addrA := model.InterfaceAddress{Domain: "d1", Interface: "iface1"}
	addrB := model.InterfaceAddress{Domain: "d2", Interface: "iface2"}

	var firedA, firedB int32
	idA := p.Register(addrA, func(model.ResolvedEntry, error) { atomic.AddInt32(&firedA, 1) })
	_ = p.Register(addrB, func(model.ResolvedEntry, error) { atomic.AddInt32(&firedB, 1) })

	p.DrainLocal(addrA, entry("p1", addrA.Domain, addrA.Interface, time.Now().Add(time.Hour)))

	if atomic.LoadInt32(&firedA) != 1 {
		t.Fatal("addrA callback should have fired")
	}
	if atomic.LoadInt32(&firedB) != 0 {
		t.Fatal("addrB callback should not have fired")
	}
	if ok := p.Resolve(addrA, idA); ok {
		t.Fatal("addrA id should already be drained")
	}
}
