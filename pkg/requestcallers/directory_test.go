package requestcallers

import (
	"testing"

	"github.com/joynr-go/joynr/pkg/model"
)

type fakeCaller struct {
	iface   model.InterfaceName
	version model.Version
}

func (f fakeCaller) InterfaceName() model.InterfaceName { return f.iface }
func (f fakeCaller) ProviderVersion() model.Version     { return f.version }

func TestAddLookupRemove(t *testing.T) {
	d := New()
	caller := fakeCaller{iface: "io.joynr.Foo", version: model.Version{Major: 1}}

	d.Add("p1", caller)
	got, ok := d.Lookup("p1")
	if !ok || got.InterfaceName() != "io.joynr.Foo" {
		t.Fatalf("Lookup after Add = %v, %v", got, ok)
	}

	d.Remove("p1")
	if _, ok := d.Lookup("p1"); ok {
		t.Fatal("caller still present after Remove")
	}
}

func TestLookupUnknownIsFalse(t *testing.T) {
	d := New()
	if _, ok := d.Lookup("nope"); ok {
		t.Fatal("Lookup of unknown participant returned ok=true")
	}
}

func TestAddReplacesExisting(t *testing.T) {
	d := New()
	d.Add("p1", fakeCaller{iface: "io.joynr.Foo"})
	d.Add("p1", fakeCaller{iface: "io.joynr.Bar"})

	got, _ := d.Lookup("p1")
	if got.InterfaceName() != "io.joynr.Bar" {
		t.Fatalf("InterfaceName() = %q, want io.joynr.Bar after replace", got.InterfaceName())
	}
}

func TestRemoveUnknownIsNoOp(t *testing.T) {
	d := New()
	d.Remove("never-existed")
}
