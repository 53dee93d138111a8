package interpreter

import (
	"errors"
	"testing"

	"github.com/joynr-go/joynr/pkg/joynrerrors"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/requestcallers"
)

type fakeCaller struct{}

func (fakeCaller) InterfaceName() model.InterfaceName { return "io.joynr.Foo" }
func (fakeCaller) ProviderVersion() model.Version      { return model.Version{Major: 1} }

func TestInvokeMatchingOverload(t *testing.T) {
	interp := New("io.joynr.Foo", model.Version{Major: 1})
	interp.Bind("add", []string{"Integer", "Integer"}, func(caller requestcallers.RequestCaller, params []model.Value, onValue func([]model.Value), onError func(error)) {
		onValue([]model.Value{model.NewPrimitive("Integer", int64(4))})
	})

	var got []model.Value
	err := interp.Invoke(fakeCaller{}, model.RequestPayload{
		MethodName:     "add",
		ParamDatatypes: []string{"Integer", "Integer"},
	}, func(v []model.Value) { got = v }, func(error) { t.Fatal("onError should not be called") })

	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if len(got) != 1 || got[0].Primitive != int64(4) {
		t.Fatalf("got = %v, want [4]", got)
	}
}

func TestInvokeNoMatchingOverload(t *testing.T) {
	interp := New("io.joynr.Foo", model.Version{Major: 1})
	interp.Bind("add", []string{"Integer", "Integer"}, func(requestcallers.RequestCaller, []model.Value, func([]model.Value), func(error)) {})

	err := interp.Invoke(fakeCaller{}, model.RequestPayload{
		MethodName:     "add",
		ParamDatatypes: []string{"String"},
	}, func([]model.Value) { t.Fatal("onValue should not be called") }, func(error) {})

	var methodErr *joynrerrors.MethodInvocationError
	if !errors.As(err, &methodErr) {
		t.Fatalf("expected MethodInvocationError, got %v", err)
	}
}

func TestInvokePropagatesAdapterError(t *testing.T) {
	interp := New("io.joynr.Foo", model.Version{Major: 1})
	interp.Bind("fail", nil, func(caller requestcallers.RequestCaller, params []model.Value, onValue func([]model.Value), onError func(error)) {
		onError(errors.New("boom"))
	})

	var gotErr error
	err := interp.Invoke(fakeCaller{}, model.RequestPayload{MethodName: "fail"}, func([]model.Value) {}, func(e error) { gotErr = e })

	if err != nil {
		t.Fatalf("Invoke itself should not return an error for a matched overload: %v", err)
	}
	if gotErr == nil || gotErr.Error() != "boom" {
		t.Fatalf("onError got %v, want \"boom\"", gotErr)
	}
}

func TestRegistrarReferenceCounting(t *testing.T) {
	r := NewRegistrar()
	i1 := New("io.joynr.Foo", model.Version{Major: 1})
	i2 := New("io.joynr.Foo", model.Version{Major: 1})

	got1 := r.Register(i1)
	got2 := r.Register(i2)

	if got1 != got2 {
		t.Fatal("second Register for the same (interface, majorVersion) should return the existing instance")
	}

	r.Unregister("io.joynr.Foo", 1)
	if _, ok := r.Lookup("io.joynr.Foo", 1); !ok {
		t.Fatal("one Unregister should not evict an interpreter registered twice")
	}

	r.Unregister("io.joynr.Foo", 1)
	if _, ok := r.Lookup("io.joynr.Foo", 1); ok {
		t.Fatal("interpreter should be evicted once the reference count reaches zero")
	}
}

func TestRegistrarDistinctVersionsAreIndependent(t *testing.T) {
	r := NewRegistrar()
	v1 := New("io.joynr.Foo", model.Version{Major: 1})
	v2 := New("io.joynr.Foo", model.Version{Major: 2})

	r.Register(v1)
	r.Register(v2)

	got1, ok1 := r.Lookup("io.joynr.Foo", 1)
	got2, ok2 := r.Lookup("io.joynr.Foo", 2)
	if !ok1 || !ok2 || got1 == got2 {
		t.Fatalf("expected distinct interpreters for major versions 1 and 2, got %v %v", got1, got2)
	}
}
