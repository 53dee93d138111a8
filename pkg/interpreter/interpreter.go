// Package interpreter implements C3: the interface registrar and
// request interpreter of spec.md §4.3. The registrar maps a versioned
// interface key to exactly one interpreter instance, reference
// counted so the last unregister evicts it — the same idiom as the
// teacher's DnsWatcher.Subscribe/Unsubscribe listener bookkeeping
// (controller/destination/dns.go), applied to interpreter instances
// instead of listener slices.
package interpreter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/joynr-go/joynr/pkg/joynrerrors"
	"github.com/joynr-go/joynr/pkg/model"
	"github.com/joynr-go/joynr/pkg/requestcallers"
)

// Adapter decodes typed parameters from a generic value vector and
// invokes the resolved method on the given caller, reporting the
// result through onValue/onError. Provider panics are recovered by
// the caller of Invoke (the dispatcher's worker) and surfaced as a
// ProviderRuntimeError, never propagated through the worker goroutine.
type Adapter func(caller requestcallers.RequestCaller, params []model.Value, onValue func([]model.Value), onError func(error))

// methodKey ties a method overload to its exact (name, ordered
// parameter datatype signature) — full equality required, no implicit
// conversions (spec.md §4.3 "tie-break on overloads").
type methodKey struct {
	name      string
	signature string
}

func newMethodKey(name string, paramDatatypes []string) methodKey {
	return methodKey{name: name, signature: strings.Join(paramDatatypes, ",")}
}

// Interpreter decodes (methodName, paramDatatypes) into a typed
// invocation against one interface's providers.
type Interpreter struct {
	iface   model.InterfaceName
	version model.Version
	methods map[methodKey]Adapter
}

// New constructs an interpreter for one interface version with its
// adapter table.
func New(iface model.InterfaceName, version model.Version) *Interpreter {
	return &Interpreter{
		iface:   iface,
		version: version,
		methods: make(map[methodKey]Adapter),
	}
}

// Bind registers the adapter for one method overload.
func (i *Interpreter) Bind(methodName string, paramDatatypes []string, adapter Adapter) {
	i.methods[newMethodKey(methodName, paramDatatypes)] = adapter
}

// Invoke resolves request against the interpreter's method table and,
// on a match, invokes the adapter. On no match, returns
// MethodInvocationError without calling either continuation.
func (i *Interpreter) Invoke(caller requestcallers.RequestCaller, request model.RequestPayload, onValue func([]model.Value), onError func(error)) error {
	key := newMethodKey(request.MethodName, request.ParamDatatypes)
	adapter, ok := i.methods[key]
	if !ok {
		return &joynrerrors.MethodInvocationError{
			Interface:       i.iface,
			ProviderVersion: i.version,
			MethodName:      request.MethodName,
			Reason:          fmt.Sprintf("no overload for signature (%s)", key.signature),
		}
	}
	adapter(caller, request.Params, onValue, onError)
	return nil
}

// key returns the registrar key "<interface>.<majorVersion>" this
// interpreter is registered under.
func (i *Interpreter) key() string {
	return registrarKey(i.iface, i.version.Major)
}

func registrarKey(iface model.InterfaceName, major int) string {
	return fmt.Sprintf("%s.%d", iface, major)
}

// Registrar maps "<interface>.<majorVersion>" to exactly one
// interpreter instance, reference counted.
type Registrar struct {
	mu    sync.Mutex
	count map[string]int
	table map[string]*Interpreter
}

// NewRegistrar constructs an empty registrar.
func NewRegistrar() *Registrar {
	return &Registrar{
		count: make(map[string]int),
		table: make(map[string]*Interpreter),
	}
}

// Register associates interp with its (interface, major version) key
// if not already registered, and bumps the reference count. Returns
// the interpreter actually in effect for that key (the first
// registration wins if Register is called twice with different
// instances for the same key).
func (r *Registrar) Register(interp *Interpreter) *Interpreter {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := interp.key()
	if existing, ok := r.table[k]; ok {
		r.count[k]++
		return existing
	}
	r.table[k] = interp
	r.count[k] = 1
	return interp
}

// Unregister decrements the reference count for (iface, majorVersion)
// and evicts the interpreter when it reaches zero.
func (r *Registrar) Unregister(iface model.InterfaceName, majorVersion int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := registrarKey(iface, majorVersion)
	r.count[k]--
	if r.count[k] <= 0 {
		delete(r.count, k)
		delete(r.table, k)
	}
}

// Lookup returns the interpreter registered for (iface,
// majorVersion), if any.
func (r *Registrar) Lookup(iface model.InterfaceName, majorVersion int) (*Interpreter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	interp, ok := r.table[registrarKey(iface, majorVersion)]
	return interp, ok
}
